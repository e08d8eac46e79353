package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachwatch/beachwatch/internal/api/handler"
	"github.com/beachwatch/beachwatch/internal/api/models"
	"github.com/beachwatch/beachwatch/internal/contract"
	"github.com/beachwatch/beachwatch/internal/history"
	"github.com/beachwatch/beachwatch/internal/provider/resilience"
)

func getStatus(t *testing.T, h *handler.OpsHandler) models.SystemStatus {
	t.Helper()
	rec := serve(t, http.HandlerFunc(h.SystemStatus), http.MethodGet, "/v1/ops/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return status
}

func TestHealthCheck(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{Version: "1.2.3", BuildTime: "2024-07-01"})

	rec := serve(t, http.HandlerFunc(h.HealthCheck), http.MethodGet, "/v1/ops/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "1.2.3", health.Details["version"])
}

func TestSystemStatus_Empty(t *testing.T) {
	status := getStatus(t, handler.NewOpsHandler(handler.OpsConfig{}))

	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Empty(t, status.Providers)
	assert.Nil(t, status.LastRun)
	assert.Nil(t, status.Monitor)
}

func TestSystemStatus_ProvidersAndLastRun(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register("socrata", resilience.NewClient(resilience.DefaultClientConfig("socrata")))
	registry.RecordSuccess("socrata")

	repo := history.NewMemoryRepository(0)
	passed := newReport(0, contract.OutcomePassed)
	require.NoError(t, repo.Save(context.Background(), passed))

	next := time.Now().Add(10 * time.Minute)
	status := getStatus(t, handler.NewOpsHandler(handler.OpsConfig{
		Providers: registry,
		Runs:      repo,
		Monitor:   fakeMonitor{next: next},
		Logger:    zerolog.Nop(),
	}))

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "socrata", status.Providers[0].Provider)
	assert.Equal(t, models.HealthStatusOK, status.Providers[0].Status)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
	assert.NotNil(t, status.Providers[0].LastSuccessAt)

	require.NotNil(t, status.LastRun)
	assert.Equal(t, passed.RunID.String(), status.LastRun.ID)

	require.NotNil(t, status.Monitor)
	assert.False(t, status.Monitor.Running)
	require.NotNil(t, status.Monitor.NextRun)
	assert.WithinDuration(t, next, status.Monitor.NextRun.Time(), time.Second)
}

func TestSystemStatus_FailedRunDegrades(t *testing.T) {
	repo := history.NewMemoryRepository(0)
	require.NoError(t, repo.Save(context.Background(), newReport(0, contract.OutcomeFailed)))

	status := getStatus(t, handler.NewOpsHandler(handler.OpsConfig{Runs: repo, Logger: zerolog.Nop()}))

	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, []string{"list-measurements-by-station"}, status.LastRun.FailedScenarios)
}

func TestSystemStatus_ProviderFailureMessage(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register("socrata", resilience.NewClient(resilience.DefaultClientConfig("socrata")))
	registry.RecordFailure("socrata", errors.New("upstream returned 503"))

	status := getStatus(t, handler.NewOpsHandler(handler.OpsConfig{Providers: registry}))

	require.Len(t, status.Providers, 1)
	require.NotNil(t, status.Providers[0].Message)
	assert.Equal(t, "upstream returned 503", *status.Providers[0].Message)
	assert.NotNil(t, status.Providers[0].LastFailureAt)
}

func TestSystemStatus_HistoryError(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{Runs: brokenRepository{}, Logger: zerolog.Nop()})

	rec := serve(t, http.HandlerFunc(h.SystemStatus), http.MethodGet, "/v1/ops/status")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
