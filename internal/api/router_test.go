package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachwatch/beachwatch/internal/api"
	"github.com/beachwatch/beachwatch/internal/api/middleware"
	"github.com/beachwatch/beachwatch/internal/api/models"
	"github.com/beachwatch/beachwatch/internal/beachweather/socrata"
	"github.com/beachwatch/beachwatch/internal/contract"
	"github.com/beachwatch/beachwatch/internal/history"
	"github.com/beachwatch/beachwatch/internal/monitor"
	"github.com/beachwatch/beachwatch/internal/provider/resilience"
	"github.com/beachwatch/beachwatch/internal/sodafake"
)

type testStack struct {
	router   http.Handler
	repo     *history.MemoryRepository
	registry *resilience.Registry
}

// newTestStack wires the router to a monitor that checks an in-process
// fake portal.
func newTestStack(t *testing.T, cfg api.RouterConfig) *testStack {
	t.Helper()

	portal := httptest.NewServer(sodafake.NewServer(sodafake.NewBeachWeatherDataset(30)))
	t.Cleanup(portal.Close)

	registry := resilience.NewRegistry()
	client := socrata.NewClient(socrata.ClientConfig{
		BaseURL:  portal.URL,
		Timeout:  5 * time.Second,
		Registry: registry,
	})

	repo := history.NewMemoryRepository(0)
	mon, err := monitor.New(monitor.Config{
		Runner:     contract.NewRunner(contract.RunnerConfig{Client: client, Logger: zerolog.Nop()}),
		Repository: repo,
		Schedule:   "@every 1h",
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	cfg.Version = "test"
	cfg.BuildTime = "now"
	cfg.Logger = zerolog.Nop()
	cfg.Providers = registry
	cfg.Repository = repo
	cfg.Monitor = mon

	return &testStack{router: api.NewRouter(cfg), repo: repo, registry: registry}
}

func (s *testStack) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthCheck(t *testing.T) {
	s := newTestStack(t, api.RouterConfig{})

	rec := s.do(http.MethodGet, "/v1/ops/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_TriggerThenQuery(t *testing.T) {
	s := newTestStack(t, api.RouterConfig{})

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/runs/latest").Code)

	rec := s.do(http.MethodPost, "/v1/runs")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Passed, rec.Body.String())
	assert.Len(t, created.Results, len(contract.DefaultScenarios()))
	assert.Equal(t, "/v1/runs/"+created.ID, rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, rec.Header().Get("Location"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/v1/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest models.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, created.ID, latest.ID)

	rec = s.do(http.MethodGet, "/v1/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.RunList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)
}

func TestRouter_SystemStatusAfterRun(t *testing.T) {
	s := newTestStack(t, api.RouterConfig{})
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/runs").Code)

	rec := s.do(http.MethodGet, "/v1/ops/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, socrata.ProviderName, status.Providers[0].Provider)
	assert.NotNil(t, status.Providers[0].LastSuccessAt)
	require.NotNil(t, status.LastRun)
	assert.True(t, status.LastRun.Passed)
	require.NotNil(t, status.Monitor)
	assert.False(t, status.Monitor.Running)
}

func TestRouter_TriggerRateLimited(t *testing.T) {
	s := newTestStack(t, api.RouterConfig{
		TriggerRateLimit: &middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute},
	})

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/runs").Code)

	rec := s.do(http.MethodPost, "/v1/runs")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/runs").Code, "reads use a separate limit")
}

func TestRouter_ReadRateLimited(t *testing.T) {
	s := newTestStack(t, api.RouterConfig{
		ReadRateLimit: &middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute},
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/runs").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/v1/runs").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/ops/health").Code, "ops endpoints are not limited")
}

func TestRouter_RequestID_Generated(t *testing.T) {
	s := newTestStack(t, api.RouterConfig{})

	requestID := s.do(http.MethodGet, "/v1/ops/health").Header().Get("X-Request-Id")
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	s := newTestStack(t, api.RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestStack(t, api.RouterConfig{})

	rec := s.do(http.MethodGet, "/v1/nonexistent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	s := newTestStack(t, api.RouterConfig{})

	rec := s.do(http.MethodDelete, "/v1/runs/latest")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), models.ProblemTypeMethod)
}

func TestRouter_WithoutMonitor(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Logger:     zerolog.Nop(),
		Repository: history.NewMemoryRepository(0),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"monitor"`)
}
