// Package handler provides HTTP handlers for the beachwatch status API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/beachwatch/beachwatch/internal/api/models"
	"github.com/beachwatch/beachwatch/internal/api/response"
	"github.com/beachwatch/beachwatch/internal/contract"
	"github.com/beachwatch/beachwatch/internal/history"
	"github.com/beachwatch/beachwatch/internal/provider/resilience"
)

// ProviderHealthSource reports the circuit health of upstream APIs.
type ProviderHealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// LatestRunSource returns the most recent contract run.
type LatestRunSource interface {
	Latest(ctx context.Context) (*contract.Report, error)
}

// MonitorState reports the scheduler state.
type MonitorState interface {
	Running() bool
	NextRun() time.Time
}

// OpsConfig holds the dependencies of an OpsHandler. Providers, Runs and
// Monitor are optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Providers ProviderHealthSource
	Runs      LatestRunSource
	Monitor   MonitorState
	Logger    zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - upstream circuit health and the
// outcome of the latest contract run.
//
// The overall status is the worst provider status. A failed latest run
// degrades an otherwise healthy status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Providers: []models.ProviderStatus{},
	}

	if h.cfg.Providers != nil {
		for _, health := range h.cfg.Providers.GetAllHealth() {
			ps := providerStatus(health)
			status.Providers = append(status.Providers, ps)
			status.Status = worst(status.Status, ps.Status)
		}
	}

	if h.cfg.Runs != nil {
		latest, err := h.cfg.Runs.Latest(r.Context())
		switch {
		case err == nil:
			summary := models.NewRunSummary(latest)
			status.LastRun = &summary
			if !summary.Passed {
				status.Status = worst(status.Status, models.HealthStatusDegraded)
			}
		case errors.Is(err, history.ErrNotFound):
			// no runs yet
		default:
			h.cfg.Logger.Error().Err(err).Msg("failed to load latest run")
			response.InternalError(w, r, "could not load run history")
			return
		}
	}

	if h.cfg.Monitor != nil {
		ms := &models.MonitorStatus{Running: h.cfg.Monitor.Running()}
		if next := h.cfg.Monitor.NextRun(); !next.IsZero() {
			ms.NextRun = models.NewTimestamp(&next)
		}
		status.Monitor = ms
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(health *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:      health.Name,
		CircuitState:  health.CircuitState.String(),
		LastSuccessAt: models.NewTimestamp(health.LastSuccessAt),
		LastFailureAt: models.NewTimestamp(health.LastFailureAt),
	}

	switch health.Status() {
	case resilience.StatusDown:
		ps.Status = models.HealthStatusFail
	case resilience.StatusDegraded:
		ps.Status = models.HealthStatusDegraded
	default:
		ps.Status = models.HealthStatusOK
	}

	if health.LastError != "" {
		msg := health.LastError
		ps.Message = &msg
	}
	return ps
}

var healthRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}
