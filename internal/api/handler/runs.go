package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/beachwatch/beachwatch/internal/api/models"
	"github.com/beachwatch/beachwatch/internal/api/response"
	"github.com/beachwatch/beachwatch/internal/contract"
	"github.com/beachwatch/beachwatch/internal/history"
	"github.com/beachwatch/beachwatch/internal/monitor"
)

// DefaultTriggerTimeout bounds a run started through the API.
const DefaultTriggerTimeout = monitor.DefaultRunTimeout

// RunTrigger starts a contract run and waits for its report.
type RunTrigger interface {
	RunOnce(ctx context.Context) (*contract.Report, error)
}

// RunConfig holds the dependencies of a RunHandler. Trigger is optional;
// without it POST /v1/runs answers 503.
type RunConfig struct {
	Repository     history.Repository
	Trigger        RunTrigger
	TriggerTimeout time.Duration
	Logger         zerolog.Logger
}

// RunHandler serves the contract run history.
type RunHandler struct {
	repo           history.Repository
	trigger        RunTrigger
	triggerTimeout time.Duration
	logger         zerolog.Logger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(cfg RunConfig) *RunHandler {
	timeout := cfg.TriggerTimeout
	if timeout <= 0 {
		timeout = DefaultTriggerTimeout
	}
	return &RunHandler{
		repo:           cfg.Repository,
		trigger:        cfg.Trigger,
		triggerTimeout: timeout,
		logger:         cfg.Logger,
	}
}

// ListRuns handles GET /v1/runs - recent runs, newest first.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > history.MaxListLimit {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{{
				Field:   "limit",
				Message: "must be an integer between 1 and " + strconv.Itoa(history.MaxListLimit),
				Code:    "OUT_OF_RANGE",
			}})
			return
		}
		limit = n
	}

	reports, err := h.repo.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Int("limit", limit).Msg("failed to list runs")
		response.InternalError(w, r, "could not load run history")
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewRunList(reports, limit))
}

// LatestRun handles GET /v1/runs/latest.
func (h *RunHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.repo.Latest(r.Context())
	if err != nil {
		h.writeLookupError(w, r, err, "no contract run recorded yet")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewRun(report))
}

// GetRun handles GET /v1/runs/{runId}.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runId"))
	if err != nil {
		response.BadRequest(w, r, "invalid run id", []models.FieldError{{
			Field:   "runId",
			Message: "must be a UUID",
			Code:    "INVALID_FORMAT",
		}})
		return
	}

	report, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, r, err, "run "+id.String()+" not found")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewRun(report))
}

// TriggerRun handles POST /v1/runs - runs every scenario now and returns the
// stored report. The run outlives a disconnected client.
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		response.ServiceUnavailable(w, r, "manual runs are not enabled")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.triggerTimeout)
	defer cancel()

	report, err := h.trigger.RunOnce(ctx)
	switch {
	case errors.Is(err, monitor.ErrRunInProgress):
		response.Conflict(w, r, "a contract run is already in progress")
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("triggered run failed")
		response.InternalError(w, r, "the run could not be recorded")
		return
	}

	h.logger.Info().
		Str("run_id", report.RunID.String()).
		Bool("passed", report.Passed()).
		Msg("triggered run completed")

	response.Created(w, r, "/v1/runs/"+report.RunID.String(), models.NewRun(report))
}

func (h *RunHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, history.ErrNotFound) {
		response.NotFound(w, r, notFound)
		return
	}
	h.logger.Error().Err(err).Msg("failed to load run")
	response.InternalError(w, r, "could not load run history")
}
