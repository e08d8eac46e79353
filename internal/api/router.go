// Package api provides the HTTP status API of the beachwatch monitor.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/beachwatch/beachwatch/internal/api/handler"
	"github.com/beachwatch/beachwatch/internal/api/middleware"
	"github.com/beachwatch/beachwatch/internal/api/models"
	"github.com/beachwatch/beachwatch/internal/api/response"
	"github.com/beachwatch/beachwatch/internal/history"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	Providers  handler.ProviderHealthSource
	Repository history.Repository

	// Monitor is optional. Without it the status omits the scheduler and
	// POST /v1/runs answers 503.
	Monitor interface {
		handler.MonitorState
		handler.RunTrigger
	}

	// Rate limits default to middleware.StandardRateLimit and
	// middleware.TriggerRateLimit.
	ReadRateLimit    *middleware.RateLimitConfig
	TriggerRateLimit *middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such resource")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewMethodNotAllowed(middleware.GetRequestID(r.Context()), r.Method+" is not supported here"))
	})

	opsCfg := handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Providers: cfg.Providers,
		Runs:      cfg.Repository,
		Logger:    cfg.Logger,
	}
	runCfg := handler.RunConfig{
		Repository: cfg.Repository,
		Logger:     cfg.Logger,
	}
	if cfg.Monitor != nil {
		opsCfg.Monitor = cfg.Monitor
		runCfg.Trigger = cfg.Monitor
	}

	opsHandler := handler.NewOpsHandler(opsCfg)
	runHandler := handler.NewRunHandler(runCfg)

	readLimit := middleware.StandardRateLimit
	if cfg.ReadRateLimit != nil {
		readLimit = *cfg.ReadRateLimit
	}
	triggerLimit := middleware.TriggerRateLimit
	if cfg.TriggerRateLimit != nil {
		triggerLimit = *cfg.TriggerRateLimit
	}
	standardRateLimit := middleware.RateLimitByIP(readLimit)
	triggerRateLimit := middleware.RateLimitByIP(triggerLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints are not rate limited so probes never see 429.
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/runs", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", runHandler.ListRuns)
			r.With(triggerRateLimit).Post("/", runHandler.TriggerRun)
			r.With(standardRateLimit).Get("/latest", runHandler.LatestRun)
			r.With(standardRateLimit).Get("/{runId}", runHandler.GetRun)
		})
	})

	return r
}
