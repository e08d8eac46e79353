// Package main runs the contract scenarios on a schedule and serves their
// history over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/beachwatch/beachwatch/internal/api"
	"github.com/beachwatch/beachwatch/internal/api/middleware"
	"github.com/beachwatch/beachwatch/internal/beachweather/socrata"
	"github.com/beachwatch/beachwatch/internal/config"
	"github.com/beachwatch/beachwatch/internal/contract"
	"github.com/beachwatch/beachwatch/internal/database"
	"github.com/beachwatch/beachwatch/internal/history"
	"github.com/beachwatch/beachwatch/internal/monitor"
	"github.com/beachwatch/beachwatch/internal/notify"
	"github.com/beachwatch/beachwatch/internal/provider/resilience"
	"github.com/beachwatch/beachwatch/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "beachwatch-monitor"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := cfg.NewLogger(os.Stdout, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("schedule", cfg.Monitor.Schedule).
		Msg("starting beachwatch monitor")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	contractMetrics, err := contract.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize contract metrics")
	}

	repo, closeRepo, err := openHistory(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open run history")
	}
	defer closeRepo()

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize notifications")
	}
	defer closeNotifier()

	registry := resilience.NewRegistry()
	client := newDatasetClient(cfg, registry, log)

	mon, err := monitor.New(monitor.Config{
		Runner: contract.NewRunner(contract.RunnerConfig{
			Client:      client,
			Concurrency: cfg.Socrata.Concurrency,
			Logger:      log,
			Tracer:      tp.Tracer,
			Metrics:     contractMetrics,
		}),
		Repository: repo,
		Notifier:   notifier,
		Schedule:   cfg.Monitor.Schedule,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create monitor")
	}

	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()
	mon.Start(runCtx)

	router := api.NewRouter(api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Metrics:    httpMetrics,
		Providers:  registry,
		Repository: repo,
		Monitor:    mon,
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// POST /v1/runs answers once the run has finished.
		WriteTimeout: monitor.DefaultRunTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Let a scheduled run in flight finish, then cancel it if it outlasts
	// the shutdown window.
	select {
	case <-mon.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("cancelling unfinished contract run")
		cancelRuns()
	}

	log.Info().Msg("monitor stopped")
}

// newDatasetClient reports health to registry and logs breaker transitions.
func newDatasetClient(cfg *config.Config, registry *resilience.Registry, log zerolog.Logger) *socrata.Client {
	return socrata.NewClient(socrata.ClientConfig{
		BaseURL:       cfg.Socrata.BaseURL,
		Dataset:       cfg.Socrata.Dataset,
		AppToken:      cfg.Socrata.AppToken,
		Timeout:       cfg.Socrata.Timeout,
		Registry:      registry,
		OnStateChange: resilience.LogStateChanges(log),
	})
}

// openHistory returns the configured run repository and its cleanup func.
func openHistory(ctx context.Context, cfg *config.Config, log zerolog.Logger) (history.Repository, func(), error) {
	if cfg.Monitor.HistoryBackend != config.HistoryPostgres {
		log.Info().Msg("keeping run history in memory")
		return history.NewMemoryRepository(0), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	repo := history.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}

// buildNotifier always logs events and also publishes them when Pub/Sub is
// configured.
func buildNotifier(ctx context.Context, cfg *config.Config, log zerolog.Logger) (notify.Notifier, func(), error) {
	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if !cfg.PubSub.Enabled() {
		return notifiers, func() {}, nil
	}

	ps, err := notify.NewPubSubNotifier(ctx, notify.PubSubConfig{
		ProjectID: cfg.PubSub.ProjectID,
		TopicID:   cfg.PubSub.Topic,
		Logger:    log,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info().
		Str("project", cfg.PubSub.ProjectID).
		Str("topic", cfg.PubSub.Topic).
		Msg("publishing run events to Pub/Sub")

	return append(notifiers, ps), func() {
		if err := ps.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Pub/Sub notifier")
		}
	}, nil
}
