// Package main runs every contract scenario against the beach weather
// dataset once, prints a summary and exits non-zero when any scenario fails.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/beachwatch/beachwatch/internal/beachweather/socrata"
	"github.com/beachwatch/beachwatch/internal/config"
	"github.com/beachwatch/beachwatch/internal/contract"
	"github.com/beachwatch/beachwatch/internal/provider/resilience"
	"github.com/beachwatch/beachwatch/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "beachcheck"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	log := cfg.NewLogger(os.Stderr, serviceName, Version)
	log.Debug().Str("build_time", BuildTime).Msg("starting beachcheck")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize telemetry")
		return 1
	}
	defer shutdownTelemetry(tp, log)

	metrics, err := contract.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		return 1
	}

	client := socrata.NewClient(socrata.ClientConfig{
		BaseURL:       cfg.Socrata.BaseURL,
		Dataset:       cfg.Socrata.Dataset,
		AppToken:      cfg.Socrata.AppToken,
		Timeout:       cfg.Socrata.Timeout,
		OnStateChange: resilience.LogStateChanges(log),
	})
	log.Info().
		Str("resource", client.ResourceURL()).
		Bool("app_token", cfg.Socrata.AppToken != "").
		Msg("running contract scenarios")

	runner := contract.NewRunner(contract.RunnerConfig{
		Client:      client,
		Concurrency: cfg.Socrata.Concurrency,
		Logger:      log,
		Tracer:      tp.Tracer,
		Metrics:     metrics,
	})

	report := runner.Run(ctx)
	fmt.Print(report.Summary())

	if !report.Passed() {
		log.Error().
			Str("run_id", report.RunID.String()).
			Strs("failed", report.FailedScenarios()).
			Msg("contract violated")
		return 1
	}
	return 0
}

func shutdownTelemetry(tp *telemetry.Provider, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown telemetry")
	}
}
