package contract

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/beachwatch/beachwatch/internal/beachweather/socrata"
)

const tracerName = "github.com/beachwatch/beachwatch/internal/contract"

// RunnerConfig holds configuration for a Runner.
type RunnerConfig struct {
	// Client sends the requests.
	Client Getter

	// Scenarios to run. Default: DefaultScenarios().
	Scenarios []Scenario

	// Concurrency is the number of scenarios run at once.
	// Default: 1
	Concurrency int

	Logger zerolog.Logger

	// Tracer creates one span per scenario. Default: the global tracer.
	Tracer trace.Tracer

	// Metrics is optional.
	Metrics *Metrics
}

// Runner executes scenarios and collects a Report.
type Runner struct {
	client      Getter
	scenarios   []Scenario
	concurrency int
	logger      zerolog.Logger
	tracer      trace.Tracer
	metrics     *Metrics
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	scenarios := cfg.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Runner{
		client:      cfg.Client,
		scenarios:   scenarios,
		concurrency: concurrency,
		logger:      cfg.Logger,
		tracer:      tracer,
		metrics:     cfg.Metrics,
	}
}

// Scenarios returns the scenarios the runner executes.
func (r *Runner) Scenarios() []Scenario {
	return r.scenarios
}

// Run executes every scenario once. Results keep scenario order.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
		Results:   make([]Result, len(r.scenarios)),
	}

	logger := r.logger.With().Str("run_id", report.RunID.String()).Logger()
	logger.Info().
		Int("scenarios", len(r.scenarios)).
		Int("concurrency", r.concurrency).
		Msg("starting contract run")

	indices := make(chan int, len(r.scenarios))
	for i := range r.scenarios {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	for w := 0; w < r.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				report.Results[i] = r.runScenario(ctx, logger, r.scenarios[i])
			}
		}()
	}
	wg.Wait()

	report.FinishedAt = time.Now()

	event := logger.Info()
	if !report.Passed() {
		event = logger.Warn().Strs("failed_scenarios", report.FailedScenarios())
	}
	event.
		Dur("duration", report.Duration()).
		Int("failed", report.FailedCount()).
		Bool("passed", report.Passed()).
		Msg("contract run completed")

	return report
}

// RunScenario executes a single scenario.
func (r *Runner) RunScenario(ctx context.Context, s Scenario) Result {
	return r.runScenario(ctx, r.logger, s)
}

func (r *Runner) runScenario(ctx context.Context, logger zerolog.Logger, s Scenario) Result {
	logger = logger.With().Str("scenario", s.Name).Logger()

	ctx, span := r.tracer.Start(ctx, "contract.scenario "+s.Name,
		trace.WithAttributes(attribute.String("contract.scenario", s.Name)),
	)
	defer span.End()

	result := Result{
		Scenario:  s.Name,
		Story:     s.Story,
		StartedAt: time.Now(),
	}

	failures, err := s.Run(ctx, &observedGetter{next: r.client, logger: logger})
	result.Duration = time.Since(result.StartedAt)

	switch {
	case err != nil:
		result.Outcome = OutcomeError
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		logger.Error().Err(err).Dur("duration", result.Duration).Msg("scenario could not complete")
	case len(failures) > 0:
		result.Outcome = OutcomeFailed
		result.Failures = failures
		span.SetStatus(codes.Error, "assertions failed")
		for _, f := range failures {
			logger.Warn().
				Str("step", f.Step).
				Str("field", f.Field).
				Str("expected", f.Expected).
				Str("actual", f.Actual).
				Msg("assertion failed")
		}
	default:
		result.Outcome = OutcomePassed
		span.SetStatus(codes.Ok, "")
		logger.Info().Dur("duration", result.Duration).Msg("scenario passed")
	}

	span.SetAttributes(attribute.String("contract.outcome", string(result.Outcome)))
	r.metrics.record(ctx, result)

	return result
}

// observedGetter logs every response, body included, at debug level.
type observedGetter struct {
	next   Getter
	logger zerolog.Logger
}

func (g *observedGetter) Get(ctx context.Context, q socrata.Query) (*socrata.Response, error) {
	resp, err := g.next.Get(ctx, q)
	if err != nil {
		return nil, err
	}

	event := g.logger.Debug()
	if event.Enabled() {
		event = event.
			Str("query", q.Encode()).
			Int("status", resp.StatusCode).
			Dur("duration", resp.Duration)
		if gjson.ValidBytes(resp.Body) {
			event = event.RawJSON("body", resp.Body)
		} else {
			event = event.Bytes("body", resp.Body)
		}
		event.Msg("response received")
	}

	return resp, nil
}
