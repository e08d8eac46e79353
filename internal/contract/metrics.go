package contract

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments for contract runs.
type Metrics struct {
	scenarioRuns     metric.Int64Counter
	scenarioDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	scenarioRuns, err := meter.Int64Counter(
		"contract.scenario.runs",
		metric.WithDescription("Number of contract scenario executions by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	scenarioDuration, err := meter.Float64Histogram(
		"contract.scenario.duration",
		metric.WithDescription("Duration of contract scenario executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		scenarioRuns:     scenarioRuns,
		scenarioDuration: scenarioDuration,
	}, nil
}

// record is a no-op on a nil receiver.
func (m *Metrics) record(ctx context.Context, result Result) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("contract.scenario", result.Scenario),
		attribute.String("contract.outcome", string(result.Outcome)),
	)
	m.scenarioRuns.Add(ctx, 1, attrs)
	m.scenarioDuration.Record(ctx, result.Duration.Seconds(), attrs)
}
