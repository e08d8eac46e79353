// Package notify announces contract runs that fail or recover.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/beachwatch/beachwatch/internal/contract"
)

// EventType classifies a run event.
type EventType string

const (
	// EventRunFailed is emitted for every run with a failed or errored scenario.
	EventRunFailed EventType = "run.failed"

	// EventRunRecovered is emitted for the first passing run after a failed one.
	EventRunRecovered EventType = "run.recovered"
)

// RunEvent is the payload sent to notifiers.
type RunEvent struct {
	Type            EventType `json:"type"`
	RunID           uuid.UUID `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Scenarios       int       `json:"scenarios"`
	Failed          int       `json:"failed"`
	FailedScenarios []string  `json:"failed_scenarios,omitempty"`
	Summary         string    `json:"summary"`
}

// NewRunEvent builds an event of type t from report.
func NewRunEvent(t EventType, report *contract.Report) RunEvent {
	return RunEvent{
		Type:            t,
		RunID:           report.RunID,
		StartedAt:       report.StartedAt,
		FinishedAt:      report.FinishedAt,
		Scenarios:       len(report.Results),
		Failed:          report.FailedCount(),
		FailedScenarios: report.FailedScenarios(),
		Summary:         report.Summary(),
	}
}

// Notifier delivers run events.
type Notifier interface {
	Notify(ctx context.Context, event RunEvent) error
}

// Multi fans an event out to several notifiers. Every notifier is called;
// their errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, event RunEvent) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Notify(ctx, event))
	}
	return errors.Join(errs...)
}
