package models

import (
	"github.com/beachwatch/beachwatch/internal/contract"
)

// RunSummary is the list view of a contract run.
type RunSummary struct {
	ID              string    `json:"id"`
	Passed          bool      `json:"passed"`
	Scenarios       int       `json:"scenarios"`
	Failed          int       `json:"failed"`
	FailedScenarios []string  `json:"failedScenarios,omitempty"`
	StartedAt       Timestamp `json:"startedAt"`
	FinishedAt      Timestamp `json:"finishedAt"`
	DurationMs      int64     `json:"durationMs"`
}

// Run is the detailed view of a contract run.
type Run struct {
	RunSummary
	Results []ScenarioResult `json:"results"`
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Scenario   string            `json:"scenario"`
	Story      string            `json:"story,omitempty"`
	Outcome    string            `json:"outcome"`
	Failures   []ScenarioFailure `json:"failures,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"durationMs"`
}

// ScenarioFailure is one assertion that did not hold.
type ScenarioFailure struct {
	Step     string `json:"step,omitempty"`
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// RunList is a page of runs, newest first.
type RunList struct {
	Items []RunSummary      `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// NewRunSummary converts a report to its list view.
func NewRunSummary(r *contract.Report) RunSummary {
	return RunSummary{
		ID:              r.RunID.String(),
		Passed:          r.Passed(),
		Scenarios:       len(r.Results),
		Failed:          r.FailedCount(),
		FailedScenarios: r.FailedScenarios(),
		StartedAt:       Timestamp(r.StartedAt),
		FinishedAt:      Timestamp(r.FinishedAt),
		DurationMs:      r.Duration().Milliseconds(),
	}
}

// NewRun converts a report to its detailed view.
func NewRun(r *contract.Report) Run {
	results := make([]ScenarioResult, 0, len(r.Results))
	for _, res := range r.Results {
		sr := ScenarioResult{
			Scenario:   res.Scenario,
			Story:      res.Story,
			Outcome:    string(res.Outcome),
			Error:      res.Error,
			DurationMs: res.Duration.Milliseconds(),
		}
		for _, f := range res.Failures {
			sr.Failures = append(sr.Failures, ScenarioFailure{
				Step:     f.Step,
				Field:    f.Field,
				Expected: f.Expected,
				Actual:   f.Actual,
			})
		}
		results = append(results, sr)
	}

	return Run{RunSummary: NewRunSummary(r), Results: results}
}

// NewRunList converts reports to a page of summaries.
func NewRunList(reports []*contract.Report, limit int) RunList {
	items := make([]RunSummary, 0, len(reports))
	for _, r := range reports {
		items = append(items, NewRunSummary(r))
	}
	return RunList{Items: items, Meta: PagedResponseMeta{Limit: limit, Count: len(items)}}
}
