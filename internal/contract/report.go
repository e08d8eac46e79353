package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome is the verdict of one scenario.
type Outcome string

const (
	OutcomePassed Outcome = "passed"
	OutcomeFailed Outcome = "failed"
	OutcomeError  Outcome = "error"
)

// Result is the outcome of one scenario in a run.
type Result struct {
	Scenario  string        `json:"scenario"`
	Story     string        `json:"story,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	Failures  []Failure     `json:"failures,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Passed reports whether the scenario passed.
func (r Result) Passed() bool {
	return r.Outcome == OutcomePassed
}

// Report is the outcome of one run of all scenarios.
type Report struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Passed reports whether every scenario passed. An empty report passes.
func (r *Report) Passed() bool {
	return r.FailedCount() == 0
}

// FailedCount returns the number of scenarios that failed or errored.
func (r *Report) FailedCount() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed() {
			n++
		}
	}
	return n
}

// FailedScenarios returns the names of scenarios that did not pass.
func (r *Report) FailedScenarios() []string {
	var names []string
	for _, res := range r.Results {
		if !res.Passed() {
			names = append(names, res.Scenario)
		}
	}
	return names
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders a human-readable multi-line summary.
func (r *Report) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s: %d/%d scenarios passed in %s\n",
		r.RunID, len(r.Results)-r.FailedCount(), len(r.Results), r.Duration().Round(time.Millisecond))

	for _, res := range r.Results {
		fmt.Fprintf(&b, "  %-6s %s (%s)\n", strings.ToUpper(string(res.Outcome)), res.Scenario, res.Duration.Round(time.Millisecond))
		if res.Error != "" {
			fmt.Fprintf(&b, "         error: %s\n", res.Error)
		}
		for _, f := range res.Failures {
			fmt.Fprintf(&b, "         %s\n", f)
		}
	}

	return b.String()
}
