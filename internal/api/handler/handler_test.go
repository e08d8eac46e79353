package handler_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beachwatch/beachwatch/internal/contract"
)

var testStart = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

func newReport(minutes int, outcome contract.Outcome) *contract.Report {
	started := testStart.Add(time.Duration(minutes) * time.Minute)
	res := contract.Result{Scenario: "list-measurements-by-station", Outcome: outcome, StartedAt: started}
	if outcome != contract.OutcomePassed {
		res.Failures = []contract.Failure{{Field: "status", Expected: "200", Actual: "503"}}
	}
	return &contract.Report{
		RunID:      uuid.New(),
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Results:    []contract.Result{res},
	}
}

// brokenRepository fails every call.
type brokenRepository struct{}

var errStorage = errors.New("storage unavailable")

func (brokenRepository) Save(context.Context, *contract.Report) error { return errStorage }

func (brokenRepository) Get(context.Context, uuid.UUID) (*contract.Report, error) {
	return nil, errStorage
}

func (brokenRepository) Latest(context.Context) (*contract.Report, error) { return nil, errStorage }

func (brokenRepository) List(context.Context, int) ([]*contract.Report, error) {
	return nil, errStorage
}

// fakeTrigger returns a canned result and records the context it got.
type fakeTrigger struct {
	mu     sync.Mutex
	report *contract.Report
	err    error
	ctx    context.Context
}

func (f *fakeTrigger) RunOnce(ctx context.Context) (*contract.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctx = ctx
	return f.report, f.err
}

type fakeMonitor struct {
	running bool
	next    time.Time
}

func (f fakeMonitor) Running() bool      { return f.running }
func (f fakeMonitor) NextRun() time.Time { return f.next }
