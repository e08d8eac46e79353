package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachwatch/beachwatch/internal/contract"
	"github.com/beachwatch/beachwatch/internal/history"
	"github.com/beachwatch/beachwatch/internal/monitor"
	"github.com/beachwatch/beachwatch/internal/notify"
)

// scriptedRunner returns a passing or failing report per call, in order.
type scriptedRunner struct {
	mu      sync.Mutex
	outcome []contract.Outcome
	calls   int
	block   chan struct{}
}

func (r *scriptedRunner) Run(ctx context.Context) *contract.Report {
	if r.block != nil {
		<-r.block
	}

	r.mu.Lock()
	outcome := contract.OutcomePassed
	if r.calls < len(r.outcome) {
		outcome = r.outcome[r.calls]
	}
	r.calls++
	n := r.calls
	r.mu.Unlock()

	start := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(n) * 15 * time.Minute)
	return &contract.Report{
		RunID:      uuid.New(),
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Results:    []contract.Result{{Scenario: "list-measurements-by-station", Outcome: outcome}},
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.EventType
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.RunEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e.Type)
	return nil
}

type failingRepository struct {
	history.Repository
}

func (failingRepository) Save(context.Context, *contract.Report) error {
	return errors.New("disk full")
}

func newMonitor(t *testing.T, runner monitor.Runner, repo history.Repository, n notify.Notifier) *monitor.Monitor {
	t.Helper()
	m, err := monitor.New(monitor.Config{
		Runner:     runner,
		Repository: repo,
		Notifier:   n,
		Schedule:   "*/15 * * * *",
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return m
}

func TestNew_Validation(t *testing.T) {
	repo := history.NewMemoryRepository(0)

	_, err := monitor.New(monitor.Config{Repository: repo, Schedule: "@hourly"})
	assert.Error(t, err)

	_, err = monitor.New(monitor.Config{Runner: &scriptedRunner{}, Schedule: "@hourly"})
	assert.Error(t, err)

	_, err = monitor.New(monitor.Config{Runner: &scriptedRunner{}, Repository: repo, Schedule: "every tuesday"})
	assert.Error(t, err)
}

func TestRunOnce_NotifiesFailureAndRecovery(t *testing.T) {
	runner := &scriptedRunner{outcome: []contract.Outcome{
		contract.OutcomePassed,
		contract.OutcomeFailed,
		contract.OutcomeError,
		contract.OutcomePassed,
		contract.OutcomePassed,
	}}
	repo := history.NewMemoryRepository(0)
	notifier := &recordingNotifier{}
	m := newMonitor(t, runner, repo, notifier)

	for i := 0; i < 5; i++ {
		_, err := m.RunOnce(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []notify.EventType{
		notify.EventRunFailed,
		notify.EventRunFailed,
		notify.EventRunRecovered,
	}, notifier.events)

	runs, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

func TestRunOnce_FirstPassingRunIsSilent(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newMonitor(t, &scriptedRunner{}, history.NewMemoryRepository(0), notifier)

	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.Empty(t, notifier.events)
}

func TestRunOnce_SaveErrorReturnsReport(t *testing.T) {
	m := newMonitor(t, &scriptedRunner{}, failingRepository{history.NewMemoryRepository(0)}, nil)

	report, err := m.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotNil(t, report)
}

func TestRunOnce_RejectsOverlappingRun(t *testing.T) {
	runner := &scriptedRunner{block: make(chan struct{})}
	m := newMonitor(t, runner, history.NewMemoryRepository(0), nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.RunOnce(context.Background())
		done <- err
	}()

	require.Eventually(t, m.Running, time.Second, 5*time.Millisecond)

	_, err := m.RunOnce(context.Background())
	assert.ErrorIs(t, err, monitor.ErrRunInProgress)

	close(runner.block)
	require.NoError(t, <-done)
	assert.False(t, m.Running())
}

func TestStartStop(t *testing.T) {
	m := newMonitor(t, &scriptedRunner{}, history.NewMemoryRepository(0), nil)
	assert.True(t, m.NextRun().IsZero())

	m.Start(context.Background())
	next := m.NextRun()
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(16*time.Minute)))

	select {
	case <-m.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
