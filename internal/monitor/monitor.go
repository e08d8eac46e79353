// Package monitor runs the contract checks on a cron schedule, keeps their
// history and announces failures and recoveries.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/beachwatch/beachwatch/internal/contract"
	"github.com/beachwatch/beachwatch/internal/history"
	"github.com/beachwatch/beachwatch/internal/notify"
)

// DefaultRunTimeout bounds one scheduled run.
const DefaultRunTimeout = 5 * time.Minute

// ErrRunInProgress is returned by RunOnce while another run is executing.
var ErrRunInProgress = errors.New("contract run already in progress")

// Runner executes the contract scenarios.
type Runner interface {
	Run(ctx context.Context) *contract.Report
}

// Config holds configuration for a Monitor.
type Config struct {
	Runner     Runner
	Repository history.Repository

	// Notifier is optional.
	Notifier notify.Notifier

	// Schedule is a standard five-field cron expression or a descriptor
	// such as "@hourly".
	Schedule string

	// RunTimeout bounds scheduled runs. Default: 5 minutes.
	RunTimeout time.Duration

	Logger zerolog.Logger
}

// Monitor schedules contract runs.
type Monitor struct {
	runner     Runner
	repo       history.Repository
	notifier   notify.Notifier
	runTimeout time.Duration
	logger     zerolog.Logger

	cron    *cron.Cron
	entryID cron.EntryID
	active  atomic.Bool

	mu      sync.Mutex
	baseCtx context.Context
}

// New creates a Monitor. The schedule is validated but nothing runs until Start.
func New(cfg Config) (*Monitor, error) {
	if cfg.Runner == nil {
		return nil, errors.New("monitor: runner is required")
	}
	if cfg.Repository == nil {
		return nil, errors.New("monitor: repository is required")
	}

	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}

	m := &Monitor{
		runner:     cfg.Runner,
		repo:       cfg.Repository,
		notifier:   cfg.Notifier,
		runTimeout: runTimeout,
		logger:     cfg.Logger,
		baseCtx:    context.Background(),
	}

	cl := cronLogger{logger: cfg.Logger}
	m.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := m.cron.AddFunc(cfg.Schedule, m.runScheduled)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	m.entryID = id

	return m, nil
}

// Start begins the schedule. Scheduled runs derive their context from ctx.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()

	m.cron.Start()
	m.logger.Info().Time("next_run", m.NextRun()).Msg("monitor started")
}

// Stop halts the schedule. The returned context is done once a run in
// flight has finished.
func (m *Monitor) Stop() context.Context {
	return m.cron.Stop()
}

// NextRun returns the next scheduled run time, or the zero time when the
// schedule is not started.
func (m *Monitor) NextRun() time.Time {
	return m.cron.Entry(m.entryID).Next
}

// Running reports whether a run is executing.
func (m *Monitor) Running() bool {
	return m.active.Load()
}

// RunOnce executes all scenarios, stores the report and sends a
// notification when the run failed or recovered from a failed run.
// It returns ErrRunInProgress instead of overlapping another run.
func (m *Monitor) RunOnce(ctx context.Context) (*contract.Report, error) {
	if !m.active.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer m.active.Store(false)

	previous, err := m.repo.Latest(ctx)
	if err != nil && !errors.Is(err, history.ErrNotFound) {
		m.logger.Warn().Err(err).Msg("could not load previous run")
	}

	report := m.runner.Run(ctx)

	if err := m.repo.Save(ctx, report); err != nil {
		return report, fmt.Errorf("save run %s: %w", report.RunID, err)
	}

	if eventType, ok := transition(previous, report); ok && m.notifier != nil {
		if err := m.notifier.Notify(ctx, notify.NewRunEvent(eventType, report)); err != nil {
			m.logger.Error().Err(err).
				Str("run_id", report.RunID.String()).
				Str("event", string(eventType)).
				Msg("failed to send notification")
		}
	}

	return report, nil
}

func (m *Monitor) runScheduled() {
	m.mu.Lock()
	base := m.baseCtx
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, m.runTimeout)
	defer cancel()

	if _, err := m.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			m.logger.Info().Msg("skipping scheduled run, previous run still in progress")
			return
		}
		m.logger.Error().Err(err).Msg("scheduled run failed")
	}
}

// transition decides which event, if any, a run produces given the run
// before it.
func transition(previous, current *contract.Report) (notify.EventType, bool) {
	if !current.Passed() {
		return notify.EventRunFailed, true
	}
	if previous != nil && !previous.Passed() {
		return notify.EventRunRecovered, true
	}
	return "", false
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
