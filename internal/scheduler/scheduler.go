// Package scheduler fires due schedules. A robfig/cron entry ticks at the
// sweep interval; each tick triggers the suites matching every active
// schedule whose next run has passed, then advances that schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/caevv/suiteboard/internal/clock"
	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/registry"
	"github.com/caevv/suiteboard/internal/simulator"
	"github.com/caevv/suiteboard/internal/views"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = "30s"

// TriggeredByPrefix prefixes the schedule name in an execution's
// triggered_by field.
const TriggeredByPrefix = "Scheduler: "

// Scheduler wraps robfig/cron and sweeps due schedules with context support.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	clock  clock.Clock

	reg    *registry.Registry
	runner simulator.Runner

	tickExpr string
	entryID  cron.EntryID

	sweepMu sync.Mutex // one sweep at a time
	mu      sync.RWMutex
	stats   Stats
	wg      sync.WaitGroup
}

// Stats describes sweeper activity.
type Stats struct {
	Interval  string    `json:"interval"`
	LastSweep time.Time `json:"last_sweep"`
	NextSweep time.Time `json:"next_sweep"`
	Sweeps    int64     `json:"sweeps"`
	Fired     int64     `json:"fired"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to decide which schedules are due.
func WithClock(c clock.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// New creates a Scheduler that sweeps reg every interval and triggers due
// schedules through runner. The context is used for graceful shutdown.
func New(ctx context.Context, reg *registry.Registry, runner simulator.Runner, interval string, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval == "" {
		interval = DefaultSweepInterval
	}
	logger = logger.With("component", "scheduler")

	tick, err := ParseTick(interval)
	if err != nil {
		return nil, err
	}

	schedCtx, cancel := context.WithCancel(ctx)

	// Create cron with custom logger that wraps slog
	cronLogger := &cronSlogAdapter{logger: logger}

	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger), // Recover from panics
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	s := &Scheduler{
		cron:     c,
		ctx:      schedCtx,
		cancel:   cancel,
		logger:   logger,
		clock:    clock.Real(),
		reg:      reg,
		runner:   runner,
		tickExpr: interval,
		stats:    Stats{Interval: interval},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.entryID = c.Schedule(tick, cron.FuncJob(func() {
		s.wg.Add(1)
		defer s.wg.Done()
		s.Sweep(s.clock.Now())
	}))
	return s, nil
}

// Sweep triggers every active schedule due at now and advances its next
// run. It returns the number of schedules fired. A failing schedule is
// logged and does not stop the others.
func (s *Scheduler) Sweep(now time.Time) int {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	suites := s.reg.Suites()
	fired := 0
	for _, sch := range s.reg.Schedules() {
		if s.ctx.Err() != nil {
			break
		}
		if !sch.Due(now) {
			continue
		}
		if err := s.fire(sch, suites, now); err != nil {
			s.logger.Error("schedule sweep failed",
				slog.String("schedule_id", sch.ID),
				slog.String("schedule", sch.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		fired++
	}

	s.mu.Lock()
	s.stats.LastSweep = now
	s.stats.Sweeps++
	s.stats.Fired += int64(fired)
	s.mu.Unlock()

	if fired > 0 {
		s.logger.Info("sweep completed", slog.Int("fired", fired))
	}
	return fired
}

func (s *Scheduler) fire(sch domain.Schedule, suites []domain.TestSuite, now time.Time) error {
	matched := views.SuitesForSchedule(suites, sch)
	triggeredBy := TriggeredByPrefix + sch.Name

	var triggerErr error
	if len(matched) == 0 {
		s.logger.Info("schedule due with no matching suites",
			slog.String("schedule_id", sch.ID),
			slog.String("schedule", sch.Name),
		)
	} else {
		handles, err := s.runner.TriggerBatch(s.ctx, matched, triggeredBy)
		if err != nil {
			triggerErr = fmt.Errorf("trigger: %w", err)
		}
		s.logger.Info("schedule fired",
			slog.String("schedule_id", sch.ID),
			slog.String("schedule", sch.Name),
			slog.Int("triggered", len(handles)),
		)
	}

	// Advance even when triggering failed so one bad run is not retried
	// on every tick.
	if _, err := s.reg.UpdateSchedule(sch.ID, domain.SchedulePatch{LastRun: &now}); err != nil {
		s.logger.Warn("schedule cannot be re-planned, deactivating",
			slog.String("schedule_id", sch.ID),
			slog.String("schedule", sch.Name),
			slog.String("error", err.Error()),
		)
		if _, derr := s.reg.DeactivateSchedule(sch.ID, now); derr != nil {
			return fmt.Errorf("deactivate schedule: %w", derr)
		}
		return fmt.Errorf("advance next run: %w", err)
	}
	return triggerErr
}

// Start begins ticking.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", slog.String("sweep_interval", s.tickExpr))
	s.cron.Start()
	return nil
}

// Stop gracefully stops the scheduler and waits for an in-flight sweep.
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping scheduler")

	// Cancel the scheduler context to signal the sweep to stop
	s.cancel()

	// Stop accepting new ticks
	cronStopCtx := s.cron.Stop()
	<-cronStopCtx.Done()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// Stats returns sweeper statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	stats := s.stats
	s.mu.RUnlock()

	// Get the most up-to-date next tick from cron
	if entry := s.cron.Entry(s.entryID); entry.ID != 0 {
		stats.NextSweep = entry.Next
	}
	return stats
}

// cronSlogAdapter adapts slog.Logger to cron.Logger interface.
type cronSlogAdapter struct {
	logger *slog.Logger
}

func (a *cronSlogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a *cronSlogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	attrs := make([]any, 0, len(keysAndValues)+1)
	attrs = append(attrs, slog.String("error", err.Error()))
	attrs = append(attrs, keysAndValues...)
	a.logger.Error(msg, attrs...)
}
