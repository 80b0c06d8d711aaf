// Package simulator runs simulated test-suite jobs. Each trigger records an
// execution, walks a fixed sequence of progress steps on clock timers and
// resolves to a terminal status chosen by a Decider.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/caevv/suiteboard/internal/clock"
	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/ident"
	"github.com/caevv/suiteboard/internal/registry"
)

var (
	// ErrJobNotFound is returned when cancelling an unknown job.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobFinished is returned when cancelling a job that already ended.
	ErrJobFinished = errors.New("job already finished")
)

// ManualTrigger is the triggered_by value for user-initiated runs.
const ManualTrigger = "Manual"

// Log lines written over a job's life.
const (
	logStarted      = "Job started..."
	logInitializing = "Initializing test environment..."
	logSucceeded    = "Test completed successfully!"
	logFailed       = "Test failed with errors."
	logCancelled    = "Job cancelled."
	logInterrupted  = "Job interrupted by shutdown."
)

// Steps are the progress messages appended in order while a job runs.
var Steps = []string{
	"Setting up test environment...",
	"Running health checks...",
	"Executing test cases...",
	"Collecting results...",
	"Generating reports...",
}

// Handle identifies a triggered job and its execution record.
type Handle struct {
	JobID       string `json:"job_id"`
	ExecutionID string `json:"execution_id"`
}

// Runner triggers and cancels suite runs. The simulator is one
// implementation; a real dispatcher would be another.
type Runner interface {
	Trigger(ctx context.Context, suite domain.TestSuite, triggeredBy string) (Handle, error)
	TriggerBatch(ctx context.Context, suites []domain.TestSuite, triggeredBy string) ([]Handle, error)
	Cancel(jobID string) error
}

// Event describes a job at a lifecycle point.
type Event struct {
	Job       domain.RunningJob
	Execution domain.Execution
	Suite     domain.TestSuite
}

// Observer is notified when jobs start and when they reach a terminal
// status. Calls happen outside the simulator's locks.
type Observer interface {
	OnTrigger(Event)
	OnFinish(Event)
}

type run struct {
	suite       domain.TestSuite
	executionID string
	step        clock.Timer
	watchdog    clock.Timer
	cleanup     clock.Timer
}

// Simulator implements Runner with timer-driven fake work.
type Simulator struct {
	reg       *registry.Registry
	clock     clock.Clock
	cfg       Config
	decider   Decider
	observers []Observer
	logger    *slog.Logger

	mu   sync.Mutex
	runs map[string]*run
}

var _ Runner = (*Simulator)(nil)

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock sets the clock that drives step timers.
func WithClock(c clock.Clock) Option { return func(s *Simulator) { s.clock = c } }

// WithDecider sets the outcome strategy.
func WithDecider(d Decider) Option { return func(s *Simulator) { s.decider = d } }

// WithObserver adds a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Simulator) { s.logger = l } }

// New returns a Simulator writing to reg.
func New(reg *registry.Registry, cfg Config, opts ...Option) *Simulator {
	s := &Simulator{
		reg:     reg,
		clock:   clock.Real(),
		cfg:     cfg,
		decider: RandomDecider{SuccessRate: DefaultSuccessRate},
		logger:  slog.Default(),
		runs:    make(map[string]*run),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Rand == nil {
		s.cfg.Rand = rand.Float64
	}
	s.logger = s.logger.With("component", "simulator")
	return s
}

// Trigger starts a simulated run of suite. The execution and running job
// are recorded before Trigger returns; the steps proceed on timers.
func (s *Simulator) Trigger(ctx context.Context, suite domain.TestSuite, triggeredBy string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	_, span := otel.Tracer("suiteboard/simulator").Start(ctx, "simulator.Trigger")
	defer span.End()

	if triggeredBy == "" {
		triggeredBy = ManualTrigger
	}
	now := s.clock.Now().UTC()

	exec, err := s.reg.AddExecution(domain.Execution{
		SuiteID:       suite.ID,
		SuiteName:     suite.Name,
		Product:       suite.PrimaryProduct(),
		Environment:   suite.PrimaryEnvironment(),
		Agent:         suite.Agent,
		TestSuiteType: suite.TestSuiteType,
		TriggeredBy:   triggeredBy,
		Status:        domain.StatusRunning,
		StartTime:     now,
	})
	if err != nil {
		// The record is kept in memory; only the write failed.
		s.logger.Warn("execution not persisted", "suite_id", suite.ID, "error", err)
	}

	jobID := ident.New()
	job := domain.RunningJob{
		ID:          jobID,
		ExecutionID: exec.ID,
		SuiteID:     suite.ID,
		SuiteName:   suite.Name,
		Product:     suite.PrimaryProduct(),
		Environment: suite.PrimaryEnvironment(),
		Agent:       suite.Agent,
		Status:      domain.StatusRunning,
		StartTime:   now,
		Logs:        []string{logStarted, logInitializing},
	}
	s.reg.UpsertRunningJob(jobID, job)

	span.SetAttributes(
		attribute.String("suite.id", suite.ID),
		attribute.String("job.id", jobID),
		attribute.String("triggered_by", triggeredBy),
	)

	r := &run{suite: suite.Clone(), executionID: exec.ID}
	s.mu.Lock()
	s.runs[jobID] = r
	r.step = s.clock.AfterFunc(s.stepDelay(), func() { s.advance(jobID, 0) })
	if s.cfg.EnforceTimeout && suite.TimeoutMinutes > 0 {
		minutes := suite.TimeoutMinutes
		r.watchdog = s.clock.AfterFunc(time.Duration(minutes)*time.Minute, func() { s.timeout(jobID, minutes) })
	}
	s.mu.Unlock()

	s.logger.Info("job triggered",
		"job_id", jobID,
		"execution_id", exec.ID,
		"suite", suite.Name,
		"triggered_by", triggeredBy)
	s.notify(Event{Job: job, Execution: exec, Suite: suite}, Observer.OnTrigger)

	return Handle{JobID: jobID, ExecutionID: exec.ID}, nil
}

// TriggerBatch starts one independent run per suite.
func (s *Simulator) TriggerBatch(ctx context.Context, suites []domain.TestSuite, triggeredBy string) ([]Handle, error) {
	handles := make([]Handle, 0, len(suites))
	for _, suite := range suites {
		h, err := s.Trigger(ctx, suite, triggeredBy)
		if err != nil {
			return handles, fmt.Errorf("trigger %s: %w", suite.Name, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Cancel moves a running job to cancelled immediately. Timers already armed
// still fire but find the job terminal and do nothing.
func (s *Simulator) Cancel(jobID string) error {
	job, ok := s.reg.RunningJob(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, jobID, job.Status)
	}

	if !s.finish(jobID, domain.StatusCancelled, logCancelled, s.cfg.CancelCleanupDelay) {
		return fmt.Errorf("%w: %s", ErrJobFinished, jobID)
	}
	s.logger.Info("job cancelled", "job_id", jobID)
	return nil
}

// Close stops every pending timer and marks unfinished jobs as errored so
// no execution is left running after the process exits.
func (s *Simulator) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.runs))
	for id, r := range s.runs {
		stopTimers(r)
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.finish(id, domain.StatusError, logInterrupted, 0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.runs {
		s.reg.RemoveRunningJob(id)
		delete(s.runs, id)
	}
}

// InFlight returns the number of jobs whose timers are still tracked.
func (s *Simulator) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// advance appends step i and arms the next step, or resolves the job after
// the last one.
func (s *Simulator) advance(jobID string, i int) {
	if !s.reg.UpdateRunningJob(jobID, domain.RunningJobPatch{AppendLogs: []string{Steps[i]}}) {
		return
	}

	if i+1 < len(Steps) {
		s.mu.Lock()
		if r, ok := s.runs[jobID]; ok {
			r.step = s.clock.AfterFunc(s.stepDelay(), func() { s.advance(jobID, i+1) })
		}
		s.mu.Unlock()
		return
	}

	status := s.decider.Decide()
	line := logFailed
	if status == domain.StatusSuccess {
		line = logSucceeded
	}
	s.finish(jobID, status, line, s.cfg.CleanupDelay)
}

func (s *Simulator) timeout(jobID string, minutes int) {
	line := fmt.Sprintf("Job timed out after %d minute(s).", minutes)
	if s.finish(jobID, domain.StatusError, line, s.cfg.CleanupDelay) {
		s.logger.Warn("job timed out", "job_id", jobID, "timeout_minutes", minutes)
	}
}

// finish moves a job to a terminal status, mirrors it onto the execution
// and schedules removal. A cleanupAfter of zero removes the job at once.
// It reports false if the job was already terminal.
func (s *Simulator) finish(jobID string, status domain.ExecutionStatus, line string, cleanupAfter time.Duration) bool {
	end := s.clock.Now().UTC()
	applied := s.reg.UpdateRunningJob(jobID, domain.RunningJobPatch{
		Status:     &status,
		EndTime:    &end,
		AppendLogs: []string{line},
	})
	if !applied {
		return false
	}
	job, _ := s.reg.RunningJob(jobID)

	s.mu.Lock()
	r, ok := s.runs[jobID]
	if ok {
		if r.watchdog != nil {
			r.watchdog.Stop()
		}
		if cleanupAfter > 0 {
			r.cleanup = s.clock.AfterFunc(cleanupAfter, func() { s.remove(jobID) })
		}
	}
	s.mu.Unlock()
	if !ok {
		return true
	}

	if err := s.reg.UpdateExecution(r.executionID, domain.ExecutionPatch{Status: &status, EndTime: &end}); err != nil {
		s.logger.Warn("execution not updated", "execution_id", r.executionID, "error", err)
	}
	if cleanupAfter <= 0 {
		s.remove(jobID)
	}

	s.logger.Info("job finished", "job_id", jobID, "status", status)

	exec, _ := s.reg.Execution(r.executionID)
	s.notify(Event{Job: job, Execution: exec, Suite: r.suite}, Observer.OnFinish)
	return true
}

func (s *Simulator) remove(jobID string) {
	s.reg.RemoveRunningJob(jobID)
	s.mu.Lock()
	delete(s.runs, jobID)
	s.mu.Unlock()
}

func (s *Simulator) stepDelay() time.Duration {
	return s.cfg.StepBase + time.Duration(s.cfg.Rand()*float64(s.cfg.StepJitter))
}

func (s *Simulator) notify(ev Event, fn func(Observer, Event)) {
	for _, o := range s.observers {
		fn(o, ev)
	}
}

func stopTimers(r *run) {
	for _, t := range []clock.Timer{r.step, r.watchdog, r.cleanup} {
		if t != nil {
			t.Stop()
		}
	}
}
