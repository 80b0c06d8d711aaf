// Package registry owns suiteboard's domain state: test suites, executions,
// schedules and the transient running-job map. Every mutation is atomic
// and persisted collections are written back to the store after each change.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/caevv/suiteboard/internal/clock"
	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/ident"
	"github.com/caevv/suiteboard/internal/planner"
	"github.com/caevv/suiteboard/internal/store"
)

// Registry is the single owner of all domain collections. Readers receive
// copies; mutations go through Registry methods only.
type Registry struct {
	mu     sync.RWMutex
	store  store.Store
	clock  clock.Clock
	logger *slog.Logger

	suites     []domain.TestSuite
	executions []domain.Execution // most recent first
	schedules  []domain.Schedule
	jobs       map[string]domain.RunningJob

	readErrs []error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for storage warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock sets the clock used for timestamps and next-run computation.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// Open loads the persisted collections from st. Unreadable or malformed
// collections start empty and are reported as StorageReadError warnings;
// Open itself never fails on bad state.
func Open(st store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:  st,
		clock:  clock.Real(),
		logger: slog.Default(),
		jobs:   make(map[string]domain.RunningJob),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "registry")

	r.warn(load(st, KeySuites, &r.suites))
	r.warn(load(st, KeyExecutions, &r.executions))
	r.warn(load(st, KeySchedules, &r.schedules))

	r.logger.Debug("registry loaded",
		"suites", len(r.suites),
		"executions", len(r.executions),
		"schedules", len(r.schedules))
	return r
}

func (r *Registry) warn(err error) {
	if err == nil {
		return
	}
	r.readErrs = append(r.readErrs, err)
	var sre *StorageReadError
	if errors.As(err, &sre) {
		r.logger.Warn("stored collection unreadable, starting empty", "key", sre.Key, "error", sre.Err)
		return
	}
	r.logger.Warn("stored collection unreadable, starting empty", "error", err)
}

// LoadErrors returns the StorageReadErrors encountered by Open.
func (r *Registry) LoadErrors() []error {
	return append([]error(nil), r.readErrs...)
}

// persist writes one collection. It must be called with mu held.
func (r *Registry) persist(key string) error {
	var err error
	switch key {
	case KeySuites:
		err = save(r.store, key, r.suites)
	case KeyExecutions:
		err = save(r.store, key, r.executions)
	case KeySchedules:
		err = save(r.store, key, r.schedules)
	}
	if err != nil {
		r.logger.Error("failed to persist collection", "key", key, "error", err)
	}
	return err
}

// --- test suites ---

// AddSuite normalizes and validates spec, then stores a new suite. An
// invalid spec returns a *domain.ValidationError and stores nothing.
func (r *Registry) AddSuite(spec domain.SuiteSpec) (domain.TestSuite, error) {
	spec.Normalize()
	spec.ApplyDefaults()
	if err := domain.ValidateSuite(spec); err != nil {
		return domain.TestSuite{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	suite := domain.TestSuite{
		ID:        ident.New(),
		SuiteSpec: spec,
		CreatedAt: now,
		UpdatedAt: now,
	}.Clone()
	r.suites = append(r.suites, suite)

	return suite.Clone(), r.persist(KeySuites)
}

// UpdateSuite merges patch into the suite with the given id. The merged
// record is re-validated; on failure the stored suite is left unchanged.
func (r *Registry) UpdateSuite(id string, patch domain.SuitePatch) (domain.TestSuite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.suiteIndex(id)
	if i < 0 {
		return domain.TestSuite{}, fmt.Errorf("suite %s: %w", id, domain.ErrNotFound)
	}

	updated := r.suites[i].Clone()
	patch.Apply(&updated.SuiteSpec)
	updated.Normalize()
	if err := domain.ValidateSuite(updated.SuiteSpec); err != nil {
		return domain.TestSuite{}, err
	}
	updated.UpdatedAt = r.clock.Now().UTC()
	r.suites[i] = updated

	return updated.Clone(), r.persist(KeySuites)
}

// DeleteSuite removes the suite with the given id. Deleting an unknown id
// is a no-op. Executions of the suite are kept.
func (r *Registry) DeleteSuite(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.suiteIndex(id)
	if i < 0 {
		return nil
	}
	r.suites = append(r.suites[:i], r.suites[i+1:]...)
	return r.persist(KeySuites)
}

// Suites returns a snapshot of all suites in creation order.
func (r *Registry) Suites() []domain.TestSuite {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.TestSuite, len(r.suites))
	for i, s := range r.suites {
		out[i] = s.Clone()
	}
	return out
}

// Suite returns the suite with the given id.
func (r *Registry) Suite(id string) (domain.TestSuite, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.suiteIndex(id); i >= 0 {
		return r.suites[i].Clone(), true
	}
	return domain.TestSuite{}, false
}

func (r *Registry) suiteIndex(id string) int {
	for i := range r.suites {
		if r.suites[i].ID == id {
			return i
		}
	}
	return -1
}

// --- executions ---

// AddExecution records a new execution at the head of the history. The id
// and created_at are assigned here; status defaults to pending.
func (r *Registry) AddExecution(e domain.Execution) (domain.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	e.ID = ident.New()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = domain.StatusPending
	}
	if e.StartTime.IsZero() {
		e.StartTime = now
	}
	e = e.Clone()

	r.executions = append([]domain.Execution{e}, r.executions...)
	return e.Clone(), r.persist(KeyExecutions)
}

// UpdateExecution merges patch into the execution with the given id.
func (r *Registry) UpdateExecution(id string, patch domain.ExecutionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.executionIndex(id)
	if i < 0 {
		return fmt.Errorf("execution %s: %w", id, domain.ErrNotFound)
	}

	updated := r.executions[i].Clone()
	if err := patch.Apply(&updated); err != nil {
		return err
	}
	updated.UpdatedAt = r.clock.Now().UTC()
	r.executions[i] = updated
	return r.persist(KeyExecutions)
}

// Executions returns a snapshot of the history, most recent first.
func (r *Registry) Executions() []domain.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Execution, len(r.executions))
	for i, e := range r.executions {
		out[i] = e.Clone()
	}
	return out
}

// Execution returns the execution with the given id.
func (r *Registry) Execution(id string) (domain.Execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.executionIndex(id); i >= 0 {
		return r.executions[i].Clone(), true
	}
	return domain.Execution{}, false
}

func (r *Registry) executionIndex(id string) int {
	for i := range r.executions {
		if r.executions[i].ID == id {
			return i
		}
	}
	return -1
}

// --- schedules ---

// AddSchedule validates spec, computes its first next_run and stores it as
// active.
func (r *Registry) AddSchedule(spec domain.ScheduleSpec) (domain.Schedule, error) {
	spec.Normalize()
	if err := domain.ValidateSchedule(spec); err != nil {
		return domain.Schedule{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	next, err := planner.NextRun(spec, now)
	if err != nil {
		return domain.Schedule{}, err
	}

	s := domain.Schedule{
		ID:           ident.New(),
		ScheduleSpec: spec,
		Active:       true,
		NextRun:      next,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}.Clone()
	r.schedules = append(r.schedules, s)

	return s.Clone(), r.persist(KeySchedules)
}

// UpdateSchedule merges patch into the schedule with the given id and
// recomputes next_run.
func (r *Registry) UpdateSchedule(id string, patch domain.SchedulePatch) (domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.scheduleIndex(id)
	if i < 0 {
		return domain.Schedule{}, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}

	updated := r.schedules[i].Clone()
	patch.Apply(&updated)
	updated.Normalize()
	if err := domain.ValidateSchedule(updated.ScheduleSpec); err != nil {
		return domain.Schedule{}, err
	}

	now := r.clock.Now()
	next, err := planner.NextRun(updated.ScheduleSpec, now)
	if err != nil {
		return domain.Schedule{}, err
	}
	updated.NextRun = next
	updated.UpdatedAt = now.UTC()
	r.schedules[i] = updated

	return updated.Clone(), r.persist(KeySchedules)
}

// DeactivateSchedule records lastRun and switches the schedule off without
// re-validating it. The sweeper uses it for stored schedules whose next run
// can no longer be planned.
func (r *Registry) DeactivateSchedule(id string, lastRun time.Time) (domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.scheduleIndex(id)
	if i < 0 {
		return domain.Schedule{}, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}

	updated := r.schedules[i].Clone()
	updated.Active = false
	updated.LastRun = &lastRun
	updated.UpdatedAt = r.clock.Now().UTC()
	r.schedules[i] = updated

	return updated.Clone(), r.persist(KeySchedules)
}

// ToggleSchedule flips the active flag of the schedule with the given id.
func (r *Registry) ToggleSchedule(id string) (domain.Schedule, error) {
	s, ok := r.Schedule(id)
	if !ok {
		return domain.Schedule{}, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	active := !s.Active
	return r.UpdateSchedule(id, domain.SchedulePatch{Active: &active})
}

// DeleteSchedule removes the schedule with the given id. Unknown ids are a
// no-op.
func (r *Registry) DeleteSchedule(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.scheduleIndex(id)
	if i < 0 {
		return nil
	}
	r.schedules = append(r.schedules[:i], r.schedules[i+1:]...)
	return r.persist(KeySchedules)
}

// Schedules returns a snapshot of all schedules.
func (r *Registry) Schedules() []domain.Schedule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Schedule, len(r.schedules))
	for i, s := range r.schedules {
		out[i] = s.Clone()
	}
	return out
}

// Schedule returns the schedule with the given id.
func (r *Registry) Schedule(id string) (domain.Schedule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.scheduleIndex(id); i >= 0 {
		return r.schedules[i].Clone(), true
	}
	return domain.Schedule{}, false
}

func (r *Registry) scheduleIndex(id string) int {
	for i := range r.schedules {
		if r.schedules[i].ID == id {
			return i
		}
	}
	return -1
}

// --- running jobs ---

// UpsertRunningJob stores job under id, replacing any existing entry.
func (r *Registry) UpsertRunningJob(id string, job domain.RunningJob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job.ID = id
	r.jobs[id] = job.Clone()
}

// UpdateRunningJob merges patch into the job with the given id. It reports
// false, creating nothing, when the id is unknown or the job is already
// terminal.
func (r *Registry) UpdateRunningJob(id string, patch domain.RunningJobPatch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	job = job.Clone()
	if !patch.Apply(&job) {
		return false
	}
	r.jobs[id] = job
	return true
}

// RemoveRunningJob drops the job with the given id.
func (r *Registry) RemoveRunningJob(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, id)
}

// RunningJobs returns a snapshot of in-flight jobs ordered by start time.
func (r *Registry) RunningJobs() []domain.RunningJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.RunningJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// RunningJob returns the job with the given id.
func (r *Registry) RunningJob(id string) (domain.RunningJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return domain.RunningJob{}, false
	}
	return j.Clone(), true
}

// ActiveJobCount returns the size of the running-job map.
func (r *Registry) ActiveJobCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
