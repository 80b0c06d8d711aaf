package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/caevv/suiteboard/internal/clock"
	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/registry"
	"github.com/caevv/suiteboard/internal/simulator"
	"github.com/caevv/suiteboard/internal/store"
)

var epoch = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

// mockRunner is a test implementation of simulator.Runner
type mockRunner struct {
	mu      sync.Mutex
	batches [][]domain.TestSuite
	by      []string
	err     error
}

func (m *mockRunner) Trigger(ctx context.Context, suite domain.TestSuite, triggeredBy string) (simulator.Handle, error) {
	hs, err := m.TriggerBatch(ctx, []domain.TestSuite{suite}, triggeredBy)
	if len(hs) == 0 {
		return simulator.Handle{}, err
	}
	return hs[0], err
}

func (m *mockRunner) TriggerBatch(_ context.Context, suites []domain.TestSuite, triggeredBy string) ([]simulator.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, suites)
	m.by = append(m.by, triggeredBy)
	if m.err != nil {
		return nil, m.err
	}
	hs := make([]simulator.Handle, len(suites))
	for i, s := range suites {
		hs[i] = simulator.Handle{JobID: "job-" + s.ID}
	}
	return hs, nil
}

func (m *mockRunner) Cancel(string) error { return nil }

func (m *mockRunner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	reg    *registry.Registry
	clk    *clock.Fake
	runner *mockRunner
	sched  *Scheduler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clk := clock.NewFake(epoch)
	reg := registry.Open(store.NewMemoryStore(), registry.WithClock(clk), registry.WithLogger(quietLogger()))
	runner := &mockRunner{}
	sched, err := New(context.Background(), reg, runner, "30s", quietLogger(), WithClock(clk))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return fixture{reg: reg, clk: clk, runner: runner, sched: sched}
}

func addSuite(t *testing.T, reg *registry.Registry, name string, products, envs []string) domain.TestSuite {
	t.Helper()
	s, err := reg.AddSuite(domain.SuiteSpec{
		Name:          name,
		Agent:         "default-agent",
		TargetURL:     "https://ci.example.com/" + name,
		Products:      products,
		Environments:  envs,
		TestSuiteType: "health-check",
	})
	if err != nil {
		t.Fatalf("AddSuite() error = %v", err)
	}
	return s
}

func addDailySchedule(t *testing.T, reg *registry.Registry, name string, products []string) domain.Schedule {
	t.Helper()
	s, err := reg.AddSchedule(domain.ScheduleSpec{
		Name:         name,
		Products:     products,
		Environments: []string{"PROD"},
		ScheduleType: domain.ScheduleInterval,
		Interval:     domain.IntervalDaily,
		Time:         "09:00",
	})
	if err != nil {
		t.Fatalf("AddSchedule() error = %v", err)
	}
	return s
}

func TestSweep_FiresDueScheduleOnce(t *testing.T) {
	f := newFixture(t)
	mdm := addSuite(t, f.reg, "mdm-smoke", []string{"MDM"}, []string{"PROD"})
	addSuite(t, f.reg, "cai-smoke", []string{"CAI"}, []string{"PROD"})
	sch := addDailySchedule(t, f.reg, "morning", []string{"MDM"})

	if got := f.sched.Sweep(f.clk.Now()); got != 0 {
		t.Fatalf("Sweep() before due fired %d", got)
	}

	f.clk.Advance(time.Hour)
	if got := f.sched.Sweep(f.clk.Now()); got != 1 {
		t.Fatalf("Sweep() at due time fired %d, want 1", got)
	}
	if f.runner.calls() != 1 {
		t.Fatalf("runner calls = %d, want 1", f.runner.calls())
	}
	if batch := f.runner.batches[0]; len(batch) != 1 || batch[0].ID != mdm.ID {
		t.Errorf("triggered suites = %+v, want only %s", batch, mdm.Name)
	}
	if f.runner.by[0] != "Scheduler: morning" {
		t.Errorf("triggeredBy = %q", f.runner.by[0])
	}

	updated, _ := f.reg.Schedule(sch.ID)
	if updated.LastRun == nil || !updated.LastRun.Equal(epoch.Add(time.Hour)) {
		t.Errorf("LastRun = %v", updated.LastRun)
	}
	wantNext := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	if !updated.NextRun.Equal(wantNext) {
		t.Errorf("NextRun = %v, want %v", updated.NextRun, wantNext)
	}

	// Same instant again: already advanced, nothing fires.
	if got := f.sched.Sweep(f.clk.Now()); got != 0 {
		t.Errorf("second Sweep() fired %d", got)
	}

	stats := f.sched.Stats()
	if stats.Sweeps != 3 || stats.Fired != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestSweep_SkipsInactive(t *testing.T) {
	f := newFixture(t)
	addSuite(t, f.reg, "mdm-smoke", []string{"MDM"}, []string{"PROD"})
	sch := addDailySchedule(t, f.reg, "paused", []string{"MDM"})
	if _, err := f.reg.ToggleSchedule(sch.ID); err != nil {
		t.Fatalf("ToggleSchedule() error = %v", err)
	}

	f.clk.Advance(2 * time.Hour)
	if got := f.sched.Sweep(f.clk.Now()); got != 0 {
		t.Errorf("Sweep() fired inactive schedule")
	}
}

func TestSweep_NoMatchingSuitesStillAdvances(t *testing.T) {
	f := newFixture(t)
	sch := addDailySchedule(t, f.reg, "empty", []string{"ANALYTICS"})

	f.clk.Advance(time.Hour)
	if got := f.sched.Sweep(f.clk.Now()); got != 1 {
		t.Fatalf("Sweep() fired %d, want 1", got)
	}
	if f.runner.calls() != 0 {
		t.Error("runner called with no matching suites")
	}
	updated, _ := f.reg.Schedule(sch.ID)
	if !updated.NextRun.After(f.clk.Now()) {
		t.Errorf("NextRun not advanced: %v", updated.NextRun)
	}
}

func TestSweep_RunnerErrorDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	f.runner.err = errors.New("dispatcher down")
	addSuite(t, f.reg, "mdm-smoke", []string{"MDM"}, []string{"PROD"})
	addSuite(t, f.reg, "cai-smoke", []string{"CAI"}, []string{"PROD"})
	a := addDailySchedule(t, f.reg, "a", []string{"MDM"})
	b := addDailySchedule(t, f.reg, "b", []string{"CAI"})

	f.clk.Advance(time.Hour)
	if got := f.sched.Sweep(f.clk.Now()); got != 0 {
		t.Errorf("Sweep() counted failed schedules as fired: %d", got)
	}
	if f.runner.calls() != 2 {
		t.Errorf("runner calls = %d, want 2", f.runner.calls())
	}
	for _, id := range []string{a.ID, b.ID} {
		s, _ := f.reg.Schedule(id)
		if !s.NextRun.After(f.clk.Now()) {
			t.Errorf("schedule %s not advanced after failure", s.Name)
		}
	}
}

func TestSweep_UnplannableStoredScheduleIsDeactivated(t *testing.T) {
	st := store.NewMemoryStore()
	stored := []domain.Schedule{{
		ID: "sch-broken",
		ScheduleSpec: domain.ScheduleSpec{
			Name:         "broken",
			Products:     []string{"MDM"},
			Environments: []string{"PROD"},
			ScheduleType: domain.ScheduleInterval,
			Interval:     domain.IntervalDaily,
			Time:         "25:00",
		},
		Active:  true,
		NextRun: epoch.Add(-time.Hour),
	}}
	data, err := json.Marshal(stored)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := st.Put(registry.KeySchedules, data); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	clk := clock.NewFake(epoch)
	reg := registry.Open(st, registry.WithClock(clk), registry.WithLogger(quietLogger()))
	addSuite(t, reg, "mdm-smoke", []string{"MDM"}, []string{"PROD"})
	runner := &mockRunner{}
	sched, err := New(context.Background(), reg, runner, "30s", quietLogger(), WithClock(clk))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		sched.Sweep(clk.Now())
		clk.Advance(30 * time.Second)
	}

	if runner.calls() != 1 {
		t.Errorf("runner calls = %d, want 1", runner.calls())
	}
	got, ok := reg.Schedule("sch-broken")
	if !ok {
		t.Fatal("schedule missing after sweep")
	}
	if got.Active {
		t.Error("schedule still active after failed re-plan")
	}
	if got.LastRun == nil || !got.LastRun.Equal(epoch) {
		t.Errorf("LastRun = %v, want %v", got.LastRun, epoch)
	}

	reopened := registry.Open(st, registry.WithClock(clk), registry.WithLogger(quietLogger()))
	if s, _ := reopened.Schedule("sch-broken"); s.Active {
		t.Error("deactivation was not persisted")
	}
}

func TestParseTick(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"30s", false},
		{"1m", false},
		{"every 45s", false},
		{"every 2 minutes", false},
		{"@every 10s", false},
		{"@hourly", false},
		{"*/15 * * * * *", false},
		{"", true},
		{"500ms", true},
		{"48h", true},
		{"every 0s", true},
		{"every day", true},
		{"not a schedule", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseTick(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTick(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNew_InvalidInterval(t *testing.T) {
	reg := registry.Open(store.NewMemoryStore(), registry.WithLogger(quietLogger()))
	if _, err := New(context.Background(), reg, &mockRunner{}, "sometimes", quietLogger()); err == nil {
		t.Error("New() with invalid interval should fail")
	}
	if _, err := New(context.Background(), reg, nil, "30s", quietLogger()); err == nil {
		t.Error("New() with nil runner should fail")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	reg := registry.Open(store.NewMemoryStore(), registry.WithLogger(quietLogger()))
	sched, err := New(context.Background(), reg, &mockRunner{}, "1s", quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := sched.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Wait for at least one tick
	time.Sleep(1500 * time.Millisecond)

	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if sched.Stats().Sweeps == 0 {
		t.Error("sweeper did not tick")
	}
}
