package registry

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/caevv/suiteboard/internal/clock"
	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/store"
)

var epoch = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) (*Registry, *store.MemoryStore, *clock.Fake) {
	t.Helper()
	st := store.NewMemoryStore()
	clk := clock.NewFake(epoch)
	return Open(st, WithClock(clk), WithLogger(quietLogger())), st, clk
}

func suiteSpec(name string) domain.SuiteSpec {
	return domain.SuiteSpec{
		Name:           name,
		Agent:          "harness-delegator",
		TargetURL:      "https://ci.example.com/hooks/" + name,
		Products:       []string{"MDM"},
		Environments:   []string{"PROD"},
		TestSuiteType:  "health-check",
		TimeoutMinutes: 30,
	}
}

func TestAddSuite(t *testing.T) {
	r, st, _ := newTestRegistry(t)

	got, err := r.AddSuite(suiteSpec("smoke"))
	if err != nil {
		t.Fatalf("AddSuite() error = %v", err)
	}
	if got.ID == "" {
		t.Error("AddSuite() did not assign an id")
	}
	if !got.CreatedAt.Equal(got.UpdatedAt) || !got.CreatedAt.Equal(epoch) {
		t.Errorf("timestamps = %v / %v, want both %v", got.CreatedAt, got.UpdatedAt, epoch)
	}

	suites := r.Suites()
	if len(suites) != 1 || suites[0].ID != got.ID {
		t.Fatalf("Suites() = %+v", suites)
	}
	if st.Puts() != 1 {
		t.Errorf("store writes = %d, want 1", st.Puts())
	}

	raw, err := st.Get(KeySuites)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	var env struct {
		Version int                `json:"version"`
		Items   []domain.TestSuite `json:"items"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("stored value is not an envelope: %v", err)
	}
	if env.Version != 1 || len(env.Items) != 1 || env.Items[0].Name != "smoke" {
		t.Errorf("stored envelope = %+v", env)
	}
}

func TestAddSuite_Invalid(t *testing.T) {
	r, st, _ := newTestRegistry(t)

	spec := suiteSpec("bad")
	spec.TargetURL = "ftp://nope"
	spec.Environments = nil

	_, err := r.AddSuite(spec)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("AddSuite() error = %v, want ValidationError", err)
	}
	for _, key := range []string{"target_url", "environments"} {
		if _, ok := ve.Fields[key]; !ok {
			t.Errorf("missing field error for %s: %v", key, ve.Fields)
		}
	}
	if len(r.Suites()) != 0 || st.Puts() != 0 {
		t.Error("invalid suite was stored")
	}
}

func TestAddSuite_DefaultsTimeout(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	spec := suiteSpec("defaults")
	spec.TimeoutMinutes = 0
	got, err := r.AddSuite(spec)
	if err != nil {
		t.Fatalf("AddSuite() error = %v", err)
	}
	if got.TimeoutMinutes != domain.DefaultTimeoutMinutes {
		t.Errorf("TimeoutMinutes = %d, want %d", got.TimeoutMinutes, domain.DefaultTimeoutMinutes)
	}
}

func TestUpdateSuite(t *testing.T) {
	r, _, clk := newTestRegistry(t)
	s, _ := r.AddSuite(suiteSpec("smoke"))

	clk.Advance(time.Minute)
	name := "smoke-v2"
	got, err := r.UpdateSuite(s.ID, domain.SuitePatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateSuite() error = %v", err)
	}
	if got.Name != "smoke-v2" || !got.UpdatedAt.After(got.CreatedAt) {
		t.Errorf("UpdateSuite() = %+v", got)
	}

	bad := "not a url"
	if _, err := r.UpdateSuite(s.ID, domain.SuitePatch{TargetURL: &bad}); err == nil {
		t.Fatal("UpdateSuite() with invalid url should fail")
	}
	stored, _ := r.Suite(s.ID)
	if stored.TargetURL != s.TargetURL {
		t.Errorf("invalid update changed TargetURL to %q", stored.TargetURL)
	}

	if _, err := r.UpdateSuite("missing", domain.SuitePatch{Name: &name}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateSuite(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateSuite_ExplicitTimeoutIsValidated(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	s, _ := r.AddSuite(suiteSpec("smoke"))
	writes := st.Puts()

	for _, timeout := range []int{0, 121} {
		timeout := timeout
		_, err := r.UpdateSuite(s.ID, domain.SuitePatch{TimeoutMinutes: &timeout})
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("UpdateSuite(timeout=%d) error = %v, want *ValidationError", timeout, err)
		}
		if _, ok := ve.Fields["timeout_minutes"]; !ok {
			t.Errorf("UpdateSuite(timeout=%d) fields = %v, want timeout_minutes", timeout, ve.Fields)
		}
	}

	stored, _ := r.Suite(s.ID)
	if stored.TimeoutMinutes != s.TimeoutMinutes {
		t.Errorf("TimeoutMinutes = %d, want unchanged %d", stored.TimeoutMinutes, s.TimeoutMinutes)
	}
	if st.Puts() != writes {
		t.Error("rejected update was persisted")
	}
}

func TestDeleteSuite(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	s, _ := r.AddSuite(suiteSpec("smoke"))
	if _, err := r.AddExecution(domain.Execution{SuiteID: s.ID, SuiteName: s.Name}); err != nil {
		t.Fatalf("AddExecution() error = %v", err)
	}

	if err := r.DeleteSuite("missing"); err != nil {
		t.Errorf("DeleteSuite(missing) error = %v", err)
	}
	writes := st.Puts()
	if err := r.DeleteSuite(s.ID); err != nil {
		t.Fatalf("DeleteSuite() error = %v", err)
	}
	if st.Puts() != writes+1 {
		t.Errorf("DeleteSuite wrote %d times, want 1", st.Puts()-writes)
	}
	if len(r.Suites()) != 0 {
		t.Error("suite still present")
	}
	if len(r.Executions()) != 1 {
		t.Error("deleting a suite removed its executions")
	}
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	s, _ := r.AddSuite(suiteSpec("smoke"))

	snap := r.Suites()
	snap[0].Products[0] = "CAI"
	snap[0].Name = "mutated"

	got, _ := r.Suite(s.ID)
	if got.Products[0] != "MDM" || got.Name != "smoke" {
		t.Errorf("snapshot mutation leaked into registry: %+v", got)
	}
}

func TestExecutions(t *testing.T) {
	r, _, clk := newTestRegistry(t)

	first, err := r.AddExecution(domain.Execution{SuiteName: "a"})
	if err != nil {
		t.Fatalf("AddExecution() error = %v", err)
	}
	if first.Status != domain.StatusPending {
		t.Errorf("default status = %s, want pending", first.Status)
	}

	clk.Advance(time.Second)
	second, _ := r.AddExecution(domain.Execution{SuiteName: "b", Status: domain.StatusRunning})

	list := r.Executions()
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("Executions() not most-recent-first: %+v", list)
	}

	success := domain.StatusSuccess
	end := clk.Now()
	if err := r.UpdateExecution(second.ID, domain.ExecutionPatch{Status: &success, EndTime: &end}); err != nil {
		t.Fatalf("UpdateExecution() error = %v", err)
	}

	running := domain.StatusRunning
	err = r.UpdateExecution(second.ID, domain.ExecutionPatch{Status: &running})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("UpdateExecution() backwards error = %v, want ErrInvalidTransition", err)
	}
	got, _ := r.Execution(second.ID)
	if got.Status != domain.StatusSuccess || got.EndTime == nil {
		t.Errorf("execution = %+v", got)
	}

	if err := r.UpdateExecution("missing", domain.ExecutionPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateExecution(missing) error = %v", err)
	}
}

func scheduleSpec() domain.ScheduleSpec {
	return domain.ScheduleSpec{
		Name:         "nightly",
		Products:     []string{"MDM"},
		Environments: []string{"PROD"},
		ScheduleType: domain.ScheduleInterval,
		Interval:     domain.IntervalDaily,
		Time:         "09:00",
		Timezone:     "UTC",
	}
}

func TestSchedules(t *testing.T) {
	r, _, clk := newTestRegistry(t)

	s, err := r.AddSchedule(scheduleSpec())
	if err != nil {
		t.Fatalf("AddSchedule() error = %v", err)
	}
	if !s.Active {
		t.Error("new schedule is not active")
	}
	wantNext := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	if !s.NextRun.Equal(wantNext) {
		t.Errorf("NextRun = %v, want %v", s.NextRun, wantNext)
	}

	toggled, err := r.ToggleSchedule(s.ID)
	if err != nil {
		t.Fatalf("ToggleSchedule() error = %v", err)
	}
	if toggled.Active || toggled.Name != s.Name {
		t.Errorf("ToggleSchedule() = %+v", toggled)
	}

	clk.Advance(24 * time.Hour)
	at := "07:30"
	updated, err := r.UpdateSchedule(s.ID, domain.SchedulePatch{Time: &at})
	if err != nil {
		t.Fatalf("UpdateSchedule() error = %v", err)
	}
	wantNext = time.Date(2024, 1, 17, 7, 30, 0, 0, time.UTC)
	if !updated.NextRun.Equal(wantNext) {
		t.Errorf("NextRun after update = %v, want %v", updated.NextRun, wantNext)
	}

	if err := r.DeleteSchedule(s.ID); err != nil {
		t.Fatalf("DeleteSchedule() error = %v", err)
	}
	if len(r.Schedules()) != 0 {
		t.Error("schedule still present")
	}
}

func TestAddSchedule_InvalidTime(t *testing.T) {
	r, st, _ := newTestRegistry(t)

	for _, at := range []string{"25:00", "9h", "09:75"} {
		spec := scheduleSpec()
		spec.Time = at
		_, err := r.AddSchedule(spec)
		if !errors.Is(err, domain.ErrInvalidScheduleConfig) {
			t.Errorf("AddSchedule(time=%q) error = %v, want ErrInvalidScheduleConfig", at, err)
		}
	}
	if st.Puts() != 0 {
		t.Error("invalid schedule was persisted")
	}
}

func TestRunningJobs(t *testing.T) {
	r, st, _ := newTestRegistry(t)

	cancelled := domain.StatusCancelled
	if r.UpdateRunningJob("ghost", domain.RunningJobPatch{Status: &cancelled}) {
		t.Error("UpdateRunningJob(absent) = true")
	}
	if _, ok := r.RunningJob("ghost"); ok {
		t.Error("UpdateRunningJob created an absent job")
	}

	r.UpsertRunningJob("b", domain.RunningJob{Status: domain.StatusRunning, StartTime: epoch.Add(time.Second)})
	r.UpsertRunningJob("a", domain.RunningJob{Status: domain.StatusRunning, StartTime: epoch, Logs: []string{"Job started..."}})

	jobs := r.RunningJobs()
	if len(jobs) != 2 || jobs[0].ID != "a" || jobs[1].ID != "b" {
		t.Fatalf("RunningJobs() order = %+v", jobs)
	}

	if !r.UpdateRunningJob("a", domain.RunningJobPatch{Status: &cancelled, AppendLogs: []string{"Job cancelled."}}) {
		t.Fatal("cancel patch refused")
	}
	success := domain.StatusSuccess
	if r.UpdateRunningJob("a", domain.RunningJobPatch{Status: &success}) {
		t.Error("terminal job accepted a new status")
	}
	a, _ := r.RunningJob("a")
	if a.Status != domain.StatusCancelled || len(a.Logs) != 2 {
		t.Errorf("job a = %+v", a)
	}

	r.RemoveRunningJob("a")
	if r.ActiveJobCount() != 1 {
		t.Errorf("ActiveJobCount() = %d, want 1", r.ActiveJobCount())
	}
	if st.Puts() != 0 {
		t.Error("running jobs were persisted")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := store.NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}

	r := Open(st, WithLogger(quietLogger()))
	s, err := r.AddSuite(suiteSpec("smoke"))
	if err != nil {
		t.Fatalf("AddSuite() error = %v", err)
	}
	e, _ := r.AddExecution(domain.Execution{SuiteID: s.ID, SuiteName: s.Name, Status: domain.StatusRunning})
	sch, err := r.AddSchedule(scheduleSpec())
	if err != nil {
		t.Fatalf("AddSchedule() error = %v", err)
	}
	r.UpsertRunningJob("job", domain.RunningJob{Status: domain.StatusRunning})
	st.Close()

	st2, err := store.NewJSONStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	r2 := Open(st2, WithLogger(quietLogger()))

	if len(r2.LoadErrors()) != 0 {
		t.Errorf("LoadErrors() = %v", r2.LoadErrors())
	}
	if got, ok := r2.Suite(s.ID); !ok || got.Name != "smoke" || got.TargetURL != s.TargetURL {
		t.Errorf("suite after reopen = %+v", got)
	}
	if got, ok := r2.Execution(e.ID); !ok || got.Status != domain.StatusRunning {
		t.Errorf("execution after reopen = %+v", got)
	}
	if got, ok := r2.Schedule(sch.ID); !ok || !got.NextRun.Equal(sch.NextRun) {
		t.Errorf("schedule after reopen = %+v", got)
	}
	if r2.ActiveJobCount() != 0 {
		t.Error("running jobs survived a restart")
	}
}

func TestOpen_CorruptData(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Put(KeySuites, []byte(`{"version":1,"items":[{"id":`))
	_ = st.Put(KeyExecutions, []byte(`not json`))
	_ = st.Put(KeySchedules, []byte(`{"version":99,"items":[]}`))

	r := Open(st, WithLogger(quietLogger()))

	if len(r.Suites()) != 0 || len(r.Executions()) != 0 || len(r.Schedules()) != 0 {
		t.Error("corrupt collections were not reset to empty")
	}
	errs := r.LoadErrors()
	if len(errs) != 3 {
		t.Fatalf("LoadErrors() = %v, want 3 errors", errs)
	}
	for _, err := range errs {
		var sre *StorageReadError
		if !errors.As(err, &sre) {
			t.Errorf("error %v is not a StorageReadError", err)
		}
	}

	// The registry stays usable and overwrites the bad value.
	if _, err := r.AddSuite(suiteSpec("fresh")); err != nil {
		t.Fatalf("AddSuite() after corrupt load error = %v", err)
	}
}

func TestOpen_LegacyArray(t *testing.T) {
	st := store.NewMemoryStore()
	legacy := `[{"id":"abc","name":"old","agent":"default-agent","target_url":"http://x","products":["CAI"],"environments":["DEV"],"test_suite_type":"functional","timeout_minutes":30}]`
	_ = st.Put(KeySuites, []byte(legacy))

	r := Open(st, WithLogger(quietLogger()))
	got, ok := r.Suite("abc")
	if !ok || got.Name != "old" {
		t.Fatalf("legacy suite not loaded: %+v", r.Suites())
	}
	if len(r.LoadErrors()) != 0 {
		t.Errorf("LoadErrors() = %v", r.LoadErrors())
	}

	name := "migrated"
	if _, err := r.UpdateSuite("abc", domain.SuitePatch{Name: &name}); err != nil {
		t.Fatalf("UpdateSuite() error = %v", err)
	}
	raw, _ := st.Get(KeySuites)
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version != schemaVersion {
		t.Errorf("legacy value not migrated to envelope: %s", raw)
	}
}

type failingStore struct{ store.Store }

func (failingStore) Put(string, []byte) error { return errors.New("disk full") }

func TestWriteFailureIsReturned(t *testing.T) {
	r := Open(failingStore{store.NewMemoryStore()}, WithLogger(quietLogger()))

	_, err := r.AddSuite(suiteSpec("smoke"))
	if err == nil {
		t.Fatal("AddSuite() with failing store returned nil error")
	}
}
