package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/simulator"
)

func TestRecorder_JobLifecycle(t *testing.T) {
	r := New()
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Second)

	ev := simulator.Event{
		Job:       domain.RunningJob{ID: "j", Status: domain.StatusRunning},
		Execution: domain.Execution{ID: "e", TriggeredBy: "Scheduler: nightly", StartTime: start},
	}
	r.OnTrigger(ev)
	r.OnTrigger(simulator.Event{Execution: domain.Execution{TriggeredBy: "Manual"}})

	if got := testutil.ToFloat64(r.runningJobs); got != 2 {
		t.Errorf("running jobs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.triggersTotal.WithLabelValues("Scheduler")); got != 1 {
		t.Errorf("scheduler triggers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.triggersTotal.WithLabelValues("Manual")); got != 1 {
		t.Errorf("manual triggers = %v, want 1", got)
	}

	ev.Job.Status = domain.StatusSuccess
	ev.Execution.Status = domain.StatusSuccess
	ev.Execution.EndTime = &end
	r.OnFinish(ev)

	if got := testutil.ToFloat64(r.runningJobs); got != 1 {
		t.Errorf("running jobs after finish = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.executionsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("success executions = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.executionDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveHTTP("GET /api/stats", "GET", 200)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`suiteboard_http_requests_total{code="200",method="GET",path="GET /api/stats"} 1`,
		"suiteboard_running_jobs 0",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
