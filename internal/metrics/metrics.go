// Package metrics exposes suiteboard's Prometheus collectors on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caevv/suiteboard/internal/simulator"
)

// Recorder holds the collectors. It implements simulator.Observer.
type Recorder struct {
	registry *prometheus.Registry

	executionsTotal   *prometheus.CounterVec
	runningJobs       prometheus.Gauge
	executionDuration *prometheus.HistogramVec
	triggersTotal     *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
}

var _ simulator.Observer = (*Recorder)(nil)

// New creates a Recorder with Go and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		executionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "suiteboard_executions_total",
			Help: "Finished executions by terminal status.",
		}, []string{"status"}),
		runningJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "suiteboard_running_jobs",
			Help: "Jobs currently running.",
		}),
		executionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "suiteboard_execution_duration_seconds",
			Help:    "Duration of finished executions.",
			Buckets: []float64{1, 5, 10, 15, 20, 30, 60, 300, 1800, 7200},
		}, []string{"status"}),
		triggersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "suiteboard_triggers_total",
			Help: "Triggered jobs by origin.",
		}, []string{"triggered_by"}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "suiteboard_http_requests_total",
			Help: "HTTP requests handled by the API.",
		}, []string{"path", "method", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) OnTrigger(ev simulator.Event) {
	r.runningJobs.Inc()
	r.triggersTotal.WithLabelValues(triggerOrigin(ev.Execution.TriggeredBy)).Inc()
}

func (r *Recorder) OnFinish(ev simulator.Event) {
	r.runningJobs.Dec()
	status := string(ev.Job.Status)
	r.executionsTotal.WithLabelValues(status).Inc()
	if d := ev.Execution.Duration(); d > 0 {
		r.executionDuration.WithLabelValues(status).Observe(d.Seconds())
	}
}

// ObserveHTTP counts one API request. pattern is the matched route, not the
// raw path, to keep label cardinality bounded.
func (r *Recorder) ObserveHTTP(pattern, method string, code int) {
	r.httpRequestsTotal.WithLabelValues(pattern, method, strconv.Itoa(code)).Inc()
}

// triggerOrigin collapses per-schedule values so every schedule does not
// become its own series.
func triggerOrigin(triggeredBy string) string {
	switch {
	case triggeredBy == "":
		return simulator.ManualTrigger
	case strings.HasPrefix(triggeredBy, "Scheduler:"):
		return "Scheduler"
	default:
		return triggeredBy
	}
}
