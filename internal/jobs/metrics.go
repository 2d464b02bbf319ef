package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	readyToClose *prometheus.GaugeVec
	readiness    *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetReadyToClose records how many records of kind ("order" or "request")
// currently wait to be closed.
func (m *Metrics) SetReadyToClose(kind string, count int) {
	if m == nil {
		return
	}
	m.readyToClose.WithLabelValues(kind).Set(float64(count))
}

// ObserveReadiness counts a fulfillment that made a record of kind ready to close.
func (m *Metrics) ObserveReadiness(kind string) {
	if m == nil {
		return
	}
	m.readiness.WithLabelValues(kind).Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyops_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyops_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "supplyops_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	ready := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "supplyops_ready_to_close",
		Help: "Orders and requests waiting to be closed, as of the last digest.",
	}, []string{"kind"})
	readiness := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyops_became_ready_total",
		Help: "Fulfillments that made an order or request ready to close.",
	}, []string{"kind"})
	registerer.MustRegister(runs, failures, duration, ready, readiness)
	return &Metrics{runs: runs, failures: failures, duration: duration, readyToClose: ready, readiness: readiness}
}
