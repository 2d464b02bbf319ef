package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fulfillment outcome labels.
const (
	OutcomeFulfilled         = "fulfilled"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeConflict          = "conflict"
	OutcomeRejected          = "rejected"
	OutcomeError             = "error"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fulfillments    *prometheus.CounterVec
	fulfilledUnits  prometheus.Counter
	txRetries       *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyops_http_requests_total",
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "supplyops_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	fulfillments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyops_fulfillments_total",
		Help: "Fulfillment attempts partitioned by outcome.",
	}, []string{"outcome"})
	units := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "supplyops_fulfilled_units_total",
		Help: "Units of stock drawn by committed fulfillments.",
	})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyops_tx_retries_total",
		Help: "Transactions retried after lock contention, by SQLSTATE.",
	}, []string{"code"})
	registry.MustRegister(requests, duration, fulfillments, units, retries)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		fulfillments:    fulfillments,
		fulfilledUnits:  units,
		txRetries:       retries,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveFulfillment counts one fulfillment attempt. units is only added for
// the fulfilled outcome.
func (m *Metrics) ObserveFulfillment(outcome string, units int64) {
	if m == nil {
		return
	}
	m.fulfillments.WithLabelValues(outcome).Inc()
	if outcome == OutcomeFulfilled && units > 0 {
		m.fulfilledUnits.Add(float64(units))
	}
}

// ObserveTxRetry counts a transaction retry.
func (m *Metrics) ObserveTxRetry(code string) {
	if m == nil {
		return
	}
	m.txRetries.WithLabelValues(code).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
