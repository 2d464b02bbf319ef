package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `supplyops_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `supplyops_http_request_duration_seconds_bucket{route="/test"`)
}

func TestObserveFulfillmentAndRetries(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveFulfillment(OutcomeFulfilled, 4)
	metrics.ObserveFulfillment(OutcomeFulfilled, 2)
	metrics.ObserveFulfillment(OutcomeInsufficientStock, 9)
	metrics.ObserveTxRetry("40P01")

	body := scrape(t, metrics)
	require.Contains(t, body, `supplyops_fulfillments_total{outcome="fulfilled"} 2`)
	require.Contains(t, body, `supplyops_fulfillments_total{outcome="insufficient_stock"} 1`)
	require.Contains(t, body, "supplyops_fulfilled_units_total 6")
	require.Contains(t, body, `supplyops_tx_retries_total{code="40P01"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveFulfillment(OutcomeConflict, 1)
	metrics.ObserveTxRetry("40001")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, metrics.Middleware(next))
	require.False(t, strings.Contains(rr.Body.String(), "supplyops_"))
}
