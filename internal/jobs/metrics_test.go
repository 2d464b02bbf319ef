package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	_ = m.Track("digest").End(nil)
	err := m.Track("digest").End(errors.New("boom"))
	assert.EqualError(t, err, "boom")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("digest", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("digest", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("digest")))
}

func TestReadinessCollectors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetReadyToClose("order", 3)
	m.SetReadyToClose("order", 2)
	m.ObserveReadiness("request")
	m.ObserveReadiness("request")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.readyToClose.WithLabelValues("order")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.readiness.WithLabelValues("request")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SetReadyToClose("order", 1)
	m.ObserveReadiness("order")
	assert.NoError(t, m.Track("x").End(nil))
}
