package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/metrics"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	return New(config.PrometheusConfig{Namespace: "holdfast", Enabled: true})
}

func TestSinkCounter(t *testing.T) {
	s := newTestSink(t)

	s.Count("pool.alerts", 1, metrics.PoolTag("db"), metrics.SeverityTag("warning"))
	s.Count("pool.alerts", 2, metrics.PoolTag("db"), metrics.SeverityTag("warning"))
	s.Count("pool.alerts", 1, metrics.PoolTag("cache"), metrics.SeverityTag("critical"))

	f := s.families["counter/pool.alerts"]
	require.NotNil(t, f)
	assert.Equal(t, []string{"pool", "severity"}, f.labels)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.counter.WithLabelValues("db", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.counter.WithLabelValues("cache", "critical")))

	n, err := testutil.GatherAndCount(s.Registry(), "holdfast_pool_alerts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSinkGaugeAndHistogram(t *testing.T) {
	s := newTestSink(t)

	s.Gauge("circuits.open", 3)
	s.Gauge("circuits.open", 1)
	s.Histogram("operation.latency_ms", 12, metrics.OperationTag("charge"))
	s.Histogram("operation.latency_ms", 40, metrics.OperationTag("charge"))
	s.Histogram("operation.latency_ms", 2, metrics.OperationTag("refund"))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.families["gauge/circuits.open"].gauge.WithLabelValues()))

	n, err := testutil.GatherAndCount(s.Registry(), "holdfast_operation_latency_ms")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per operation")
}

func TestSinkLabelDrift(t *testing.T) {
	s := newTestSink(t)

	s.Count("ops", 1, "operation:a")
	assert.NotPanics(t, func() {
		s.Count("ops", 1)                                   // missing label
		s.Count("ops", 1, "operation:a", "status:timeout") // extra label
	})

	f := s.families["counter/ops"]
	assert.Equal(t, 2.0, testutil.ToFloat64(f.counter.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.counter.WithLabelValues("")))
}

func TestSinkNegativeCount(t *testing.T) {
	s := newTestSink(t)
	assert.NotPanics(t, func() { s.Count("c", -1) })
}

func TestNewSinkDisabled(t *testing.T) {
	sink := NewSink(config.PrometheusConfig{Enabled: false})
	assert.IsType(t, &metrics.NoOpSink{}, sink)
	assert.NoError(t, sink.Close())
}

func TestSanitize(t *testing.T) {
	//nolint:govet // Test table
	tests := []struct {
		in, want string
	}{
		{"pool.alerts", "pool_alerts"},
		{"operation.latency_ms", "operation_latency_ms"},
		{"cache-level", "cache_level"},
		{"9lives", "_9lives"},
		{"ok_name", "ok_name"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize(tt.in))
		})
	}
}
