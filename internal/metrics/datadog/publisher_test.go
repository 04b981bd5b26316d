package datadog

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/metrics"
	"github.com/LavishGent/holdfast/internal/types"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	mu     sync.Mutex
	calls  []call
	events []*statsd.Event
	err    error
	closed bool
}

func (f *fakeClient) record(kind, name string, value float64, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: kind, name: name, value: value, tags: tags})
	return f.err
}

func (f *fakeClient) Gauge(name string, value float64, tags []string, _ float64) error {
	return f.record("gauge", name, value, tags)
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	return f.record("count", name, float64(value), tags)
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	return f.record("histogram", name, value, tags)
}

func (f *fakeClient) Event(e *statsd.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestSinkForwardsMetrics(t *testing.T) {
	fc := &fakeClient{}
	sink := newSink(fc, nil)

	sink.Count("pool.alerts", 2, metrics.PoolTag("db"))
	sink.Histogram("operation.latency_ms", 4.5, metrics.OperationTag("charge"))
	sink.Gauge("circuits.open", 1)
	require.NoError(t, sink.Close())

	require.Len(t, fc.calls, 3)
	assert.Equal(t, call{kind: "count", name: "pool.alerts", value: 2, tags: []string{"pool:db"}}, fc.calls[0])
	assert.Equal(t, "histogram", fc.calls[1].kind)
	assert.Equal(t, 4.5, fc.calls[1].value)
	assert.Equal(t, "circuits.open", fc.calls[2].name)
	assert.True(t, fc.closed)
}

func TestSinkSwallowsSendErrors(t *testing.T) {
	fc := &fakeClient{err: errors.New("buffer full")}
	sink := newSink(fc, nil)

	assert.NotPanics(t, func() {
		sink.Count("c", 1)
		sink.Gauge("g", 1)
		sink.Histogram("h", 1)
	})
}

func TestNewSinkDisabled(t *testing.T) {
	sink, err := NewSink(config.DataDogConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, &metrics.NoOpSink{}, sink)
}

func TestEventPublisher(t *testing.T) {
	fc := &fakeClient{}
	pub := newEventPublisher(fc, nil)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), types.TopicCircuitStateChanged, types.Event{
		ID:        "evt-1",
		Type:      "circuit_state_changed",
		Source:    "holdfast",
		Timestamp: ts,
		Labels:    map[string]string{"name": "charge", "from": "closed", "to": "open"},
		Data:      map[string]any{"failures": 5},
	})
	require.NoError(t, err)

	require.Len(t, fc.events, 1)
	e := fc.events[0]
	assert.Equal(t, types.TopicCircuitStateChanged, e.Title)
	assert.Equal(t, "circuit_state_changed failures=5", e.Text)
	assert.Equal(t, statsd.Error, e.AlertType)
	assert.Equal(t, "charge", e.AggregationKey)
	assert.Equal(t, ts, e.Timestamp)
	assert.Equal(t, []string{"from:closed", "name:charge", "to:open", "event_id:evt-1"}, e.Tags)
}

func TestAlertType(t *testing.T) {
	//nolint:govet // Test table
	tests := []struct {
		name   string
		labels map[string]string
		want   statsd.EventAlertType
	}{
		{"critical pool", map[string]string{"severity": "critical"}, statsd.Error},
		{"warning pool", map[string]string{"severity": "warning"}, statsd.Warning},
		{"circuit opened", map[string]string{"to": "open"}, statsd.Error},
		{"circuit closed", map[string]string{"to": "closed"}, statsd.Info},
		{"no labels", nil, statsd.Info},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, alertType(types.Event{Labels: tt.labels}))
		})
	}
}

func TestEventPublisherError(t *testing.T) {
	fc := &fakeClient{err: errors.New("closed")}
	pub := newEventPublisher(fc, nil)

	err := pub.Publish(context.Background(), "t", types.Event{})
	assert.ErrorContains(t, err, "closed")
}

func TestEventPublisherOverUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	port := conn.LocalAddr().(*net.UDPAddr).Port
	c, err := NewClient(config.DataDogConfig{AgentHost: "127.0.0.1", Port: port, Prefix: "holdfast"}, statsd.WithoutTelemetry())
	require.NoError(t, err)

	pub := newEventPublisher(c, nil)
	require.NoError(t, pub.Publish(context.Background(), "pool.health", types.Event{ID: "1", Type: "pool_alert"}))
	require.NoError(t, pub.Close())

	buf := make([]byte, 65536)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err, "no event datagram received")
		if payload := string(buf[:n]); strings.Contains(payload, "_e{") {
			assert.Contains(t, payload, "pool.health")
			return
		}
	}
}
