package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LavishGent/holdfast/internal/types"
)

func TestNewTracker(t *testing.T) {
	tracker := NewTracker(0)

	if tracker.window != defaultLatencyWindow {
		t.Errorf("window = %d, want %d", tracker.window, defaultLatencyWindow)
	}
	if _, ok := tracker.Snapshot("missing"); ok {
		t.Error("Snapshot(missing) reported an operation that never ran")
	}
	if got := tracker.Snapshots(); len(got) != 0 {
		t.Errorf("Snapshots() = %d entries, want 0", len(got))
	}
}

func TestTrackerCounts(t *testing.T) {
	tracker := NewTracker(10)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	tracker.RecordSuccess("charge", 10*time.Millisecond)
	tracker.RecordSuccess("charge", 20*time.Millisecond)
	tracker.RecordFailure("charge", 30*time.Millisecond)
	tracker.RecordSuccess("refund", time.Millisecond)

	s, ok := tracker.Snapshot("charge")
	if !ok {
		t.Fatal("Snapshot(charge) = false")
	}
	if s.TotalRequests != 3 || s.SuccessfulRequests != 2 || s.FailedRequests != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", s.TotalRequests, s.SuccessfulRequests, s.FailedRequests)
	}
	if s.AvgLatency != 20*time.Millisecond {
		t.Errorf("AvgLatency = %v, want 20ms", s.AvgLatency)
	}
	if want := 2.0 / 3.0; s.SuccessRate < want-0.0001 || s.SuccessRate > want+0.0001 {
		t.Errorf("SuccessRate = %v, want %v", s.SuccessRate, want)
	}
	if !s.LastUpdated.Equal(fixed) {
		t.Errorf("LastUpdated = %v, want %v", s.LastUpdated, fixed)
	}

	all := tracker.Snapshots()
	if len(all) != 2 || all[0].Name != "charge" || all[1].Name != "refund" {
		t.Errorf("Snapshots() names = %v, want [charge refund]", names(all))
	}
}

func TestTrackerWindow(t *testing.T) {
	tracker := NewTracker(100)

	// 1..150ms: only 51..150 remain in the window.
	for i := 1; i <= 150; i++ {
		tracker.RecordSuccess("op", time.Duration(i)*time.Millisecond)
	}

	s, _ := tracker.Snapshot("op")
	if s.TotalRequests != 150 {
		t.Errorf("TotalRequests = %d, want 150", s.TotalRequests)
	}

	//nolint:govet // Test table
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"avg", s.AvgLatency, 100500 * time.Microsecond},
		{"p95", s.P95Latency, 145 * time.Millisecond},
		{"p99", s.P99Latency, 149 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker(10)
	tracker.RecordFailure("op", time.Millisecond)
	tracker.Reset()

	if _, ok := tracker.Snapshot("op"); ok {
		t.Error("operation survived Reset")
	}
}

func TestTrackerConcurrency(t *testing.T) {
	tracker := NewTracker(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			name := fmt.Sprintf("op%d", g%3)
			for i := 0; i < 500; i++ {
				if i%4 == 0 {
					tracker.RecordFailure(name, time.Microsecond)
				} else {
					tracker.RecordSuccess(name, time.Microsecond)
				}
				if i%100 == 0 {
					_ = tracker.Snapshots()
				}
			}
		}(g)
	}
	wg.Wait()

	var total int64
	for _, s := range tracker.Snapshots() {
		total += s.TotalRequests
		if s.SuccessfulRequests+s.FailedRequests != s.TotalRequests {
			t.Errorf("%s: %d+%d != %d", s.Name, s.SuccessfulRequests, s.FailedRequests, s.TotalRequests)
		}
	}
	if total != 8*500 {
		t.Errorf("total = %d, want %d", total, 8*500)
	}
}

func TestLoggingSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLoggingSink(logger, "env:test")

	sink.Count("pool.alerts", 1, PoolTag("db"))
	sink.Histogram("operation.latency_ms", 12.5)
	sink.Gauge("circuits.open", 2)

	out := buf.String()
	for _, want := range []string{"pool.alerts", "pool:db", "env:test", "operation.latency_ms", "circuits.open", "component=metrics"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}

	if err := sink.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if NewLoggingSink(nil) == nil {
		t.Error("NewLoggingSink(nil) = nil")
	}
}

func TestNoOpSink(t *testing.T) {
	sink := NewNoOpSink()
	sink.Count("c", 1, "a:b")
	sink.Histogram("h", 1)
	sink.Gauge("g", 1)
	if err := sink.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestAvgDuration(t *testing.T) {
	//nolint:govet // Test table
	tests := []struct {
		name      string
		durations []time.Duration
		expected  time.Duration
	}{
		{"empty", []time.Duration{}, 0},
		{"single", []time.Duration{10 * time.Millisecond}, 10 * time.Millisecond},
		{"multiple", []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := avgDuration(tt.durations); got != tt.expected {
				t.Errorf("avgDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	ten := make([]time.Duration, 10)
	for i := range ten {
		ten[i] = time.Duration(i+1) * time.Millisecond
	}

	//nolint:govet // Test table
	tests := []struct {
		name      string
		durations []time.Duration
		p         int
		expected  time.Duration
	}{
		{"empty", []time.Duration{}, 50, 0},
		{"single_p99", []time.Duration{10 * time.Millisecond}, 99, 10 * time.Millisecond},
		{"ten_values_p50", ten, 50, 5 * time.Millisecond},
		{"ten_values_p95", ten, 95, 9 * time.Millisecond},
		{"ten_values_p100", ten, 100, 10 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.durations, tt.p); got != tt.expected {
				t.Errorf("percentile(%d) = %v, want %v", tt.p, got, tt.expected)
			}
		})
	}
}

func TestTagHelpers(t *testing.T) {
	//nolint:govet // Test table
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{"Tag", func() string { return Tag("key", "value") }, "key:value"},
		{"OperationTag", func() string { return OperationTag("charge") }, "operation:charge"},
		{"PoolTag", func() string { return PoolTag("db") }, "pool:db"},
		{"LevelTag", func() string { return LevelTag("redis") }, "level:redis"},
		{"StatusTag", func() string { return StatusTag("timeout") }, "status:timeout"},
		{"CircuitStateTag", func() string { return CircuitStateTag("open") }, "circuit_state:open"},
		{"SeverityTag", func() string { return SeverityTag("critical") }, "severity:critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestSplitTag(t *testing.T) {
	//nolint:govet // Test table
	tests := []struct {
		tag, key, value string
	}{
		{"pool:db", "pool", "db"},
		{"pattern:user:*", "pattern", "user:*"},
		{"bare", "bare", ""},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			k, v := SplitTag(tt.tag)
			if k != tt.key || v != tt.value {
				t.Errorf("SplitTag(%q) = %q, %q", tt.tag, k, v)
			}
		})
	}
}

func TestMergeTagsDoesNotAlias(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "env:test"

	a := MergeTags(base, []string{"pool:a"})
	b := MergeTags(base, []string{"pool:b"})

	if a[1] != "pool:a" || b[1] != "pool:b" {
		t.Errorf("merged tags share storage: %v %v", a, b)
	}
}

func TestTimer(t *testing.T) {
	sink := &histogramSink{}
	timer := NewTimer(sink, "operation.latency_ms", OperationTag("charge"))

	time.Sleep(10 * time.Millisecond)

	if timer.Elapsed() < 10*time.Millisecond {
		t.Errorf("Elapsed() = %v, want >= 10ms", timer.Elapsed())
	}

	d := timer.Stop(StatusTag("success"))
	if d < 10*time.Millisecond {
		t.Errorf("Stop() = %v, want >= 10ms", d)
	}

	if len(sink.values) != 1 {
		t.Fatalf("histograms = %d, want 1", len(sink.values))
	}
	if sink.values[0] < 10 {
		t.Errorf("recorded %vms, want >= 10", sink.values[0])
	}
	if got := strings.Join(sink.tags[0], ","); got != "operation:charge,status:success" {
		t.Errorf("tags = %s", got)
	}
}

type histogramSink struct {
	NoOpSink
	values []float64
	tags   [][]string
}

func (s *histogramSink) Histogram(name string, value float64, tags ...string) {
	s.values = append(s.values, value)
	s.tags = append(s.tags, tags)
}

func names(snaps []types.OperationSnapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Name
	}
	return out
}

type closeErrSink struct {
	NoOpSink
	err error
}

func (s closeErrSink) Close() error { return s.err }

func TestMultiSink(t *testing.T) {
	if _, ok := NewMultiSink().(*NoOpSink); !ok {
		t.Error("NewMultiSink() with no sinks should be a NoOpSink")
	}

	one := &histogramSink{}
	if NewMultiSink(one) != types.TelemetrySink(one) {
		t.Error("NewMultiSink(one) should return the sink itself")
	}

	a, b := &histogramSink{}, &histogramSink{}
	m := NewMultiSink(a, b)
	m.Histogram("h", 3)
	if len(a.values) != 1 || len(b.values) != 1 {
		t.Errorf("fan-out = %d/%d, want 1/1", len(a.values), len(b.values))
	}

	errA, errB := errors.New("a"), errors.New("b")
	err := NewMultiSink(closeErrSink{err: errA}, NewNoOpSink(), closeErrSink{err: errB}).Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() = %v, want both errors joined", err)
	}
}
