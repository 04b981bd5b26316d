// Package metrics tracks per-operation outcomes and ships counters, gauges
// and histograms to a telemetry sink.
package metrics

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/LavishGent/holdfast/internal/types"
)

const defaultLatencyWindow = 1000

// operation holds the counters and latency ring of one operation name.
type operation struct {
	mu          sync.Mutex
	total       int64
	succeeded   int64
	failed      int64
	latencies   []time.Duration
	index       int
	count       int
	lastUpdated time.Time
}

func (o *operation) record(success bool, latency time.Duration, now time.Time) {
	o.mu.Lock()
	o.total++
	if success {
		o.succeeded++
	} else {
		o.failed++
	}
	o.latencies[o.index] = latency
	o.index = (o.index + 1) % len(o.latencies)
	if o.count < len(o.latencies) {
		o.count++
	}
	o.lastUpdated = now
	o.mu.Unlock()
}

func (o *operation) snapshot(name string) types.OperationSnapshot {
	o.mu.Lock()
	window := make([]time.Duration, o.count)
	if o.count < len(o.latencies) {
		copy(window, o.latencies[:o.count])
	} else {
		// Full ring: oldest sample starts at index.
		n := copy(window, o.latencies[o.index:])
		copy(window[n:], o.latencies[:o.index])
	}
	s := types.OperationSnapshot{
		Name:               name,
		TotalRequests:      o.total,
		SuccessfulRequests: o.succeeded,
		FailedRequests:     o.failed,
		LastUpdated:        o.lastUpdated,
	}
	o.mu.Unlock()

	if s.TotalRequests > 0 {
		s.SuccessRate = float64(s.SuccessfulRequests) / float64(s.TotalRequests)
	}
	if len(window) > 0 {
		slices.Sort(window)
		s.AvgLatency = avgDuration(window)
		s.P95Latency = percentile(window, 95)
		s.P99Latency = percentile(window, 99)
	}
	return s
}

// Tracker keeps OperationMetrics for every operation name it has seen. Each
// name keeps only its most recent window latency samples.
type Tracker struct {
	window int
	now    func() time.Time

	mu  sync.RWMutex
	ops map[string]*operation
}

// NewTracker creates a tracker. A non-positive window uses 1000 samples.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = defaultLatencyWindow
	}
	return &Tracker{
		window: window,
		now:    time.Now,
		ops:    make(map[string]*operation),
	}
}

func (t *Tracker) RecordSuccess(name string, latency time.Duration) {
	t.get(name).record(true, latency, t.now())
}

func (t *Tracker) RecordFailure(name string, latency time.Duration) {
	t.get(name).record(false, latency, t.now())
}

func (t *Tracker) get(name string) *operation {
	t.mu.RLock()
	op, ok := t.ops[name]
	t.mu.RUnlock()
	if ok {
		return op
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if op, ok = t.ops[name]; ok {
		return op
	}
	op = &operation{latencies: make([]time.Duration, t.window)}
	t.ops[name] = op
	return op
}

// Snapshot returns the metrics of one operation, or false if it never ran.
func (t *Tracker) Snapshot(name string) (types.OperationSnapshot, bool) {
	t.mu.RLock()
	op, ok := t.ops[name]
	t.mu.RUnlock()
	if !ok {
		return types.OperationSnapshot{}, false
	}
	return op.snapshot(name), true
}

// Snapshots returns every operation sorted by name.
func (t *Tracker) Snapshots() []types.OperationSnapshot {
	t.mu.RLock()
	names := make([]string, 0, len(t.ops))
	ops := make(map[string]*operation, len(t.ops))
	for name, op := range t.ops {
		names = append(names, name)
		ops[name] = op
	}
	t.mu.RUnlock()

	sort.Strings(names)
	out := make([]types.OperationSnapshot, 0, len(names))
	for _, name := range names {
		out = append(out, ops[name].snapshot(name))
	}
	return out
}

// Reset forgets every operation.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.ops = make(map[string]*operation)
	t.mu.Unlock()
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}
