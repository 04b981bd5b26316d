package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/resilience"
	"github.com/LavishGent/holdfast/internal/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink keeps the running total of every count and the last value
// of every gauge.
type recordingSink struct {
	mu         sync.Mutex
	counts     map[string]int64
	gauges     map[string]float64
	histograms map[string]int
	closed     bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		counts:     make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]int),
	}
}

func (s *recordingSink) Count(name string, value int64, _ ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name] += value
}

func (s *recordingSink) Histogram(name string, _ float64, _ ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histograms[name]++
}

func (s *recordingSink) Gauge(name string, value float64, _ ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges[name] = value
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) count(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

func (s *recordingSink) gauge(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.gauges[name]
	return v, ok
}

type published struct {
	topic string
	event types.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, event: event})
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) byTopic(topic string) []types.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.Event
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e.event)
		}
	}
	return out
}

// transitions lists "name:from->to" for every state-change event in order
// of publication. Publishes are asynchronous, so callers sort or compare
// as sets.
func (p *recordingPublisher) transitions() []string {
	var out []string
	for _, e := range p.byTopic(types.TopicCircuitStateChanged) {
		if e.Labels["to"] == "" {
			continue
		}
		out = append(out, e.Labels["name"]+":"+e.Labels["from"]+"->"+e.Labels["to"])
	}
	return out
}

//nolint:govet // Test fixture
type fixture struct {
	o     *Orchestrator
	sink  *recordingSink
	pub   *recordingPublisher
	clock *fakeClock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.ForTesting()
	if mutate != nil {
		mutate(cfg)
	}

	f := &fixture{
		sink:  newRecordingSink(),
		pub:   &recordingPublisher{},
		clock: newFakeClock(),
	}
	o, err := New(context.Background(), cfg,
		WithLogger(quietLogger()),
		WithSink(f.sink),
		WithPublisher(f.pub),
		WithCircuitOptions(resilience.WithClock(f.clock.Now)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	f.o = o
	return f
}

// flush waits for every pending event publish.
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.o.waitInflight(ctx))
}
