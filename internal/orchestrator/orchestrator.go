// Package orchestrator composes circuit breakers, bulkhead pools, operation
// metrics and the multi-level cache behind one instance with an explicit
// Start/Stop lifecycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/holdfast/internal/cache"
	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/events"
	"github.com/LavishGent/holdfast/internal/metrics"
	"github.com/LavishGent/holdfast/internal/metrics/datadog"
	"github.com/LavishGent/holdfast/internal/metrics/prometheus"
	"github.com/LavishGent/holdfast/internal/resilience"
	"github.com/LavishGent/holdfast/internal/schedule"
	"github.com/LavishGent/holdfast/internal/types"
)

const defaultShutdownTimeout = 10 * time.Second

// Orchestrator owns every registry. All methods are safe for concurrent use.
type Orchestrator struct {
	cfg       *config.Config
	logger    *slog.Logger
	breakers  *resilience.CircuitRegistry
	pools     *resilience.PoolRegistry
	tracker   *metrics.Tracker
	sink      types.TelemetrySink
	publisher types.EventPublisher
	cache     *cache.Manager
	runner    *schedule.Runner

	circuitOpts []resilience.CircuitOption
	cacheOpts   []cache.ManagerOption

	inflight pending
	closed   atomic.Bool
}

// pending counts in-flight event publishes. Once sealed it refuses new ones.
type pending struct {
	mu     sync.Mutex
	n      int
	idle   chan struct{}
	sealed bool
}

func (p *pending) add() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed {
		return false
	}
	if p.n == 0 {
		p.idle = make(chan struct{})
	}
	p.n++
	return true
}

func (p *pending) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n--
	if p.n == 0 {
		close(p.idle)
	}
}

func (p *pending) seal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sealed = true
}

func (p *pending) wait(ctx context.Context) error {
	p.mu.Lock()
	if p.n == 0 {
		p.mu.Unlock()
		return nil
	}
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", types.ErrShutdownTimeout, ctx.Err())
	}
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSink replaces the sink built from cfg.Metrics.
func WithSink(sink types.TelemetrySink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithPublisher replaces the publisher built from cfg.Events.
func WithPublisher(p types.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithCircuitOptions applies opts to every operation breaker.
func WithCircuitOptions(opts ...resilience.CircuitOption) Option {
	return func(o *Orchestrator) {
		o.circuitOpts = append(o.circuitOpts, opts...)
	}
}

// WithCacheOptions passes opts to the cache manager.
func WithCacheOptions(opts ...cache.ManagerOption) Option {
	return func(o *Orchestrator) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// New builds an orchestrator from cfg. A nil cfg uses config.DefaultConfig.
// The background loops do not run until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &Orchestrator{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	rootLogger := o.logger
	o.logger = rootLogger.With("component", "orchestrator")

	if o.sink == nil {
		sink, err := newSink(cfg.Metrics, rootLogger)
		if err != nil {
			return nil, err
		}
		o.sink = sink
	}

	if o.publisher == nil {
		pub, err := events.NewPublisher(ctx, cfg, rootLogger)
		if err != nil {
			_ = o.sink.Close()
			return nil, fmt.Errorf("event publisher: %w", err)
		}
		o.publisher = pub
	}

	cacheOpts := append([]cache.ManagerOption{
		cache.WithLogger(rootLogger),
		cache.WithBreakerStateChange(o.onLevelCircuitChange),
	}, o.cacheOpts...)
	cm, err := cache.NewManager(ctx, cfg, cacheOpts...)
	if err != nil {
		_ = o.publisher.Close()
		_ = o.sink.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}
	o.cache = cm

	o.breakers = resilience.NewCircuitRegistry(cfg.CircuitFor, o.circuitOpts...)
	o.breakers.SetOnStateChange(o.onCircuitChange)
	o.pools = resilience.NewPoolRegistry(cfg.PoolFor)
	o.tracker = metrics.NewTracker(cfg.Metrics.LatencyWindow)
	o.runner = schedule.NewRunner(rootLogger, o.loops()...)

	o.logger.Info("Orchestrator ready",
		"cacheLevels", cm.Levels(),
		"eventsBackend", cfg.Events.Backend,
		"maintenance", cfg.Maintenance.Enabled,
	)

	return o, nil
}

// newSink picks the telemetry sinks enabled in cfg. With metrics enabled
// but no exporter configured, samples go to the debug log.
func newSink(cfg config.MetricsConfig, logger *slog.Logger) (types.TelemetrySink, error) {
	if !cfg.Enabled {
		return metrics.NewNoOpSink(), nil
	}

	var sinks []types.TelemetrySink
	if cfg.DataDog.Enabled {
		dd, err := datadog.NewSink(cfg.DataDog, logger)
		if err != nil {
			return nil, fmt.Errorf("datadog sink: %w", err)
		}
		sinks = append(sinks, dd)
	}
	if cfg.Prometheus.Enabled {
		sinks = append(sinks, prometheus.NewSink(cfg.Prometheus, prometheus.WithLogger(logger)))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, metrics.NewLoggingSink(logger))
	}
	return metrics.NewMultiSink(sinks...), nil
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() *config.Config {
	return o.cfg
}

// Sink returns the telemetry sink, for example to reach a Prometheus
// registry.
func (o *Orchestrator) Sink() types.TelemetrySink {
	return o.sink
}

// Close stops the loops, waits for in-flight event publishes, then closes
// the publisher, the sink and the cache levels. Later calls return nil.
func (o *Orchestrator) Close() error {
	if o.closed.Load() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	var errs []error
	if err := o.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	if o.closed.Swap(true) {
		return nil
	}
	o.inflight.seal()

	if err := o.waitInflight(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := o.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := o.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}
	if err := o.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}

	o.logger.Info("Orchestrator closed")
	return errors.Join(errs...)
}

func (o *Orchestrator) waitInflight(ctx context.Context) error {
	return o.inflight.wait(ctx)
}
