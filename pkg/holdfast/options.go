package holdfast

import (
	"log/slog"
	"time"

	"github.com/LavishGent/holdfast/internal/cache"
	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/orchestrator"
	"github.com/LavishGent/holdfast/internal/resilience"
	"github.com/LavishGent/holdfast/internal/types"
)

// Option configures an Orchestrator at construction.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	sink       TelemetrySink
	publisher  EventPublisher
	serializer Serializer
	levels     []CacheBackend
	s3Client   cache.S3API
	now        func() time.Time
}

func (o *options) build() []orchestrator.Option {
	var out []orchestrator.Option
	var cacheOpts []cache.ManagerOption

	if o.logger != nil {
		out = append(out, orchestrator.WithLogger(o.logger))
	}
	if o.sink != nil {
		out = append(out, orchestrator.WithSink(o.sink))
	}
	if o.publisher != nil {
		out = append(out, orchestrator.WithPublisher(o.publisher))
	}
	if o.serializer != nil {
		cacheOpts = append(cacheOpts, cache.WithSerializer(o.serializer))
	}
	if len(o.levels) > 0 {
		cacheOpts = append(cacheOpts, cache.WithLevels(o.levels...))
	}
	if o.s3Client != nil {
		cacheOpts = append(cacheOpts, cache.WithS3Client(o.s3Client))
	}
	if o.now != nil {
		out = append(out, orchestrator.WithCircuitOptions(resilience.WithClock(o.now)))
		cacheOpts = append(cacheOpts,
			cache.WithLevelOptions(cache.WithClock(o.now)),
			cache.WithBreakerOptions(resilience.WithClock(o.now)),
		)
	}
	if len(cacheOpts) > 0 {
		out = append(out, orchestrator.WithCacheOptions(cacheOpts...))
	}
	return out
}

// WithLogger routes all logging through logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger == nil {
			return
		}
		if l, ok := logger.(*slog.Logger); ok {
			o.logger = l
			return
		}
		o.logger = slog.New(newLoggerHandler(logger))
	}
}

// WithSlogLogger uses logger directly.
func WithSlogLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSink replaces the telemetry sink built from the metrics config.
func WithSink(sink TelemetrySink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithPublisher replaces the event publisher built from the events config.
func WithPublisher(p EventPublisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// WithSerializer replaces the JSON serializer used for cached values.
func WithSerializer(s Serializer) Option {
	return func(o *options) {
		o.serializer = s
	}
}

// WithCacheLevels appends custom levels after the configured ones.
func WithCacheLevels(levels ...CacheBackend) Option {
	return func(o *options) {
		o.levels = append(o.levels, levels...)
	}
}

// WithS3Client supplies the client for the durable cache level.
func WithS3Client(client cache.S3API) Option {
	return func(o *options) {
		o.s3Client = client
	}
}

// WithClock replaces time.Now for circuit breakers and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// CacheOption configures a single cache write.
type CacheOption = types.Option

// WithTTL sets the time-to-live of a cache write. Zero means no expiry.
func WithTTL(ttl time.Duration) CacheOption {
	return types.WithTTL(ttl)
}

// WithStrategy selects which levels a cache write touches.
func WithStrategy(s WriteStrategy) CacheOption {
	return types.WithStrategy(s)
}

// WithCacheAside writes only to the in-process level.
func WithCacheAside() CacheOption {
	return types.WithCacheAside()
}

// ExecOption configures one ExecuteProtected call.
type ExecOption = orchestrator.ExecOption

// WithPool admits the call through the named bulkhead pool.
func WithPool(name string) ExecOption {
	return orchestrator.WithPool(name)
}

// WithPriority scales how long the call may wait for a pool slot.
func WithPriority(p Priority) ExecOption {
	return orchestrator.WithPriority(p)
}

// WithCircuitConfig sets the breaker config used when this call creates
// the operation's breaker.
func WithCircuitConfig(cfg config.CircuitBreakerConfig) ExecOption {
	return orchestrator.WithCircuitConfig(cfg)
}
