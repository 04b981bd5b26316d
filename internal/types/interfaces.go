package types

import (
	"context"
	"time"
)

// CacheBackend is the contract for every level below L1. Get returns
// ErrCacheMiss when the key is absent or expired.
type CacheBackend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
}

// PatternDeleter is implemented by levels that can enumerate their keys.
type PatternDeleter interface {
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// TTLGetter is implemented by levels that can report how long a value has
// left. A zero remaining TTL means the value never expires.
type TTLGetter interface {
	GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error)
}

// AvailabilityReporter is implemented by levels that track their own
// connectivity.
type AvailabilityReporter interface {
	IsAvailable() bool
}

type CacheCloser interface {
	Close() error
}

// TelemetrySink receives counters, histograms and gauges. Implementations
// must not block the caller; send failures are theirs to log.
type TelemetrySink interface {
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Gauge(name string, value float64, tags ...string)
	Close() error
}

// EventPublisher delivers discrete notifications such as circuit state
// changes.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, dest interface{}) error
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
