package holdfast

import (
	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

type (
	// Configuration is the full orchestrator configuration.
	Configuration = config.Config
	// CircuitBreakerConfig configures one circuit breaker.
	CircuitBreakerConfig = config.CircuitBreakerConfig
	// BulkheadConfig sizes one bulkhead pool.
	BulkheadConfig = config.BulkheadConfig

	// CircuitState is the state of one circuit breaker.
	CircuitState = types.CircuitState
	// Priority scales how long a caller may wait for a pool slot.
	Priority = types.Priority
	// WriteStrategy selects which cache levels a write touches.
	WriteStrategy = types.WriteStrategy
	// CacheOptions holds the settings of one cache write.
	CacheOptions = types.CacheOptions

	// Event is what an EventPublisher receives.
	Event = types.Event
	// HealthStatus is the overall status in a HealthReport.
	HealthStatus = types.HealthStatus
	// HealthReport aggregates every circuit, pool and operation.
	HealthReport = types.HealthReport
	// CircuitSnapshot is a point-in-time copy of one breaker.
	CircuitSnapshot = types.CircuitSnapshot
	// PoolSnapshot is a point-in-time copy of one pool.
	PoolSnapshot = types.PoolSnapshot
	// OperationSnapshot holds the rolling metrics of one operation.
	OperationSnapshot = types.OperationSnapshot
	// CacheStatsReport holds per-level cache counters.
	CacheStatsReport = types.CacheStatsReport

	// CacheBackend is implemented by custom cache levels.
	CacheBackend = types.CacheBackend
	// Serializer encodes cached values.
	Serializer = types.Serializer
	// TelemetrySink receives counters, histograms and gauges.
	TelemetrySink = types.TelemetrySink
	// EventPublisher delivers state-change and health events.
	EventPublisher = types.EventPublisher
	// Logger is the minimal logging interface accepted by WithLogger.
	// *slog.Logger satisfies it.
	Logger = types.Logger
)

const (
	CircuitClosed   = types.CircuitClosed
	CircuitOpen     = types.CircuitOpen
	CircuitHalfOpen = types.CircuitHalfOpen
)

const (
	PriorityNormal   = types.PriorityNormal
	PriorityLow      = types.PriorityLow
	PriorityHigh     = types.PriorityHigh
	PriorityCritical = types.PriorityCritical
)

const (
	WriteThrough = types.WriteThrough
	CacheAside   = types.CacheAside
)

const (
	HealthStatusHealthy   = types.HealthStatusHealthy
	HealthStatusDegraded  = types.HealthStatusDegraded
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)

// Event topics.
const (
	TopicCircuitStateChanged = types.TopicCircuitStateChanged
	TopicHealthSnapshot      = types.TopicHealthSnapshot
	TopicPoolHealth          = types.TopicPoolHealth
)
