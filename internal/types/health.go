package types

import "time"

// HealthStatus represents the overall health state.
type HealthStatus int

const (
	// HealthStatusHealthy indicates no open circuits and no stressed pools.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded indicates at least one open circuit or stressed pool.
	HealthStatusDegraded
	// HealthStatusUnhealthy indicates the configured unhealthy thresholds were reached.
	HealthStatusUnhealthy
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// CircuitSnapshot is a point-in-time copy of one breaker's state.
//
//nolint:govet // Snapshot struct - logical grouping prioritized for readability
type CircuitSnapshot struct {
	Name            string
	State           CircuitState
	FailureCount    int
	SuccessCount    int
	TotalRequests   int64
	TotalFailures   int64
	LastFailureTime time.Time
	NextAttemptTime time.Time
}

// PoolSnapshot is a point-in-time copy of one bulkhead pool.
//
//nolint:govet // Snapshot struct - logical grouping prioritized for readability
type PoolSnapshot struct {
	Name             string
	MaxConcurrent    int
	Current          int
	MaxQueue         int
	Queued           int
	Utilization      float64
	QueueUtilization float64
	TotalAdmitted    int64
	TotalRejected    int64
	TotalTimedOut    int64
}

// OperationSnapshot summarizes the rolling metrics of one operation name.
//
//nolint:govet // Metrics struct - logical grouping prioritized for readability
type OperationSnapshot struct {
	Name               string
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	SuccessRate        float64
	AvgLatency         time.Duration
	P95Latency         time.Duration
	P99Latency         time.Duration
	LastUpdated        time.Time
}

// HealthReport aggregates every circuit, pool and operation.
//
//nolint:govet // Report struct - logical grouping prioritized for readability
type HealthReport struct {
	Timestamp     time.Time
	Status        HealthStatus
	OpenCircuits  int
	StressedPools int
	Circuits      []CircuitSnapshot
	Pools         []PoolSnapshot
	Operations    []OperationSnapshot
}

// CacheLevelStats holds the counters of one cache level.
//
//nolint:govet // Metrics struct - logical grouping prioritized for readability
type CacheLevelStats struct {
	Name              string
	Hits              int64
	Misses            int64
	Sets              int64
	Deletes           int64
	Errors            int64
	HitRatio          float64
	AvgResponseTimeMs float64
}

// CacheStatsReport is returned by the cache manager.
//
//nolint:govet // Metrics struct - logical grouping prioritized for readability
type CacheStatsReport struct {
	Levels        []CacheLevelStats
	Hits          int64
	Misses        int64
	HitRatio      float64
	L1Entries     int
	L1Evictions   int64
	PatternLevels []string
}

// HitRatio returns hits/(hits+misses), or 0 when nothing was recorded.
func HitRatio(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
