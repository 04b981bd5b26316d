// Package config provides configuration management for holdfast.
package config

import (
	"time"

	"github.com/LavishGent/holdfast/internal/types"
)

// SecretString is a string type that redacts its value when marshaled.
type SecretString = types.SecretString

// NewSecretString creates a new SecretString with the provided value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Config contains all configuration for an orchestrator.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	CircuitBreaker CircuitBreakerConfig            `json:"circuitBreaker" yaml:"circuitBreaker"`
	Operations     map[string]CircuitBreakerConfig `json:"operations" yaml:"operations"`
	Bulkhead       BulkheadConfig                  `json:"bulkhead" yaml:"bulkhead"`
	Pools          map[string]BulkheadConfig       `json:"pools" yaml:"pools"`
	Maintenance    MaintenanceConfig               `json:"maintenance" yaml:"maintenance"`
	Health         HealthConfig                    `json:"health" yaml:"health"`
	Metrics        MetricsConfig                   `json:"metrics" yaml:"metrics"`
	Events         EventsConfig                    `json:"events" yaml:"events"`
	Cache          CacheConfig                     `json:"cache" yaml:"cache"`
	KeyValidation  KeyValidationConfig             `json:"keyValidation" yaml:"keyValidation"`
}

// CircuitBreakerConfig configures one breaker. The breaker for an operation
// keeps whichever config it was created with.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failureThreshold" yaml:"failureThreshold"`
	SuccessThreshold int           `json:"successThreshold" yaml:"successThreshold"`
	RecoveryTimeout  time.Duration `json:"recoveryTimeout" yaml:"recoveryTimeout"`
	// Timeout bounds a single execution of the protected operation.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// HalfOpenMaxRequests limits concurrent probes while half-open. Zero
	// admits every caller.
	HalfOpenMaxRequests int `json:"halfOpenMaxRequests" yaml:"halfOpenMaxRequests"`

	// CountsAsFailure decides whether an error trips the breaker. Nil
	// counts every error.
	CountsAsFailure func(error) bool `json:"-" yaml:"-"`
}

// BulkheadConfig sizes one pool.
type BulkheadConfig struct {
	MaxConcurrent int           `json:"maxConcurrent" yaml:"maxConcurrent"`
	MaxQueue      int           `json:"maxQueue" yaml:"maxQueue"`
	BaseTimeout   time.Duration `json:"baseTimeout" yaml:"baseTimeout"`
}

// MaintenanceConfig controls the background loops started by Start.
type MaintenanceConfig struct {
	CircuitSweepInterval    time.Duration `json:"circuitSweepInterval" yaml:"circuitSweepInterval"`
	MetricsSnapshotInterval time.Duration `json:"metricsSnapshotInterval" yaml:"metricsSnapshotInterval"`
	PoolHealthInterval      time.Duration `json:"poolHealthInterval" yaml:"poolHealthInterval"`
	Enabled                 bool          `json:"enabled" yaml:"enabled"`
}

// HealthConfig holds the thresholds behind the overall status and pool alerts.
type HealthConfig struct {
	// A pool is stressed at or above either of these.
	PoolUtilizationThreshold  float64 `json:"poolUtilizationThreshold" yaml:"poolUtilizationThreshold"`
	QueueUtilizationThreshold float64 `json:"queueUtilizationThreshold" yaml:"queueUtilizationThreshold"`

	PoolWarningThreshold   float64 `json:"poolWarningThreshold" yaml:"poolWarningThreshold"`
	PoolCriticalThreshold  float64 `json:"poolCriticalThreshold" yaml:"poolCriticalThreshold"`
	QueueCriticalThreshold float64 `json:"queueCriticalThreshold" yaml:"queueCriticalThreshold"`

	UnhealthyOpenCircuits  int `json:"unhealthyOpenCircuits" yaml:"unhealthyOpenCircuits"`
	UnhealthyStressedPools int `json:"unhealthyStressedPools" yaml:"unhealthyStressedPools"`
}

// MetricsConfig contains configuration for metrics collection and publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	LatencyWindow int              `json:"latencyWindow" yaml:"latencyWindow"`
	DataDog       DataDogConfig    `json:"datadog" yaml:"datadog"`
	Prometheus    PrometheusConfig `json:"prometheus" yaml:"prometheus"`
	Enabled       bool             `json:"enabled" yaml:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags" yaml:"tags"`
	AgentHost string   `json:"agentHost" yaml:"agentHost"`
	Prefix    string   `json:"prefix" yaml:"prefix"`
	Port      int      `json:"port" yaml:"port"`
	Enabled   bool     `json:"enabled" yaml:"enabled"`
}

//nolint:govet // Small config struct - minimal alignment benefit
type PrometheusConfig struct {
	Namespace string    `json:"namespace" yaml:"namespace"`
	Buckets   []float64 `json:"buckets" yaml:"buckets"`
	Enabled   bool      `json:"enabled" yaml:"enabled"`
}

// EventsConfig selects where state-change and health events go.
// Backend is one of "log", "redis", "kafka", "datadog" or "none".
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type EventsConfig struct {
	Backend        string            `json:"backend" yaml:"backend"`
	Source         string            `json:"source" yaml:"source"`
	PublishTimeout time.Duration     `json:"publishTimeout" yaml:"publishTimeout"`
	Redis          RedisEventsConfig `json:"redis" yaml:"redis"`
	Kafka          KafkaConfig       `json:"kafka" yaml:"kafka"`
	Enabled        bool              `json:"enabled" yaml:"enabled"`
}

//nolint:govet // Small config struct - minimal alignment benefit
type RedisEventsConfig struct {
	Password      SecretString `json:"password" yaml:"password"`
	Address       string       `json:"address" yaml:"address"`
	ChannelPrefix string       `json:"channelPrefix" yaml:"channelPrefix"`
	DB            int          `json:"db" yaml:"db"`
}

//nolint:govet // Small config struct - minimal alignment benefit
type KafkaConfig struct {
	Brokers      []string      `json:"brokers" yaml:"brokers"`
	TopicPrefix  string        `json:"topicPrefix" yaml:"topicPrefix"`
	BatchTimeout time.Duration `json:"batchTimeout" yaml:"batchTimeout"`
	RequiredAcks int           `json:"requiredAcks" yaml:"requiredAcks"`
}

// CacheConfig describes the level chain: memory (L1), then sharded, redis
// and durable when enabled, in that order.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type CacheConfig struct {
	DefaultTTL      time.Duration    `json:"defaultTTL" yaml:"defaultTTL"`
	PromotionTTL    time.Duration    `json:"promotionTTL" yaml:"promotionTTL"`
	DefaultStrategy string           `json:"defaultStrategy" yaml:"defaultStrategy"`
	Memory          MemoryConfig     `json:"memory" yaml:"memory"`
	Sharded         ShardedConfig    `json:"sharded" yaml:"sharded"`
	Redis           RedisConfig      `json:"redis" yaml:"redis"`
	Durable         DurableConfig    `json:"durable" yaml:"durable"`
	Protection      ProtectionConfig `json:"protection" yaml:"protection"`
}

// MemoryConfig sizes the in-process LRU level.
type MemoryConfig struct {
	MaxEntries int  `json:"maxEntries" yaml:"maxEntries"`
	Enabled    bool `json:"enabled" yaml:"enabled"`
}

// ShardedConfig configures the bigcache-backed in-process level.
type ShardedConfig struct {
	LifeWindow  time.Duration `json:"lifeWindow" yaml:"lifeWindow"`
	CleanWindow time.Duration `json:"cleanWindow" yaml:"cleanWindow"`
	MaxSizeMB   int           `json:"maxSizeMB" yaml:"maxSizeMB"`
	Shards      int           `json:"shards" yaml:"shards"`
	// MaxEntrySize is the expected entry size in bytes, used to size the
	// initial shard buffers. MaxSizeMB is the hard cap.
	MaxEntrySize int  `json:"maxEntrySize" yaml:"maxEntrySize"`
	Enabled      bool `json:"enabled" yaml:"enabled"`
}

// RedisConfig contains configuration for the Redis level.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	DialTimeout         time.Duration `json:"dialTimeout" yaml:"dialTimeout"`
	ReadTimeout         time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout        time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	PoolTimeout         time.Duration `json:"poolTimeout" yaml:"poolTimeout"`
	HealthCheckInterval time.Duration `json:"healthCheckInterval" yaml:"healthCheckInterval"`
	Password            SecretString  `json:"password" yaml:"password"`
	Address             string        `json:"address" yaml:"address"`
	KeyPrefix           string        `json:"keyPrefix" yaml:"keyPrefix"`
	DB                  int           `json:"db" yaml:"db"`
	PoolSize            int           `json:"poolSize" yaml:"poolSize"`
	MinIdleConns        int           `json:"minIdleConns" yaml:"minIdleConns"`
	ScanCount           int64         `json:"scanCount" yaml:"scanCount"`
	MaxConsecutiveErrs  int           `json:"maxConsecutiveErrors" yaml:"maxConsecutiveErrors"`
	Enabled             bool          `json:"enabled" yaml:"enabled"`
	EnableTLS           bool          `json:"enableTLS" yaml:"enableTLS"`
	TLSSkipVerify       bool          `json:"tlsSkipVerify" yaml:"tlsSkipVerify"`
}

// DurableConfig configures the S3 level.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type DurableConfig struct {
	Bucket         string `json:"bucket" yaml:"bucket"`
	Prefix         string `json:"prefix" yaml:"prefix"`
	Region         string `json:"region" yaml:"region"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	MaxRetries     int    `json:"maxRetries" yaml:"maxRetries"`
	ForcePathStyle bool   `json:"forcePathStyle" yaml:"forcePathStyle"`
	Enabled        bool   `json:"enabled" yaml:"enabled"`
}

// ProtectionConfig wraps every remote level in its own breaker and retry
// policy.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type ProtectionConfig struct {
	CircuitBreaker        CircuitBreakerConfig `json:"circuitBreaker" yaml:"circuitBreaker"`
	Retry                 RetryConfig          `json:"retry" yaml:"retry"`
	CircuitBreakerEnabled bool                 `json:"circuitBreakerEnabled" yaml:"circuitBreakerEnabled"`
}

// RetryConfig contains configuration for the retry pattern.
type RetryConfig struct {
	InitialBackoff time.Duration `json:"initialBackoff" yaml:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff" yaml:"maxBackoff"`
	Multiplier     float64       `json:"multiplier" yaml:"multiplier"`
	MaxAttempts    int           `json:"maxAttempts" yaml:"maxAttempts"`
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Jitter         bool          `json:"jitter" yaml:"jitter"`
}

// KeyValidationConfig contains configuration for cache key validation.
type KeyValidationConfig struct {
	ReservedPatterns  []string `json:"reservedPatterns" yaml:"reservedPatterns"`
	MaxKeyLength      int      `json:"maxKeyLength" yaml:"maxKeyLength"`
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	AllowEmpty        bool     `json:"allowEmpty" yaml:"allowEmpty"`
	AllowControlChars bool     `json:"allowControlChars" yaml:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace" yaml:"allowWhitespace"`
}

// ToTypesConfig converts this config to a types.KeyValidationConfig.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxKeyLength:      c.MaxKeyLength,
		AllowEmpty:        c.AllowEmpty,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
		ReservedPatterns:  c.ReservedPatterns,
	}
}

// CircuitFor returns the breaker config for an operation: its entry in
// Operations if present, otherwise the defaults.
func (c *Config) CircuitFor(name string) CircuitBreakerConfig {
	if cb, ok := c.Operations[name]; ok {
		return cb
	}
	return c.CircuitBreaker
}

// PoolFor returns the pool config for name: its entry in Pools if present,
// otherwise the bulkhead defaults.
func (c *Config) PoolFor(name string) BulkheadConfig {
	if p, ok := c.Pools[name]; ok {
		return p
	}
	return c.Bulkhead
}
