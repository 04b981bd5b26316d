package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a JSON or YAML file, chosen by extension.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOLDFAST_CIRCUIT_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}
	if v := os.Getenv("HOLDFAST_CIRCUIT_SUCCESS_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.SuccessThreshold = parseInt(v, cfg.CircuitBreaker.SuccessThreshold)
	}
	if v := os.Getenv("HOLDFAST_CIRCUIT_RECOVERY_TIMEOUT"); v != "" {
		cfg.CircuitBreaker.RecoveryTimeout = parseDuration(v, cfg.CircuitBreaker.RecoveryTimeout)
	}
	if v := os.Getenv("HOLDFAST_CIRCUIT_TIMEOUT"); v != "" {
		cfg.CircuitBreaker.Timeout = parseDuration(v, cfg.CircuitBreaker.Timeout)
	}

	if v := os.Getenv("HOLDFAST_BULKHEAD_MAX_CONCURRENT"); v != "" {
		cfg.Bulkhead.MaxConcurrent = parseInt(v, cfg.Bulkhead.MaxConcurrent)
	}
	if v := os.Getenv("HOLDFAST_BULKHEAD_MAX_QUEUE"); v != "" {
		cfg.Bulkhead.MaxQueue = parseInt(v, cfg.Bulkhead.MaxQueue)
	}
	if v := os.Getenv("HOLDFAST_BULKHEAD_BASE_TIMEOUT"); v != "" {
		cfg.Bulkhead.BaseTimeout = parseDuration(v, cfg.Bulkhead.BaseTimeout)
	}

	if v := os.Getenv("HOLDFAST_MAINTENANCE_ENABLED"); v != "" {
		cfg.Maintenance.Enabled = parseBool(v)
	}

	if v := os.Getenv("HOLDFAST_CACHE_DEFAULT_TTL"); v != "" {
		cfg.Cache.DefaultTTL = parseDuration(v, cfg.Cache.DefaultTTL)
	}
	if v := os.Getenv("HOLDFAST_CACHE_STRATEGY"); v != "" {
		cfg.Cache.DefaultStrategy = v
	}
	if v := os.Getenv("HOLDFAST_MEMORY_MAX_ENTRIES"); v != "" {
		cfg.Cache.Memory.MaxEntries = parseInt(v, cfg.Cache.Memory.MaxEntries)
	}
	if v := os.Getenv("HOLDFAST_SHARDED_ENABLED"); v != "" {
		cfg.Cache.Sharded.Enabled = parseBool(v)
	}

	if v := os.Getenv("HOLDFAST_REDIS_ENABLED"); v != "" {
		cfg.Cache.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("HOLDFAST_REDIS_ADDRESS"); v != "" {
		cfg.Cache.Redis.Address = v
	}
	if v := os.Getenv("HOLDFAST_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = NewSecretString(v)
	}
	if v := os.Getenv("HOLDFAST_REDIS_DB"); v != "" {
		cfg.Cache.Redis.DB = parseInt(v, cfg.Cache.Redis.DB)
	}
	if v := os.Getenv("HOLDFAST_REDIS_KEY_PREFIX"); v != "" {
		cfg.Cache.Redis.KeyPrefix = v
	}
	if v := os.Getenv("HOLDFAST_REDIS_ENABLE_TLS"); v != "" {
		cfg.Cache.Redis.EnableTLS = parseBool(v)
	}

	if v := os.Getenv("HOLDFAST_DURABLE_ENABLED"); v != "" {
		cfg.Cache.Durable.Enabled = parseBool(v)
	}
	if v := os.Getenv("HOLDFAST_DURABLE_BUCKET"); v != "" {
		cfg.Cache.Durable.Bucket = v
	}
	if v := os.Getenv("HOLDFAST_DURABLE_ENDPOINT"); v != "" {
		cfg.Cache.Durable.Endpoint = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Cache.Durable.Region = v
	}

	if v := os.Getenv("HOLDFAST_EVENTS_ENABLED"); v != "" {
		cfg.Events.Enabled = parseBool(v)
	}
	if v := os.Getenv("HOLDFAST_EVENTS_BACKEND"); v != "" {
		cfg.Events.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("HOLDFAST_KAFKA_BROKERS"); v != "" {
		cfg.Events.Kafka.Brokers = splitList(v)
	}

	if v := os.Getenv("HOLDFAST_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("HOLDFAST_PROMETHEUS_ENABLED"); v != "" {
		cfg.Metrics.Prometheus.Enabled = parseBool(v)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}
	if v := os.Getenv("HOLDFAST_DATADOG_ENABLED"); v != "" {
		if os.Getenv("DD_AGENT_HOST") == "" {
			cfg.Metrics.DataDog.Enabled = parseBool(v)
		}
	}
}

// Validate checks if the configuration is valid.
//
//nolint:gocyclo // One check per field
func (c *Config) Validate() error {
	if err := c.CircuitBreaker.validate("circuitBreaker"); err != nil {
		return err
	}
	for name, cb := range c.Operations {
		if err := cb.validate("operations." + name); err != nil {
			return err
		}
	}

	if err := c.Bulkhead.validate("bulkhead"); err != nil {
		return err
	}
	for name, p := range c.Pools {
		if err := p.validate("pools." + name); err != nil {
			return err
		}
	}

	if c.Maintenance.Enabled {
		if c.Maintenance.CircuitSweepInterval <= 0 ||
			c.Maintenance.MetricsSnapshotInterval <= 0 ||
			c.Maintenance.PoolHealthInterval <= 0 {
			return fmt.Errorf("maintenance intervals must be positive")
		}
	}

	for name, v := range map[string]float64{
		"health.poolUtilizationThreshold":  c.Health.PoolUtilizationThreshold,
		"health.queueUtilizationThreshold": c.Health.QueueUtilizationThreshold,
		"health.poolWarningThreshold":      c.Health.PoolWarningThreshold,
		"health.poolCriticalThreshold":     c.Health.PoolCriticalThreshold,
		"health.queueCriticalThreshold":    c.Health.QueueCriticalThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1]", name)
		}
	}

	if c.Metrics.LatencyWindow < 0 {
		return fmt.Errorf("metrics.latencyWindow must not be negative")
	}

	if c.Events.Enabled {
		switch c.Events.Backend {
		case "log", "none", "datadog":
		case "redis":
			if c.Events.Redis.Address == "" {
				return fmt.Errorf("events.redis.address is required for the redis backend")
			}
		case "kafka":
			if len(c.Events.Kafka.Brokers) == 0 {
				return fmt.Errorf("events.kafka.brokers is required for the kafka backend")
			}
		default:
			return fmt.Errorf("events.backend %q is not supported", c.Events.Backend)
		}
	}

	if c.Cache.Memory.Enabled && c.Cache.Memory.MaxEntries <= 0 {
		return fmt.Errorf("cache.memory.maxEntries must be positive")
	}

	if c.Cache.Sharded.Enabled {
		if c.Cache.Sharded.MaxSizeMB <= 0 {
			return fmt.Errorf("cache.sharded.maxSizeMB must be positive")
		}
		if c.Cache.Sharded.Shards <= 0 || (c.Cache.Sharded.Shards&(c.Cache.Sharded.Shards-1)) != 0 {
			return fmt.Errorf("cache.sharded.shards must be a positive power of 2")
		}
	}

	if c.Cache.Redis.Enabled {
		if c.Cache.Redis.Address == "" {
			return fmt.Errorf("cache.redis.address is required when redis is enabled")
		}
		if c.Cache.Redis.PoolSize <= 0 {
			return fmt.Errorf("cache.redis.poolSize must be positive")
		}
	}

	if c.Cache.Durable.Enabled && c.Cache.Durable.Bucket == "" {
		return fmt.Errorf("cache.durable.bucket is required when the durable level is enabled")
	}

	if c.Cache.Protection.Retry.Enabled && c.Cache.Protection.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("cache.protection.retry.maxAttempts must be positive")
	}

	return nil
}

func (c CircuitBreakerConfig) validate(path string) error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("%s.failureThreshold must be positive", path)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("%s.successThreshold must be positive", path)
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("%s.recoveryTimeout must be positive", path)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s.timeout must not be negative", path)
	}
	return nil
}

func (b BulkheadConfig) validate(path string) error {
	if b.MaxConcurrent <= 0 {
		return fmt.Errorf("%s.maxConcurrent must be positive", path)
	}
	if b.MaxQueue < 0 {
		return fmt.Errorf("%s.maxQueue must not be negative", path)
	}
	if b.BaseTimeout <= 0 {
		return fmt.Errorf("%s.baseTimeout must be positive", path)
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
