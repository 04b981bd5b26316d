package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			RecoveryTimeout:  30 * time.Second,
			Timeout:          10 * time.Second,
		},
		Operations: map[string]CircuitBreakerConfig{},
		Bulkhead: BulkheadConfig{
			MaxConcurrent: 100,
			MaxQueue:      50,
			BaseTimeout:   250 * time.Millisecond,
		},
		Pools: map[string]BulkheadConfig{},
		Maintenance: MaintenanceConfig{
			Enabled:                 true,
			CircuitSweepInterval:    30 * time.Second,
			MetricsSnapshotInterval: 60 * time.Second,
			PoolHealthInterval:      45 * time.Second,
		},
		Health: defaultHealth(),
		Metrics: MetricsConfig{
			Enabled:       true,
			LatencyWindow: 1000,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "holdfast",
				Tags:      []string{},
			},
			Prometheus: PrometheusConfig{
				Enabled:   false,
				Namespace: "holdfast",
			},
		},
		Events: EventsConfig{
			Enabled:        true,
			Backend:        "log",
			Source:         "holdfast",
			PublishTimeout: 2 * time.Second,
			Redis: RedisEventsConfig{
				Address:       "localhost:6379",
				ChannelPrefix: "holdfast.",
			},
			Kafka: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				TopicPrefix:  "holdfast.",
				BatchTimeout: 50 * time.Millisecond,
				RequiredAcks: 1,
			},
		},
		Cache: CacheConfig{
			DefaultTTL:      5 * time.Minute,
			PromotionTTL:    time.Minute,
			DefaultStrategy: "write-through",
			Memory: MemoryConfig{
				Enabled:    true,
				MaxEntries: 10000,
			},
			Sharded: ShardedConfig{
				Enabled:      false,
				Shards:       1024,
				LifeWindow:   time.Hour,
				CleanWindow:  time.Minute,
				MaxSizeMB:    256,
				MaxEntrySize: 512,
			},
			Redis: RedisConfig{
				Enabled:             false,
				Address:             "localhost:6379",
				KeyPrefix:           "holdfast:",
				PoolSize:            100,
				MinIdleConns:        10,
				DialTimeout:         5 * time.Second,
				ReadTimeout:         3 * time.Second,
				WriteTimeout:        3 * time.Second,
				PoolTimeout:         4 * time.Second,
				HealthCheckInterval: 5 * time.Second,
				ScanCount:           100,
				MaxConsecutiveErrs:  5,
			},
			Durable: DurableConfig{
				Enabled:    false,
				Prefix:     "holdfast/",
				Region:     "us-east-1",
				MaxRetries: 3,
			},
			Protection: ProtectionConfig{
				CircuitBreakerEnabled: true,
				CircuitBreaker: CircuitBreakerConfig{
					FailureThreshold:    5,
					SuccessThreshold:    2,
					RecoveryTimeout:     30 * time.Second,
					HalfOpenMaxRequests: 3,
				},
				Retry: RetryConfig{
					Enabled:        true,
					MaxAttempts:    3,
					InitialBackoff: 100 * time.Millisecond,
					MaxBackoff:     2 * time.Second,
					Multiplier:     2.0,
					Jitter:         true,
				},
			},
		},
		KeyValidation: KeyValidationConfig{
			Enabled:         true,
			MaxKeyLength:    1024,
			AllowWhitespace: true,
		},
	}
}

func defaultHealth() HealthConfig {
	return HealthConfig{
		PoolUtilizationThreshold:  0.8,
		QueueUtilizationThreshold: 0.8,
		PoolWarningThreshold:      0.8,
		PoolCriticalThreshold:     0.95,
		QueueCriticalThreshold:    0.9,
		UnhealthyOpenCircuits:     3,
		UnhealthyStressedPools:    3,
	}
}

// ForTesting returns a minimal configuration suitable for unit tests:
// memory-only cache, no background loops, no retries, no external sinks.
func ForTesting() *Config {
	cfg := DefaultConfig()

	cfg.CircuitBreaker = CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		RecoveryTimeout:  time.Second,
		Timeout:          time.Second,
	}
	cfg.Bulkhead = BulkheadConfig{
		MaxConcurrent: 10,
		MaxQueue:      5,
		BaseTimeout:   50 * time.Millisecond,
	}
	cfg.Maintenance.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false
	cfg.Events.PublishTimeout = 100 * time.Millisecond

	cfg.Cache.DefaultTTL = time.Minute
	cfg.Cache.PromotionTTL = time.Minute
	cfg.Cache.Memory.MaxEntries = 1000
	cfg.Cache.Sharded.Shards = 64
	cfg.Cache.Sharded.MaxSizeMB = 16
	cfg.Cache.Sharded.MaxEntrySize = 256
	cfg.Cache.Redis.KeyPrefix = "test:"
	cfg.Cache.Redis.PoolSize = 10
	cfg.Cache.Redis.MinIdleConns = 1
	cfg.Cache.Redis.DialTimeout = time.Second
	cfg.Cache.Redis.ReadTimeout = time.Second
	cfg.Cache.Redis.WriteTimeout = time.Second
	cfg.Cache.Redis.PoolTimeout = time.Second
	cfg.Cache.Redis.HealthCheckInterval = 0
	cfg.Cache.Protection.CircuitBreakerEnabled = false
	cfg.Cache.Protection.Retry = RetryConfig{
		Enabled:        false,
		MaxAttempts:    1,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
	}

	return cfg
}

// ForTestingWithRedis returns a test config with the Redis level enabled.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = addr
	return cfg
}
