package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

// RedisCache is a shared remote level. It marks itself unavailable after
// maxConsecutiveErrs failures in a row and, when a health check interval is
// set, pings in the background until the server answers again.
type RedisCache struct {
	client *redis.Client
	config config.RedisConfig
	logger *slog.Logger

	mu            sync.RWMutex
	lastError     error
	lastErrorTime time.Time
	connected     atomic.Bool
	errorCount    atomic.Int64

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRedisCache connects to Redis. A failed initial ping is not an error:
// the level starts unavailable and recovers through the health check.
func NewRedisCache(cfg config.RedisConfig, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = 100
	}
	if cfg.MaxConsecutiveErrs <= 0 {
		cfg.MaxConsecutiveErrs = 5
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // Opt-in for self-signed test servers
		}
		if cfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled - this is insecure for production use")
		}
	}

	rc := &RedisCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: logger.With("component", "redis-cache"),
		stopCh: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := rc.client.Ping(ctx).Err(); err != nil {
		rc.logger.Warn("Redis initial connection failed", "error", err)
		rc.setError(err)
	} else {
		rc.connected.Store(true)
		rc.logger.Info("Redis connected", "address", cfg.Address)
	}

	if cfg.HealthCheckInterval > 0 {
		rc.wg.Add(1)
		go rc.healthCheckWorker()
	}

	return rc, nil
}

func (c *RedisCache) Name() string {
	return "redis"
}

func (c *RedisCache) IsAvailable() bool {
	return c.connected.Load()
}

func (c *RedisCache) prefixKey(key string) string {
	return c.config.KeyPrefix + key
}

func (c *RedisCache) unavailable(op, key string) error {
	return types.NewCacheBackendError(op, key, c.Name(), types.ErrBackendUnavailable)
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.connected.Load() {
		return nil, c.unavailable("get", key)
	}

	data, err := c.client.Get(ctx, c.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.clearError()
			return nil, types.ErrCacheMiss
		}
		c.handleError(err)
		return nil, types.NewCacheBackendError("get", key, c.Name(), err)
	}

	c.clearError()
	return data, nil
}

// GetWithTTL reads the value and its PTTL in one round trip.
func (c *RedisCache) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if !c.connected.Load() {
		return nil, 0, c.unavailable("get", key)
	}

	var (
		getCmd *redis.StringCmd
		ttlCmd *redis.DurationCmd
	)
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.Get(ctx, c.prefixKey(key))
		ttlCmd = pipe.PTTL(ctx, c.prefixKey(key))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		c.handleError(err)
		return nil, 0, types.NewCacheBackendError("get", key, c.Name(), err)
	}

	data, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.clearError()
			return nil, 0, types.ErrCacheMiss
		}
		c.handleError(err)
		return nil, 0, types.NewCacheBackendError("get", key, c.Name(), err)
	}

	c.clearError()
	// PTTL answers -1 for keys without expiry.
	remaining := ttlCmd.Val()
	if remaining < 0 {
		remaining = 0
	}
	return data, remaining, nil
}

// Set writes with the given TTL; a non-positive ttl stores without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.connected.Load() {
		return c.unavailable("set", key)
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := c.client.Set(ctx, c.prefixKey(key), value, ttl).Err(); err != nil {
		c.handleError(err)
		return types.NewCacheBackendError("set", key, c.Name(), err)
	}

	c.clearError()
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	if !c.connected.Load() {
		return false, c.unavailable("delete", key)
	}

	n, err := c.client.Del(ctx, c.prefixKey(key)).Result()
	if err != nil {
		c.handleError(err)
		return false, types.NewCacheBackendError("delete", key, c.Name(), err)
	}

	c.clearError()
	return n > 0, nil
}

// DeleteByPattern walks the keyspace with SCAN under the key prefix and
// deletes each batch of matches.
func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	if !c.connected.Load() {
		return 0, c.unavailable("delete_pattern", pattern)
	}

	fullPattern := c.prefixKey(pattern)
	var cursor uint64
	var deleted int64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, fullPattern, c.config.ScanCount).Result()
		if err != nil {
			c.handleError(err)
			return int(deleted), types.NewCacheBackendError("delete_pattern", pattern, c.Name(), err)
		}

		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.handleError(err)
				return int(deleted), types.NewCacheBackendError("delete_pattern", pattern, c.Name(), err)
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("Deleted keys by pattern", "pattern", fullPattern, "deleted", deleted)
	c.clearError()
	return int(deleted), nil
}

func (c *RedisCache) healthCheckWorker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.performHealthCheck()
		}
	}
}

func (c *RedisCache) performHealthCheck() {
	wasConnected := c.connected.Load()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.DialTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		if wasConnected {
			c.logger.Warn("Redis health check failed", "error", err)
			c.setError(err)
		}
		return
	}

	if !wasConnected {
		c.connected.Store(true)
		c.errorCount.Store(0)
		c.logger.Info("Redis connection restored via health check")
	}
}

// Ping checks the server and, on success, marks the level available again.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return err
	}
	if c.connected.CompareAndSwap(false, true) {
		c.errorCount.Store(0)
		c.logger.Info("Redis reconnected")
	}
	return nil
}

func (c *RedisCache) LastError() (error, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError, c.lastErrorTime
}

func (c *RedisCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.stopCh)
		c.wg.Wait()
		err = c.client.Close()
	})
	return err
}

func (c *RedisCache) handleError(err error) {
	c.mu.Lock()
	c.lastError = err
	c.lastErrorTime = time.Now()
	c.mu.Unlock()

	count := c.errorCount.Add(1)
	if count >= int64(c.config.MaxConsecutiveErrs) {
		if c.connected.CompareAndSwap(true, false) {
			c.logger.Warn("Redis marked as disconnected after errors",
				"error_count", count,
				"last_error", err,
			)
		}
	}
}

func (c *RedisCache) clearError() {
	c.errorCount.Store(0)
}

func (c *RedisCache) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = err
	c.lastErrorTime = time.Now()
	c.connected.Store(false)
}

var (
	_ types.CacheBackend         = (*RedisCache)(nil)
	_ types.PatternDeleter       = (*RedisCache)(nil)
	_ types.AvailabilityReporter = (*RedisCache)(nil)
	_ types.TTLGetter            = (*RedisCache)(nil)
	_ types.CacheCloser          = (*RedisCache)(nil)
)
