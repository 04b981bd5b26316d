package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

// expiryHeaderLen prefixes every stored entry with its absolute expiry in
// unix nanoseconds, zero meaning none. bigcache only knows one global
// LifeWindow, so per-item TTLs are checked on read.
const expiryHeaderLen = 8

// ShardedCache is a large in-process level on bigcache. It trades the LRU's
// exact recency for low GC overhead at high entry counts.
type ShardedCache struct {
	cache  *bigcache.BigCache
	now    func() time.Time
	logger *slog.Logger

	closed atomic.Bool
}

// NewShardedCache creates the level. Shards must be a power of two.
func NewShardedCache(cfg config.ShardedConfig, logger *slog.Logger, opts ...LevelOption) (*ShardedCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := applyLevelOptions(opts)

	sc := &ShardedCache{
		now:    o.now,
		logger: logger.With("component", "sharded-cache"),
	}

	lifeWindow := cfg.LifeWindow
	if lifeWindow <= 0 {
		lifeWindow = time.Hour
	}

	bcConfig := bigcache.DefaultConfig(lifeWindow)
	if cfg.Shards > 0 {
		bcConfig.Shards = cfg.Shards
	}
	if cfg.CleanWindow > 0 {
		bcConfig.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntrySize > 0 {
		bcConfig.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.MaxSizeMB > 0 {
		bcConfig.HardMaxCacheSize = cfg.MaxSizeMB
	}
	bcConfig.Verbose = false
	bcConfig.Logger = &bigcacheLogger{logger: sc.logger}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, err
	}
	sc.cache = bc
	return sc, nil
}

func (c *ShardedCache) Name() string {
	return "sharded"
}

func (c *ShardedCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := c.GetWithTTL(ctx, key)
	return value, err
}

// GetWithTTL is Get that also reports the entry's remaining TTL.
func (c *ShardedCache) GetWithTTL(_ context.Context, key string) ([]byte, time.Duration, error) {
	if c.closed.Load() {
		return nil, 0, types.NewCacheBackendError("get", key, c.Name(), types.ErrClosed)
	}

	entry, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, 0, types.ErrCacheMiss
		}
		return nil, 0, types.NewCacheBackendError("get", key, c.Name(), err)
	}

	// Stale entries stay put. bigcache has no compare-and-delete, so removing
	// one here could drop a fresh value a concurrent Set just wrote. The
	// clean window or the next Set replaces it.
	value, remaining, ok := c.decode(entry)
	if !ok {
		return nil, 0, types.ErrCacheMiss
	}
	return value, remaining, nil
}

func (c *ShardedCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return types.NewCacheBackendError("set", key, c.Name(), types.ErrClosed)
	}

	if err := c.cache.Set(key, c.encode(value, ttl)); err != nil {
		return types.NewCacheBackendError("set", key, c.Name(), err)
	}
	return nil
}

func (c *ShardedCache) Delete(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.NewCacheBackendError("delete", key, c.Name(), types.ErrClosed)
	}

	if err := c.cache.Delete(key); err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return false, nil
		}
		return false, types.NewCacheBackendError("delete", key, c.Name(), err)
	}
	return true, nil
}

// DeleteByPattern iterates every shard and deletes the matching keys.
func (c *ShardedCache) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	if c.closed.Load() {
		return 0, types.NewCacheBackendError("delete_pattern", pattern, c.Name(), types.ErrClosed)
	}

	var keys []string
	iter := c.cache.Iterator()
	for iter.SetNext() {
		entry, err := iter.Value()
		if err != nil {
			continue
		}
		if MatchPattern(pattern, entry.Key()) {
			keys = append(keys, entry.Key())
		}
	}

	removed := 0
	for _, key := range keys {
		if err := c.cache.Delete(key); err == nil {
			removed++
		}
	}

	c.logger.Debug("Deleted entries by pattern", "pattern", pattern, "deleted", removed)
	return removed, nil
}

func (c *ShardedCache) Len() int {
	return c.cache.Len()
}

func (c *ShardedCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.cache.Close()
}

func (c *ShardedCache) encode(value []byte, ttl time.Duration) []byte {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = c.now().Add(ttl).UnixNano()
	}

	buf := make([]byte, expiryHeaderLen+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expiresAt))
	copy(buf[expiryHeaderLen:], value)
	return buf
}

// decode splits an entry into its value and remaining TTL. ok is false for
// expired or malformed entries.
func (c *ShardedCache) decode(entry []byte) (value []byte, remaining time.Duration, ok bool) {
	if len(entry) < expiryHeaderLen {
		return nil, 0, false
	}
	expiresAt := int64(binary.BigEndian.Uint64(entry))
	if expiresAt == 0 {
		return entry[expiryHeaderLen:], 0, true
	}
	remaining = time.Duration(expiresAt - c.now().UnixNano())
	if remaining <= 0 {
		return nil, 0, false
	}
	return entry[expiryHeaderLen:], remaining, true
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug("bigcache: " + fmt.Sprintf(format, args...))
}

var (
	_ types.CacheBackend   = (*ShardedCache)(nil)
	_ types.PatternDeleter = (*ShardedCache)(nil)
	_ types.TTLGetter      = (*ShardedCache)(nil)
	_ types.CacheCloser    = (*ShardedCache)(nil)
)
