package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/resilience"
	"github.com/LavishGent/holdfast/internal/types"
)

// level is one entry of the chain. Remote levels run behind a policy so a
// failing backend opens its own circuit instead of slowing every read.
type level struct {
	backend types.CacheBackend
	policy  *resilience.Policy

	hits       atomic.Int64
	misses     atomic.Int64
	sets       atomic.Int64
	deletes    atomic.Int64
	failures   atomic.Int64
	ops        atomic.Int64
	totalNanos atomic.Int64
}

func (l *level) observe(start time.Time) {
	l.ops.Add(1)
	l.totalNanos.Add(int64(time.Since(start)))
}

func (l *level) stats() types.CacheLevelStats {
	hits, misses := l.hits.Load(), l.misses.Load()
	s := types.CacheLevelStats{
		Name:     l.backend.Name(),
		Hits:     hits,
		Misses:   misses,
		Sets:     l.sets.Load(),
		Deletes:  l.deletes.Load(),
		Errors:   l.failures.Load(),
		HitRatio: types.HitRatio(hits, misses),
	}
	if ops := l.ops.Load(); ops > 0 {
		s.AvgResponseTimeMs = float64(l.totalNanos.Load()) / float64(ops) / float64(time.Millisecond)
	}
	return s
}

// Manager presents one get/set/delete surface over an ordered chain of
// levels: the in-process LRU first, then any of sharded, redis and durable
// that are enabled, then extra levels passed with WithLevels.
type Manager struct {
	l1          *LRU
	levels      []*level
	serializer  types.Serializer
	validator   *types.KeyValidator
	logger      *slog.Logger
	config      config.CacheConfig
	levelOpts   []LevelOption
	extra       []types.CacheBackend
	s3Client    S3API
	onBreaker   resilience.StateChangeFunc
	breakerOpts []resilience.CircuitOption

	sfGroup singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
	closed  atomic.Bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLevels appends backends after the configured levels, in order.
func WithLevels(backends ...types.CacheBackend) ManagerOption {
	return func(m *Manager) {
		m.extra = append(m.extra, backends...)
	}
}

func WithSerializer(s types.Serializer) ManagerOption {
	return func(m *Manager) {
		m.serializer = s
	}
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLevelOptions passes options to the built-in levels.
func WithLevelOptions(opts ...LevelOption) ManagerOption {
	return func(m *Manager) {
		m.levelOpts = append(m.levelOpts, opts...)
	}
}

// WithS3Client supplies the client for the durable level instead of one
// built from the default AWS credential chain.
func WithS3Client(client S3API) ManagerOption {
	return func(m *Manager) {
		m.s3Client = client
	}
}

// WithBreakerStateChange is told about every level circuit transition.
func WithBreakerStateChange(fn resilience.StateChangeFunc) ManagerOption {
	return func(m *Manager) {
		m.onBreaker = fn
	}
}

// WithBreakerOptions passes options to every level breaker.
func WithBreakerOptions(opts ...resilience.CircuitOption) ManagerOption {
	return func(m *Manager) {
		m.breakerOpts = append(m.breakerOpts, opts...)
	}
}

// NewManager builds the level chain from cfg.Cache.
func NewManager(ctx context.Context, cfg *config.Config, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		config:     cfg.Cache,
		serializer: NewJSONSerializer(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "cache-manager")

	if cfg.KeyValidation.Enabled {
		m.validator = types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())
	}

	m.l1 = NewLRU(cfg.Cache.Memory.MaxEntries, m.levelOpts...)
	m.levels = append(m.levels, &level{backend: m.l1})

	if cfg.Cache.Sharded.Enabled {
		sc, err := NewShardedCache(cfg.Cache.Sharded, m.logger, m.levelOpts...)
		if err != nil {
			return nil, fmt.Errorf("sharded level: %w", err)
		}
		m.levels = append(m.levels, &level{backend: sc})
	}

	if cfg.Cache.Redis.Enabled {
		rc, err := NewRedisCache(cfg.Cache.Redis, m.logger)
		if err != nil {
			m.logger.Warn("Failed to create Redis level, continuing without it", "error", err)
		} else {
			m.addRemote(rc)
		}
	}

	if cfg.Cache.Durable.Enabled {
		client := m.s3Client
		if client == nil {
			c, err := NewS3Client(ctx, cfg.Cache.Durable)
			if err != nil {
				_ = m.closeLevels()
				return nil, fmt.Errorf("durable level: %w", err)
			}
			client = c
		}
		sc, err := NewS3Cache(client, cfg.Cache.Durable, m.logger, m.levelOpts...)
		if err != nil {
			_ = m.closeLevels()
			return nil, fmt.Errorf("durable level: %w", err)
		}
		m.addRemote(sc)
	}

	for _, b := range m.extra {
		m.addRemote(b)
	}

	names := make([]string, len(m.levels))
	for i, l := range m.levels {
		names[i] = l.backend.Name()
	}
	m.logger.Info("Cache levels ready", "levels", names)

	return m, nil
}

func (m *Manager) addRemote(b types.CacheBackend) {
	p := resilience.NewPolicy("cache."+b.Name(), m.config.Protection, countsAsLevelFailure, m.breakerOpts...)
	if m.onBreaker != nil {
		p.SetOnCircuitStateChange(m.onBreaker)
	}
	m.levels = append(m.levels, &level{backend: b, policy: p})
}

// A miss is an answer, not a failure.
func countsAsLevelFailure(err error) bool {
	return !types.IsCacheMiss(err)
}

// run executes fn against a level, through its policy when it has one. An
// unavailable level fails fast without spending retries.
func (m *Manager) run(ctx context.Context, l *level, op, key string, fn func(context.Context) error) error {
	if r, ok := l.backend.(types.AvailabilityReporter); ok && !r.IsAvailable() {
		return types.NewCacheBackendError(op, key, l.backend.Name(), types.ErrBackendUnavailable)
	}
	if l.policy == nil {
		return fn(ctx)
	}
	err := l.policy.Execute(ctx, fn)
	if types.IsCircuitOpen(err) {
		return types.NewCacheBackendError(op, key, l.backend.Name(), err)
	}
	return err
}

// Get probes each level in order and decodes the first hit into dest. A
// level error counts as a miss there. It returns false when every level
// missed.
func (m *Manager) Get(ctx context.Context, key string, dest any) (bool, error) {
	if m.closed.Load() {
		return false, types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return false, err
	}

	data, ok := m.lookup(ctx, key)
	if !ok {
		return false, nil
	}

	if err := m.serializer.Unmarshal(data, dest); err != nil {
		m.logger.Debug("Deserialization failed", "key", key, "error", err)
		return false, err
	}
	return true, nil
}

// GetBytes is Get without decoding.
func (m *Manager) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return nil, false, err
	}

	data, ok := m.lookup(ctx, key)
	return data, ok, nil
}

func (m *Manager) lookup(ctx context.Context, key string) ([]byte, bool) {
	for i, l := range m.levels {
		var (
			data      []byte
			remaining time.Duration
		)
		start := time.Now()
		err := m.run(ctx, l, "get", key, func(ctx context.Context) error {
			var err error
			if tg, ok := l.backend.(types.TTLGetter); ok {
				data, remaining, err = tg.GetWithTTL(ctx, key)
			} else {
				data, err = l.backend.Get(ctx, key)
			}
			return err
		})
		l.observe(start)

		if err == nil {
			l.hits.Add(1)
			m.hits.Add(1)
			m.promote(ctx, key, data, i, remaining)
			return data, true
		}

		l.misses.Add(1)
		if !types.IsCacheMiss(err) {
			l.failures.Add(1)
			m.logger.Debug("Level read failed, treating as miss",
				"level", l.backend.Name(),
				"key", key,
				"error", err,
			)
		}

		// The caller is gone; deeper levels would only fail the same way.
		if ctx.Err() != nil {
			break
		}
	}

	m.misses.Add(1)
	return nil, false
}

// promote copies a value found at level hit into every faster level.
// Failures are swallowed. remaining is what the source level reported as
// left on the value, zero when unknown or unbounded; a promoted copy never
// outlives it.
func (m *Manager) promote(ctx context.Context, key string, data []byte, hit int, remaining time.Duration) {
	ttl := m.config.PromotionTTL
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}
	if remaining > 0 && (ttl <= 0 || remaining < ttl) {
		ttl = remaining
	}

	for i := hit - 1; i >= 0; i-- {
		l := m.levels[i]
		if err := m.setLevel(ctx, l, key, data, ttl); err != nil {
			m.logger.Debug("Promotion failed",
				"level", l.backend.Name(),
				"key", key,
				"error", err,
			)
		}
	}
}

func (m *Manager) setLevel(ctx context.Context, l *level, key string, data []byte, ttl time.Duration) error {
	start := time.Now()
	err := m.run(ctx, l, "set", key, func(ctx context.Context) error {
		return l.backend.Set(ctx, key, data, ttl)
	})
	l.observe(start)

	if err != nil {
		l.failures.Add(1)
		return err
	}
	l.sets.Add(1)
	return nil
}

// Set encodes value and writes it. WriteThrough writes every level
// concurrently and fails only when all of them fail; CacheAside writes L1.
func (m *Manager) Set(ctx context.Context, key string, value any, opts ...types.Option) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return err
	}

	data, err := m.serializer.Marshal(value)
	if err != nil {
		return err
	}
	return m.setBytes(ctx, key, data, m.options(opts))
}

func (m *Manager) setBytes(ctx context.Context, key string, data []byte, options *types.CacheOptions) error {
	if options.Strategy == types.CacheAside {
		return m.setLevel(ctx, m.levels[0], key, data, options.TTL)
	}

	var g errgroup.Group
	var failed atomic.Int32
	for _, l := range m.levels {
		g.Go(func() error {
			if err := m.setLevel(ctx, l, key, data, options.TTL); err != nil {
				failed.Add(1)
				m.logger.Warn("Write-through failed on level",
					"level", l.backend.Name(),
					"key", key,
					"error", err,
				)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if int(failed.Load()) == len(m.levels) {
		return fmt.Errorf("write-through failed on every level: %w", err)
	}
	return nil
}

// Delete removes key from every level concurrently and reports whether any
// level held it.
func (m *Manager) Delete(ctx context.Context, key string) (bool, error) {
	if m.closed.Load() {
		return false, types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return false, err
	}

	var (
		g       errgroup.Group
		removed atomic.Bool
		mu      sync.Mutex
		errs    []error
	)
	for _, l := range m.levels {
		g.Go(func() error {
			var existed bool
			start := time.Now()
			err := m.run(ctx, l, "delete", key, func(ctx context.Context) error {
				var err error
				existed, err = l.backend.Delete(ctx, key)
				return err
			})
			l.observe(start)

			if err != nil {
				l.failures.Add(1)
				m.logger.Warn("Delete failed on level", "level", l.backend.Name(), "key", key, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			l.deletes.Add(1)
			if existed {
				removed.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(m.levels) {
		return false, errors.Join(errs...)
	}
	return removed.Load(), nil
}

// InvalidateByPattern removes every key matching the glob from the levels
// that can enumerate keys and returns the total removed. Other levels are
// skipped.
func (m *Manager) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	if m.closed.Load() {
		return 0, types.ErrClosed
	}
	if m.validator != nil {
		if err := m.validator.ValidatePattern(pattern); err != nil {
			return 0, err
		}
	}

	total := 0
	for _, l := range m.levels {
		pd, ok := l.backend.(types.PatternDeleter)
		if !ok {
			m.logger.Debug("Level cannot enumerate keys, skipping pattern invalidation",
				"level", l.backend.Name(),
				"pattern", pattern,
			)
			continue
		}

		// A retried attempt only sees what earlier attempts left behind, so
		// every attempt's count is added.
		var n int
		start := time.Now()
		err := m.run(ctx, l, "delete_pattern", pattern, func(ctx context.Context) error {
			removed, err := pd.DeleteByPattern(ctx, pattern)
			n += removed
			return err
		})
		l.observe(start)

		total += n
		l.deletes.Add(int64(n))
		if err != nil {
			l.failures.Add(1)
			m.logger.Warn("Pattern invalidation failed on level",
				"level", l.backend.Name(),
				"pattern", pattern,
				"error", err,
			)
		}
	}

	m.logger.Debug("Invalidated by pattern", "pattern", pattern, "removed", total)
	return total, nil
}

// GetOrCreate decodes the cached value into dest, or calls factory, caches
// its result and decodes that. Concurrent callers for one key share a single
// factory call.
func (m *Manager) GetOrCreate(ctx context.Context, key string, dest any, factory func(context.Context) (any, error), opts ...types.Option) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return err
	}

	if data, ok := m.lookup(ctx, key); ok {
		return m.serializer.Unmarshal(data, dest)
	}

	options := m.options(opts)
	result, err, _ := m.sfGroup.Do(key, func() (any, error) {
		if data, ok := m.lookup(ctx, key); ok {
			return data, nil
		}

		value, err := factory(ctx)
		if err != nil {
			return nil, err
		}

		data, err := m.serializer.Marshal(value)
		if err != nil {
			return nil, err
		}

		if err := m.setBytes(ctx, key, data, options); err != nil {
			m.logger.Debug("Failed to cache factory result", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	data, ok := result.([]byte)
	if !ok {
		return fmt.Errorf("unexpected result type: %T", result)
	}
	return m.serializer.Unmarshal(data, dest)
}

// Stats returns per-level counters and the overall hit ratio. An overall
// miss means every level missed.
func (m *Manager) Stats() types.CacheStatsReport {
	hits, misses := m.hits.Load(), m.misses.Load()
	report := types.CacheStatsReport{
		Levels:      make([]types.CacheLevelStats, 0, len(m.levels)),
		Hits:        hits,
		Misses:      misses,
		HitRatio:    types.HitRatio(hits, misses),
		L1Entries:   m.l1.Len(),
		L1Evictions: m.l1.Evictions(),
	}
	for _, l := range m.levels {
		report.Levels = append(report.Levels, l.stats())
		if _, ok := l.backend.(types.PatternDeleter); ok {
			report.PatternLevels = append(report.PatternLevels, l.backend.Name())
		}
	}
	return report
}

// Levels returns the level names in probe order.
func (m *Manager) Levels() []string {
	names := make([]string, len(m.levels))
	for i, l := range m.levels {
		names[i] = l.backend.Name()
	}
	return names
}

// LevelBreakers returns the circuit breakers guarding remote levels.
func (m *Manager) LevelBreakers() []*resilience.CircuitBreaker {
	var out []*resilience.CircuitBreaker
	for _, l := range m.levels {
		if l.policy != nil && l.policy.Breaker() != nil {
			out = append(out, l.policy.Breaker())
		}
	}
	return out
}

// Close closes every level that holds resources. Later calls return nil.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.logger.Info("Closing cache manager")
	return m.closeLevels()
}

func (m *Manager) closeLevels() error {
	var errs []error
	for _, l := range m.levels {
		if c, ok := l.backend.(types.CacheCloser); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", l.backend.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) validateKey(key string) error {
	if m.validator == nil {
		return nil
	}
	return m.validator.Validate(key)
}

// options layers per-call options over the configured defaults.
func (m *Manager) options(opts []types.Option) *types.CacheOptions {
	strategy, ok := types.ParseWriteStrategy(m.config.DefaultStrategy)
	if !ok {
		strategy = types.WriteThrough
	}
	options := &types.CacheOptions{
		TTL:      m.config.DefaultTTL,
		Strategy: strategy,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
