package orchestrator

import (
	"context"

	"github.com/LavishGent/holdfast/internal/metrics"
	"github.com/LavishGent/holdfast/internal/types"
)

// CacheGet decodes the cached value for key into dest. It reports false on
// a miss across every level.
func (o *Orchestrator) CacheGet(ctx context.Context, key string, dest any) (bool, error) {
	timer := metrics.NewTimer(o.sink, "cache.latency_ms", metrics.Tag("op", "get"))
	found, err := o.cache.Get(ctx, key, dest)
	status := "hit"
	switch {
	case err != nil:
		status = "error"
	case !found:
		status = "miss"
	}
	timer.Stop(metrics.StatusTag(status))
	o.sink.Count("cache.requests", 1, metrics.Tag("op", "get"), metrics.StatusTag(status))
	return found, err
}

func (o *Orchestrator) CacheSet(ctx context.Context, key string, value any, opts ...types.Option) error {
	err := o.cache.Set(ctx, key, value, opts...)
	o.sink.Count("cache.requests", 1, metrics.Tag("op", "set"), metrics.StatusTag(resultStatus(err)))
	return err
}

func (o *Orchestrator) CacheDelete(ctx context.Context, key string) (bool, error) {
	deleted, err := o.cache.Delete(ctx, key)
	o.sink.Count("cache.requests", 1, metrics.Tag("op", "delete"), metrics.StatusTag(resultStatus(err)))
	return deleted, err
}

// InvalidateByPattern removes every key matching the glob pattern from the
// levels that support it and returns how many were removed.
func (o *Orchestrator) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	n, err := o.cache.InvalidateByPattern(ctx, pattern)
	o.sink.Count("cache.invalidated", int64(n))
	return n, err
}

// GetOrCreate returns the cached value for key, or stores what factory
// returns. Concurrent callers for one key share a single factory call.
func (o *Orchestrator) GetOrCreate(ctx context.Context, key string, dest any, factory func(context.Context) (any, error), opts ...types.Option) error {
	return o.cache.GetOrCreate(ctx, key, dest, factory, opts...)
}

func (o *Orchestrator) CacheStats() types.CacheStatsReport {
	return o.cache.Stats()
}

func resultStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
