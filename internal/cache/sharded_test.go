package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

func newTestSharded(t *testing.T, clock *testClock) *ShardedCache {
	t.Helper()

	sc, err := NewShardedCache(config.ShardedConfig{
		Shards:       16,
		LifeWindow:   time.Hour,
		CleanWindow:  time.Minute,
		MaxEntrySize: 64,
	}, nil, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewShardedCache() = %v", err)
	}
	t.Cleanup(func() { _ = sc.Close() })
	return sc
}

func TestShardedCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	sc := newTestSharded(t, newTestClock())

	if _, err := sc.Get(ctx, "missing"); !errors.Is(err, types.ErrCacheMiss) {
		t.Fatalf("Get(missing) = %v, want miss", err)
	}

	if err := sc.Set(ctx, "k", []byte("value"), 0); err != nil {
		t.Fatal(err)
	}
	got, err := sc.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "value" {
		t.Errorf("Get(k) = %q, want value", got)
	}

	removed, err := sc.Delete(ctx, "k")
	if err != nil || !removed {
		t.Errorf("Delete(k) = %v, %v", removed, err)
	}
	removed, _ = sc.Delete(ctx, "k")
	if removed {
		t.Error("second Delete(k) = true")
	}
}

func TestShardedCacheItemTTL(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	sc := newTestSharded(t, clock)

	_ = sc.Set(ctx, "short", []byte("s"), time.Second)
	_ = sc.Set(ctx, "long", []byte("l"), time.Minute)

	clock.Advance(2 * time.Second)

	if _, err := sc.Get(ctx, "short"); !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("Get(short) = %v, want miss after expiry", err)
	}
	if _, err := sc.Get(ctx, "long"); err != nil {
		t.Errorf("Get(long) = %v", err)
	}
	if sc.Len() != 2 {
		t.Errorf("Len() = %d, want 2: reads leave stale entries to the clean window", sc.Len())
	}

	_ = sc.Set(ctx, "short", []byte("fresh"), time.Minute)
	got, err := sc.Get(ctx, "short")
	if err != nil {
		t.Fatalf("Get(short) after rewrite = %v", err)
	}
	if string(got) != "fresh" {
		t.Errorf("Get(short) = %q, want fresh", got)
	}
	if _, err := sc.Get(ctx, "short"); err != nil {
		t.Errorf("second Get(short) = %v, a read must not remove a live entry", err)
	}
}

func TestShardedCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	sc := newTestSharded(t, newTestClock())

	for _, k := range []string{"user:1", "user:2", "order:1"} {
		_ = sc.Set(ctx, k, []byte(k), 0)
	}

	n, err := sc.DeleteByPattern(ctx, "user:?")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DeleteByPattern() = %d, want 2", n)
	}
	if _, err := sc.Get(ctx, "order:1"); err != nil {
		t.Errorf("Get(order:1) = %v", err)
	}
}

func TestShardedCacheClosed(t *testing.T) {
	ctx := context.Background()
	sc := newTestSharded(t, newTestClock())
	_ = sc.Close()

	if _, err := sc.Get(ctx, "k"); !types.IsBackendUnavailable(err) {
		t.Errorf("Get() after Close = %v, want backend error", err)
	}
	if err := sc.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
