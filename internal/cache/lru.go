package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/LavishGent/holdfast/internal/types"
)

// LRU is the in-process first level. It holds at most maxEntries items and,
// when a new key arrives at capacity, evicts the single least recently
// accessed one. Expired items are removed lazily when touched.
type LRU struct {
	now        func() time.Time
	items      map[string]*list.Element
	order      *list.List // front is most recently accessed
	mu         sync.Mutex
	maxEntries int
	evictions  int64
}

// LevelOption configures a cache level.
type LevelOption func(*levelOptions)

type levelOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now for TTL bookkeeping.
func WithClock(now func() time.Time) LevelOption {
	return func(o *levelOptions) {
		o.now = now
	}
}

func applyLevelOptions(opts []LevelOption) levelOptions {
	o := levelOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewLRU creates the memory level. A non-positive maxEntries becomes 10000.
func NewLRU(maxEntries int, opts ...LevelOption) *LRU {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	o := applyLevelOptions(opts)

	return &LRU{
		now:        o.now,
		items:      make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func (c *LRU) Name() string {
	return "memory"
}

func (c *LRU) Get(_ context.Context, key string) ([]byte, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, types.ErrCacheMiss
	}

	item := el.Value.(*types.CacheItem)
	if item.IsExpired(now) {
		c.removeElement(el)
		return nil, types.ErrCacheMiss
	}

	item.LastAccessed = now
	item.AccessCount++
	c.order.MoveToFront(el)
	return item.Value, nil
}

// Set stores a copy of value. A non-positive ttl never expires.
func (c *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now()
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		item := el.Value.(*types.CacheItem)
		item.Value = stored
		item.SizeBytes = len(stored)
		item.CreatedAt = now
		item.LastAccessed = now
		item.TTL = ttl
		c.order.MoveToFront(el)
		return nil
	}

	if len(c.items) >= c.maxEntries {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
			c.evictions++
		}
	}

	c.items[key] = c.order.PushFront(&types.CacheItem{
		Key:          key,
		Value:        stored,
		SizeBytes:    len(stored),
		CreatedAt:    now,
		LastAccessed: now,
		TTL:          ttl,
	})
	return nil
}

func (c *LRU) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.removeElement(el)
	return true, nil
}

// DeleteByPattern removes every key matching the glob and returns how many
// went. Expired matches are removed but not counted.
func (c *LRU) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.items {
		if !MatchPattern(pattern, key) {
			continue
		}
		if !el.Value.(*types.CacheItem).IsExpired(now) {
			removed++
		}
		c.removeElement(el)
	}
	return removed, nil
}

// Peek returns a copy of the item without touching its recency.
func (c *LRU) Peek(key string) (types.CacheItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return types.CacheItem{}, false
	}
	return *el.Value.(*types.CacheItem), true
}

// Len counts stored items, including expired ones not yet touched.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU) Evictions() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.maxEntries)
	c.order.Init()
}

func (c *LRU) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*types.CacheItem).Key)
}

var (
	_ types.CacheBackend   = (*LRU)(nil)
	_ types.PatternDeleter = (*LRU)(nil)
)
