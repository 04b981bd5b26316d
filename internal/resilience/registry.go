package resilience

import (
	"sort"
	"sync"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

// CircuitRegistry owns one breaker per operation name. Breakers are created
// on first use and live as long as the registry.
type CircuitRegistry struct {
	defaults func(name string) config.CircuitBreakerConfig
	opts     []CircuitOption

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	onChange StateChangeFunc
}

// NewCircuitRegistry creates a registry. defaults supplies the config for a
// name the first time it is seen without an explicit config.
func NewCircuitRegistry(defaults func(name string) config.CircuitBreakerConfig, opts ...CircuitOption) *CircuitRegistry {
	if defaults == nil {
		defaults = func(string) config.CircuitBreakerConfig { return config.CircuitBreakerConfig{} }
	}
	return &CircuitRegistry{
		defaults: defaults,
		opts:     opts,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it with cfg (or the defaults
// when cfg is nil). A breaker's config is fixed once created; later cfg
// values are ignored.
func (r *CircuitRegistry) Get(name string, cfg *config.CircuitBreakerConfig) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	c := r.defaults(name)
	if cfg != nil {
		c = *cfg
	}
	cb = NewCircuitBreaker(name, c, r.opts...)
	cb.SetOnStateChange(r.notify)
	r.breakers[name] = cb
	return cb
}

// Lookup returns an existing breaker without creating one.
func (r *CircuitRegistry) Lookup(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// SetOnStateChange sets the callback shared by every breaker, including
// ones created later.
func (r *CircuitRegistry) SetOnStateChange(fn StateChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *CircuitRegistry) notify(name string, from, to State) {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()

	if fn != nil {
		fn(name, from, to)
	}
}

// Reset closes the named breaker. It reports false for unknown names.
func (r *CircuitRegistry) Reset(name string) bool {
	cb, ok := r.Lookup(name)
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

func (r *CircuitRegistry) ResetAll() {
	for _, cb := range r.all() {
		cb.Reset()
	}
}

// SweepHalfOpen moves every OPEN breaker whose recovery timeout has passed
// to HALF_OPEN and returns their names.
func (r *CircuitRegistry) SweepHalfOpen() []string {
	var moved []string
	for _, cb := range r.all() {
		if cb.TryHalfOpen() {
			moved = append(moved, cb.Name())
		}
	}
	return moved
}

// Snapshots returns every breaker's state sorted by name.
func (r *CircuitRegistry) Snapshots() []types.CircuitSnapshot {
	breakers := r.all()
	out := make([]types.CircuitSnapshot, 0, len(breakers))
	for _, cb := range breakers {
		out = append(out, cb.Snapshot())
	}
	return out
}

func (r *CircuitRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakers)
}

// all copies the breakers out so no registry lock is held while they run.
func (r *CircuitRegistry) all() []*CircuitBreaker {
	r.mu.RLock()
	out := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// PoolRegistry owns one bulkhead pool per resource class name.
type PoolRegistry struct {
	config func(name string) config.BulkheadConfig

	mu    sync.RWMutex
	pools map[string]*Pool
}

func NewPoolRegistry(cfg func(name string) config.BulkheadConfig) *PoolRegistry {
	if cfg == nil {
		cfg = func(string) config.BulkheadConfig { return config.BulkheadConfig{} }
	}
	return &PoolRegistry{
		config: cfg,
		pools:  make(map[string]*Pool),
	}
}

// Get returns the pool for name, creating it on first reference.
func (r *PoolRegistry) Get(name string) *Pool {
	r.mu.RLock()
	p, ok := r.pools[name]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok = r.pools[name]; ok {
		return p
	}
	p = NewPool(name, r.config(name))
	r.pools[name] = p
	return p
}

func (r *PoolRegistry) Lookup(name string) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[name]
	return p, ok
}

// Snapshots returns every pool's utilization sorted by name.
func (r *PoolRegistry) Snapshots() []types.PoolSnapshot {
	r.mu.RLock()
	pools := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.RUnlock()

	sort.Slice(pools, func(i, j int) bool { return pools[i].Name() < pools[j].Name() })

	out := make([]types.PoolSnapshot, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Snapshot())
	}
	return out
}
