package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

// Pool is a bulkhead: at most maxConcurrent holders at once and at most
// maxQueue callers waiting for a slot. Callers beyond that are rejected
// without waiting.
type Pool struct {
	name          string
	maxConcurrent int
	maxQueue      int
	baseTimeout   time.Duration
	slots         chan struct{}

	current  atomic.Int32
	queued   atomic.Int32
	admitted atomic.Int64
	rejected atomic.Int64
	timedOut atomic.Int64
}

// NewPool creates a pool. A non-positive MaxConcurrent becomes 100 and a
// non-positive BaseTimeout becomes 100ms. MaxQueue may be zero, in which
// case a full pool rejects immediately.
func NewPool(name string, cfg config.BulkheadConfig) *Pool {
	maxConcurrent := cfg.MaxConcurrent
	maxQueue := cfg.MaxQueue
	baseTimeout := cfg.BaseTimeout

	if maxConcurrent <= 0 {
		maxConcurrent = 100
	}
	if maxQueue < 0 {
		maxQueue = 0
	}
	if baseTimeout <= 0 {
		baseTimeout = 100 * time.Millisecond
	}

	return &Pool{
		name:          name,
		maxConcurrent: maxConcurrent,
		maxQueue:      maxQueue,
		baseTimeout:   baseTimeout,
		slots:         make(chan struct{}, maxConcurrent),
	}
}

func (p *Pool) Name() string {
	return p.name
}

// EffectiveTimeout is how long a caller of the given priority may wait:
// baseTimeout × (4 − rank), so critical waits 4× and low 1×.
func (p *Pool) EffectiveTimeout(priority types.Priority) time.Duration {
	return p.baseTimeout * time.Duration(4-priority.Rank())
}

// Acquire takes a slot or fails with *types.BulkheadRejectedError (queue
// full) or *types.BulkheadTimeoutError (no slot within the effective
// timeout or the ctx deadline). A cancelled ctx returns ctx.Err(). Every
// successful Acquire must be paired with exactly one Release.
func (p *Pool) Acquire(ctx context.Context, priority types.Priority) error {
	select {
	case p.slots <- struct{}{}:
		p.admit()
		return nil
	default:
	}

	if !p.reserveQueue() {
		p.rejected.Add(1)
		return &types.BulkheadRejectedError{
			Pool:     p.name,
			Queued:   int(p.queued.Load()),
			MaxQueue: p.maxQueue,
		}
	}
	defer p.queued.Add(-1)

	wait := p.EffectiveTimeout(priority)
	start := time.Now()
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case p.slots <- struct{}{}:
		p.admit()
		return nil
	case <-timer.C:
		p.timedOut.Add(1)
		return &types.BulkheadTimeoutError{Pool: p.name, Waited: wait}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.timedOut.Add(1)
			return &types.BulkheadTimeoutError{Pool: p.name, Waited: time.Since(start)}
		}
		return ctx.Err()
	}
}

// reserveQueue claims a queue position unless the queue is full.
func (p *Pool) reserveQueue() bool {
	for {
		q := p.queued.Load()
		if int(q) >= p.maxQueue {
			return false
		}
		if p.queued.CompareAndSwap(q, q+1) {
			return true
		}
	}
}

func (p *Pool) admit() {
	p.current.Add(1)
	p.admitted.Add(1)
}

// Release returns a slot taken by Acquire. An unmatched Release is ignored.
func (p *Pool) Release() {
	// Decrement before freeing the slot so current never exceeds maxConcurrent.
	if p.current.Add(-1) < 0 {
		p.current.Add(1)
		return
	}
	<-p.slots
}

// Execute runs fn while holding a slot.
func (p *Pool) Execute(ctx context.Context, priority types.Priority, fn func(context.Context) error) error {
	if err := p.Acquire(ctx, priority); err != nil {
		return err
	}
	defer p.Release()

	return fn(ctx)
}

func (p *Pool) Current() int {
	return int(p.current.Load())
}

func (p *Pool) Queued() int {
	return int(p.queued.Load())
}

// Snapshot returns the pool's utilization and lifetime counters.
func (p *Pool) Snapshot() types.PoolSnapshot {
	current := int(p.current.Load())
	queued := int(p.queued.Load())

	snap := types.PoolSnapshot{
		Name:          p.name,
		MaxConcurrent: p.maxConcurrent,
		Current:       current,
		MaxQueue:      p.maxQueue,
		Queued:        queued,
		Utilization:   float64(current) / float64(p.maxConcurrent),
		TotalAdmitted: p.admitted.Load(),
		TotalRejected: p.rejected.Load(),
		TotalTimedOut: p.timedOut.Load(),
	}
	if p.maxQueue > 0 {
		snap.QueueUtilization = float64(queued) / float64(p.maxQueue)
	}
	return snap
}
