package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/metrics"
	"github.com/LavishGent/holdfast/internal/types"
)

// Operation is a unit of protected work. It must stop when ctx is done.
type Operation[T any] func(ctx context.Context) (T, error)

type execOptions struct {
	pool     string
	priority types.Priority
	circuit  *config.CircuitBreakerConfig
}

// ExecOption configures one ExecuteProtected call.
type ExecOption func(*execOptions)

// WithPool admits the call through the named bulkhead pool.
func WithPool(name string) ExecOption {
	return func(o *execOptions) {
		o.pool = name
	}
}

// WithPriority scales how long the call may wait for a pool slot.
func WithPriority(p types.Priority) ExecOption {
	return func(o *execOptions) {
		o.priority = p
	}
}

// WithCircuitConfig sets the breaker config used if this call creates the
// operation's breaker. It is ignored once the breaker exists.
func WithCircuitConfig(cfg config.CircuitBreakerConfig) ExecOption {
	return func(o *execOptions) {
		o.circuit = &cfg
	}
}

// outcome is what the operation goroutine hands back.
type outcome[T any] struct {
	value T
	err   error
}

// ExecuteProtected runs op behind the pool (if any), then the operation's
// circuit breaker, under the breaker's timeout.
//
// Pool rejections and timeouts return *types.BulkheadRejectedError or
// *types.BulkheadTimeoutError and never touch the breaker. An open circuit
// returns *types.CircuitOpenError. An op that outlives its timeout yields
// *types.OperationTimeoutError, and any other error (or a panic) yields
// *types.OperationFailedError; both count as failures. If the caller's ctx
// ends first, its error is returned, nothing is recorded and any half-open
// probe slot the call held is given back.
func ExecuteProtected[T any](ctx context.Context, o *Orchestrator, name string, op Operation[T], opts ...ExecOption) (T, error) {
	var zero T
	if o.closed.Load() {
		return zero, types.ErrClosed
	}

	eo := execOptions{}
	for _, opt := range opts {
		opt(&eo)
	}

	opTag := metrics.OperationTag(name)

	if eo.pool != "" {
		pool := o.pools.Get(eo.pool)
		if err := pool.Acquire(ctx, eo.priority); err != nil {
			if types.IsBulkheadError(err) {
				o.sink.Count("bulkhead.rejected", 1, opTag, metrics.PoolTag(eo.pool), metrics.StatusTag(bulkheadStatus(err)))
			}
			return zero, err
		}
		defer pool.Release()
	}

	cb := o.breakers.Get(name, eo.circuit)
	if err := cb.Allow(); err != nil {
		o.sink.Count("operation.rejected", 1, opTag, metrics.StatusTag("circuit_open"))
		return zero, err
	}

	timeout := cb.Timeout()
	timer := metrics.NewTimer(o.sink, "operation.latency_ms", opTag)
	value, err := run(ctx, timeout, op)

	if err == nil {
		cb.RecordSuccess()
		o.record(name, true, timer, "success")
		return value, nil
	}

	if ctx.Err() != nil {
		cb.Release()
		o.logger.Debug("Caller cancelled operation", "operation", name, "error", ctx.Err())
		return zero, ctx.Err()
	}

	if errors.Is(err, errDeadline) {
		timeoutErr := &types.OperationTimeoutError{Operation: name, Timeout: timeout}
		cb.RecordFailure(timeoutErr)
		o.record(name, false, timer, "timeout")
		return zero, timeoutErr
	}

	cb.RecordFailure(err)
	o.record(name, false, timer, "failure")
	return zero, &types.OperationFailedError{Operation: name, Cause: err}
}

// Execute is ExecuteProtected for callers that do not need a typed result.
func (o *Orchestrator) Execute(ctx context.Context, name string, op func(context.Context) (any, error), opts ...ExecOption) (any, error) {
	return ExecuteProtected(ctx, o, name, Operation[any](op), opts...)
}

// errDeadline marks an op that did not finish within its own timeout.
var errDeadline = errors.New("deadline exceeded")

// run calls op on its own goroutine so a deadline returns control to the
// caller even when op ignores its ctx. A late result is discarded.
func run[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	var (
		opCtx  context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		opCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		var out outcome[T]
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("panic: %v", r)
			}
			done <- out
		}()
		out.value, out.err = op(opCtx)
	}()

	var zero T
	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return zero, errDeadline
		}
		return out.value, out.err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, errDeadline
	}
}

func (o *Orchestrator) record(name string, success bool, timer *metrics.Timer, status string) {
	latency := timer.Stop(metrics.StatusTag(status))
	if success {
		o.tracker.RecordSuccess(name, latency)
	} else {
		o.tracker.RecordFailure(name, latency)
	}
	o.sink.Count("operation.requests", 1, metrics.OperationTag(name), metrics.StatusTag(status))
}

func bulkheadStatus(err error) string {
	if errors.Is(err, types.ErrBulkheadTimeout) {
		return "timeout"
	}
	return "rejected"
}
