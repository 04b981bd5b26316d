// Package resilience provides circuit breakers, bulkhead pools and retry
// policies, plus the registries that key them by name.
package resilience

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

type State = types.CircuitState

const (
	StateClosed   = types.CircuitClosed
	StateOpen     = types.CircuitOpen
	StateHalfOpen = types.CircuitHalfOpen
)

// StateChangeFunc is told about every transition. It runs after the
// breaker's mutex is released, so it may read the breaker.
type StateChangeFunc func(name string, from, to State)

// CircuitOption customizes a breaker at construction.
type CircuitOption func(*CircuitBreaker)

// WithClock replaces time.Now. Tests use it to step through recovery
// timeouts without sleeping.
func WithClock(now func() time.Time) CircuitOption {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// CircuitBreaker guards one named operation.
//
// CLOSED opens after failureThreshold counted failures; OPEN rejects until
// nextAttempt; HALF_OPEN closes after successThreshold successes and reopens
// on any counted failure. Successes while CLOSED decay the failure count by
// one, so only a run of failures trips the breaker.
type CircuitBreaker struct {
	name string

	failureThreshold    int
	successThreshold    int
	recoveryTimeout     time.Duration
	timeout             time.Duration
	halfOpenMaxRequests int
	countsAsFailure     func(error) bool
	now                 func() time.Time

	state atomic.Int32

	mu               sync.Mutex
	failureCount     int
	successCount     int
	halfOpenRequests int
	totalRequests    int64
	totalFailures    int64
	lastFailureTime  time.Time
	nextAttempt      time.Time

	onStateChange StateChangeFunc
}

// stateTransition allows callbacks to be invoked outside the mutex to prevent deadlocks.
type stateTransition struct {
	callback StateChangeFunc
	name     string
	from     State
	to       State
}

// NewCircuitBreaker creates a breaker. Zero config fields fall back to
// failure 5, success 2, recovery 30s.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, opts ...CircuitOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:                name,
		failureThreshold:    cfg.FailureThreshold,
		successThreshold:    cfg.SuccessThreshold,
		recoveryTimeout:     cfg.RecoveryTimeout,
		timeout:             cfg.Timeout,
		halfOpenMaxRequests: cfg.HalfOpenMaxRequests,
		countsAsFailure:     cfg.CountsAsFailure,
		now:                 time.Now,
	}

	if cb.failureThreshold <= 0 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold <= 0 {
		cb.successThreshold = 2
	}
	if cb.recoveryTimeout <= 0 {
		cb.recoveryTimeout = 30 * time.Second
	}
	// A probe limit below the success threshold could never close the circuit.
	if cb.halfOpenMaxRequests > 0 && cb.halfOpenMaxRequests < cb.successThreshold {
		cb.halfOpenMaxRequests = cb.successThreshold
	}
	if cb.countsAsFailure == nil {
		cb.countsAsFailure = func(error) bool { return true }
	}

	for _, opt := range opts {
		opt(cb)
	}

	cb.state.Store(int32(StateClosed))

	return cb
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Timeout bounds one protected execution. Zero means no bound.
func (cb *CircuitBreaker) Timeout() time.Duration {
	return cb.timeout
}

// Execute runs fn through the breaker.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	if err := fn(); err != nil {
		cb.RecordFailure(err)
		return err
	}

	cb.RecordSuccess()
	return nil
}

// Allow decides whether an attempt may proceed. It returns a
// *types.CircuitOpenError when the attempt is rejected. An OPEN breaker whose
// recovery timeout has passed moves to HALF_OPEN and admits the caller.
func (cb *CircuitBreaker) Allow() error {
	switch State(cb.state.Load()) {
	case StateClosed:
		return nil

	case StateOpen:
		var transition *stateTransition

		cb.mu.Lock()
		if State(cb.state.Load()) != StateOpen {
			cb.mu.Unlock()
			return cb.Allow()
		}
		if cb.now().Before(cb.nextAttempt) {
			next := cb.nextAttempt
			cb.mu.Unlock()
			return &types.CircuitOpenError{Operation: cb.name, NextAttempt: next}
		}
		transition = cb.transitionTo(StateHalfOpen)
		cb.halfOpenRequests = 1
		cb.mu.Unlock()

		transition.invoke()
		return nil

	case StateHalfOpen:
		cb.mu.Lock()
		if State(cb.state.Load()) != StateHalfOpen {
			cb.mu.Unlock()
			return cb.Allow()
		}
		allowed := cb.halfOpenMaxRequests <= 0 || cb.halfOpenRequests < cb.halfOpenMaxRequests
		if allowed {
			cb.halfOpenRequests++
		}
		now := cb.now()
		cb.mu.Unlock()

		if !allowed {
			// Every probe slot is taken. A slot frees no later than one
			// execution timeout from now.
			return &types.CircuitOpenError{Operation: cb.name, NextAttempt: now.Add(cb.timeout)}
		}
		return nil

	default:
		return nil
	}
}

// RecordSuccess records a successful outcome.
func (cb *CircuitBreaker) RecordSuccess() {
	var transition *stateTransition

	cb.mu.Lock()
	cb.totalRequests++

	switch State(cb.state.Load()) {
	case StateClosed:
		if cb.failureCount > 0 {
			cb.failureCount--
		}

	case StateHalfOpen:
		cb.releaseProbe()
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			transition = cb.transitionTo(StateClosed)
		}
	}
	cb.mu.Unlock()

	// Invoke callback outside mutex to prevent deadlock
	transition.invoke()
}

// RecordFailure records a failed outcome. Errors the classifier does not
// count are recorded as successes.
func (cb *CircuitBreaker) RecordFailure(err error) {
	if !cb.countsAsFailure(err) {
		cb.RecordSuccess()
		return
	}

	var transition *stateTransition

	cb.mu.Lock()
	cb.totalRequests++
	cb.totalFailures++
	cb.failureCount++
	cb.lastFailureTime = cb.now()

	switch State(cb.state.Load()) {
	case StateClosed:
		if cb.failureCount >= cb.failureThreshold {
			transition = cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		transition = cb.transitionTo(StateOpen)
	}
	cb.mu.Unlock()

	transition.invoke()
}

// Release returns a probe slot taken by Allow whose outcome will never be
// recorded, such as a call the caller abandoned.
func (cb *CircuitBreaker) Release() {
	if State(cb.state.Load()) != StateHalfOpen {
		return
	}
	cb.mu.Lock()
	if State(cb.state.Load()) == StateHalfOpen {
		cb.releaseProbe()
	}
	cb.mu.Unlock()
}

// releaseProbe must be called while holding the mutex.
func (cb *CircuitBreaker) releaseProbe() {
	if cb.halfOpenRequests > 0 {
		cb.halfOpenRequests--
	}
}

// TryHalfOpen moves an OPEN breaker whose recovery timeout has passed to
// HALF_OPEN. It reports whether it did.
func (cb *CircuitBreaker) TryHalfOpen() bool {
	if State(cb.state.Load()) != StateOpen {
		return false
	}

	var transition *stateTransition

	cb.mu.Lock()
	if State(cb.state.Load()) == StateOpen && !cb.now().Before(cb.nextAttempt) {
		transition = cb.transitionTo(StateHalfOpen)
	}
	cb.mu.Unlock()

	transition.invoke()
	return transition != nil
}

// transitionTo changes the state and resets counters for the new state.
// Must be called while holding the mutex. The returned transition (possibly
// nil) must be invoked after the mutex is released.
func (cb *CircuitBreaker) transitionTo(newState State) *stateTransition {
	oldState := State(cb.state.Load())
	if oldState == newState {
		return nil
	}

	switch newState {
	case StateClosed:
		cb.failureCount = 0
		cb.successCount = 0
		cb.halfOpenRequests = 0
		cb.nextAttempt = time.Time{}

	case StateOpen:
		cb.successCount = 0
		cb.halfOpenRequests = 0
		cb.nextAttempt = cb.now().Add(cb.recoveryTimeout)

	case StateHalfOpen:
		cb.successCount = 0
		cb.halfOpenRequests = 0
	}

	cb.state.Store(int32(newState))

	return &stateTransition{
		name:     cb.name,
		from:     oldState,
		to:       newState,
		callback: cb.onStateChange,
	}
}

func (t *stateTransition) invoke() {
	if t != nil && t.callback != nil {
		t.callback(t.name, t.from, t.to)
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// SetOnStateChange sets the transition callback. Keep it fast: it runs on
// the caller's goroutine.
func (cb *CircuitBreaker) SetOnStateChange(fn StateChangeFunc) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Reset forces the breaker CLOSED and clears its counters. Lifetime totals
// are kept.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	transition := cb.transitionTo(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenRequests = 0
	cb.mu.Unlock()

	transition.invoke()
}

// Snapshot returns a consistent copy of the breaker's counters.
func (cb *CircuitBreaker) Snapshot() types.CircuitSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return types.CircuitSnapshot{
		Name:            cb.name,
		State:           cb.State(),
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		TotalRequests:   cb.totalRequests,
		TotalFailures:   cb.totalFailures,
		LastFailureTime: cb.lastFailureTime,
		NextAttemptTime: cb.nextAttempt,
	}
}
