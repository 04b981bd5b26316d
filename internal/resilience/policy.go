package resilience

import (
	"context"

	"github.com/LavishGent/holdfast/internal/config"
)

// Policy protects calls to one remote cache level: each retry attempt goes
// through the level's breaker, so a failing level opens its circuit after
// failureThreshold attempts rather than failureThreshold whole calls.
type Policy struct {
	breaker *CircuitBreaker
	retry   *RetryPolicy
}

// NewPolicy builds a policy for the named level. countsAsFailure decides
// which errors trip the breaker; cache misses should not.
func NewPolicy(name string, cfg config.ProtectionConfig, countsAsFailure func(error) bool, opts ...CircuitOption) *Policy {
	p := &Policy{retry: NewRetryPolicy(cfg.Retry)}

	if cfg.CircuitBreakerEnabled {
		cbCfg := cfg.CircuitBreaker
		if countsAsFailure != nil {
			cbCfg.CountsAsFailure = countsAsFailure
		}
		p.breaker = NewCircuitBreaker(name, cbCfg, opts...)
	}

	return p
}

// Execute runs fn through retry, then the breaker.
func (p *Policy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return p.retry.Execute(ctx, func(ctx context.Context) error {
		if p.breaker == nil {
			return fn(ctx)
		}
		return p.breaker.Execute(func() error {
			return fn(ctx)
		})
	})
}

// Do is Execute for calls that return a value.
func Do[T any](ctx context.Context, p *Policy, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

// Breaker returns the level breaker, or nil when breakers are disabled.
func (p *Policy) Breaker() *CircuitBreaker {
	return p.breaker
}

func (p *Policy) IsCircuitOpen() bool {
	return p.breaker != nil && p.breaker.IsOpen()
}

func (p *Policy) SetOnCircuitStateChange(fn StateChangeFunc) {
	if p.breaker != nil {
		p.breaker.SetOnStateChange(fn)
	}
}
