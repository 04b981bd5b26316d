package holdfast

import (
	"context"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/orchestrator"
)

// Orchestrator runs operations behind circuit breakers and bulkhead pools
// and fronts the multi-level cache.
type Orchestrator = orchestrator.Orchestrator

// New creates an orchestrator with the default configuration.
func New(ctx context.Context, opts ...Option) (*Orchestrator, error) {
	return NewFromConfig(ctx, config.DefaultConfig(), opts...)
}

// NewFromConfig creates an orchestrator from cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return orchestrator.New(ctx, cfg, o.build()...)
}

// NewFromFile creates an orchestrator from a JSON or YAML config file with
// HOLDFAST_* environment overrides applied.
func NewFromFile(ctx context.Context, path string, opts ...Option) (*Orchestrator, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(ctx, cfg, opts...)
}

// ExecuteProtected runs op through the named operation's pool (when
// WithPool is given), circuit breaker and timeout. op must stop when its
// ctx is done.
func ExecuteProtected[T any](ctx context.Context, o *Orchestrator, name string, op func(context.Context) (T, error), opts ...ExecOption) (T, error) {
	return orchestrator.ExecuteProtected[T](ctx, o, name, op, opts...)
}

// Config returns a default configuration that can be modified before
// creating an orchestrator.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests: short
// timeouts, no background loops and no exporters.
func TestConfig() *config.Config {
	return config.ForTesting()
}
