// Package schedule runs named maintenance loops on their own tickers.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LavishGent/holdfast/internal/types"
)

// Periodic is one loop: fn runs every Interval until the runner stops.
type Periodic struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context)
}

// Runner starts a set of Periodic loops that share one cancel context and
// one WaitGroup.
type Runner struct {
	logger *slog.Logger
	loops  []Periodic

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewRunner(logger *slog.Logger, loops ...Periodic) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger: logger.With("component", "scheduler"),
		loops:  loops,
	}
}

// Start launches every loop with a positive interval. The loops keep ctx's
// values but not its cancellation: they run until Stop, so a request-scoped
// ctx cannot end them behind the Runner's back. Starting a running Runner
// does nothing.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.running = true

	for _, loop := range r.loops {
		if loop.Interval <= 0 || loop.Fn == nil {
			r.logger.Debug("Loop disabled", "loop", loop.Name)
			continue
		}
		r.wg.Add(1)
		go r.run(loopCtx, loop)
		r.logger.Info("Loop started", "loop", loop.Name, "interval", loop.Interval)
	}
}

// Stop cancels the loops and waits for them to return, or for ctx to end.
// It returns types.ErrShutdownTimeout in the latter case.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.cancel()
	r.running = false
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Loops stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", types.ErrShutdownTimeout, ctx.Err())
	}
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) run(ctx context.Context, loop Periodic) {
	defer r.wg.Done()

	ticker := time.NewTicker(loop.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, loop)
		}
	}
}

func (r *Runner) tick(ctx context.Context, loop Periodic) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered from panic in loop", "loop", loop.Name, "panic", rec)
		}
	}()
	loop.Fn(ctx)
}
