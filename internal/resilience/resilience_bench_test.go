package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

func benchBreaker(threshold int) *CircuitBreaker {
	return NewCircuitBreaker("bench", config.CircuitBreakerConfig{
		FailureThreshold: threshold,
		SuccessThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
	})
}

func BenchmarkCircuitBreaker_Allow(b *testing.B) {
	cb := benchBreaker(5)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = cb.Allow()
	}
}

func BenchmarkCircuitBreaker_RecordSuccess(b *testing.B) {
	cb := benchBreaker(5)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cb.RecordSuccess()
	}
}

func BenchmarkCircuitBreaker_RecordFailure(b *testing.B) {
	cb := benchBreaker(1 << 30)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cb.RecordFailure(errBoom)
	}
}

func BenchmarkCircuitRegistry_GetParallel(b *testing.B) {
	reg := NewCircuitRegistry(nil)
	reg.Get("db", nil)

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = reg.Get("db", nil)
		}
	})
}

func BenchmarkRetry_Execute_Success(b *testing.B) {
	rp := NewRetryPolicy(config.RetryConfig{Enabled: true, MaxAttempts: 3})
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = rp.Execute(ctx, op)
	}
}

func BenchmarkPool_Execute(b *testing.B) {
	p := NewPool("bench", config.BulkheadConfig{MaxConcurrent: 1000, MaxQueue: 50, BaseTimeout: 100 * time.Millisecond})
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = p.Execute(ctx, types.PriorityNormal, op)
	}
}

func BenchmarkPool_ExecuteParallel(b *testing.B) {
	p := NewPool("bench", config.BulkheadConfig{MaxConcurrent: 100, MaxQueue: 50, BaseTimeout: 100 * time.Millisecond})
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = p.Execute(ctx, types.PriorityNormal, op)
		}
	})
}

func BenchmarkPolicy_Execute(b *testing.B) {
	p := NewPolicy("bench", config.ProtectionConfig{
		CircuitBreaker:        config.CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, RecoveryTimeout: 30 * time.Second},
		Retry:                 config.RetryConfig{Enabled: true, MaxAttempts: 3},
		CircuitBreakerEnabled: true,
	}, nil)
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = p.Execute(ctx, op)
	}
}
