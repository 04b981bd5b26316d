package holdfast_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/LavishGent/holdfast/pkg/holdfast"
)

type BenchUser struct {
	ID    string
	Name  string
	Email string
	Age   int
}

func newBenchOrchestrator(b *testing.B) *holdfast.Orchestrator {
	b.Helper()
	o, err := holdfast.NewFromConfig(context.Background(), holdfast.TestConfig(), holdfast.WithSlogLogger(discardLogger()))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = o.Close() })
	return o
}

func BenchmarkExecuteProtected(b *testing.B) {
	o := newBenchOrchestrator(b)
	ctx := context.Background()
	op := func(context.Context) (int, error) { return 1, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = holdfast.ExecuteProtected(ctx, o, "bench", op)
	}
}

func BenchmarkExecuteProtected_WithPool(b *testing.B) {
	o := newBenchOrchestrator(b)
	ctx := context.Background()
	op := func(context.Context) (int, error) { return 1, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = holdfast.ExecuteProtected(ctx, o, "bench", op, holdfast.WithPool("bench"))
	}
}

func BenchmarkExecuteProtected_Parallel(b *testing.B) {
	o := newBenchOrchestrator(b)
	ctx := context.Background()
	op := func(context.Context) (int, error) { return 1, nil }

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = holdfast.ExecuteProtected(ctx, o, fmt.Sprintf("op-%d", i%16), op)
			i++
		}
	})
}

func BenchmarkCacheSet(b *testing.B) {
	o := newBenchOrchestrator(b)
	ctx := context.Background()
	user := BenchUser{ID: "123", Name: "Alice", Email: "alice@example.com", Age: 30}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = o.CacheSet(ctx, fmt.Sprintf("user:%d", i), user)
	}
}

func BenchmarkCacheGet(b *testing.B) {
	o := newBenchOrchestrator(b)
	ctx := context.Background()
	user := BenchUser{ID: "123", Name: "Alice", Email: "alice@example.com", Age: 30}

	for i := 0; i < 1000; i++ {
		_ = o.CacheSet(ctx, fmt.Sprintf("user:%d", i), user)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var result BenchUser
		_, _ = o.CacheGet(ctx, fmt.Sprintf("user:%d", i%1000), &result)
	}
}

func BenchmarkCacheGetParallel(b *testing.B) {
	o := newBenchOrchestrator(b)
	ctx := context.Background()
	user := BenchUser{ID: "123", Name: "Alice", Email: "alice@example.com", Age: 30}

	for i := 0; i < 1000; i++ {
		_ = o.CacheSet(ctx, fmt.Sprintf("user:%d", i), user)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			var result BenchUser
			_, _ = o.CacheGet(ctx, fmt.Sprintf("user:%d", i%1000), &result)
			i++
		}
	})
}

func BenchmarkGetOrCreateParallel(b *testing.B) {
	o := newBenchOrchestrator(b)
	ctx := context.Background()
	factory := func(context.Context) (any, error) {
		return BenchUser{ID: "456", Name: "Bob", Email: "bob@example.com", Age: 25}, nil
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			var result BenchUser
			_ = o.GetOrCreate(ctx, fmt.Sprintf("user:%d", i%100), &result, factory)
			i++
		}
	})
}
