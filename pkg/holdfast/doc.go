// Package holdfast provides a resilience orchestrator: circuit breakers,
// bulkhead pools and per-call timeouts around calls to unreliable
// dependencies, plus a multi-level cache in front of them.
//
// # Quick Start
//
//	o, err := holdfast.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer o.Close()
//
//	user, err := holdfast.ExecuteProtected(ctx, o, "users.get", func(ctx context.Context) (User, error) {
//	    return client.GetUser(ctx, id)
//	}, holdfast.WithPool("users-api"))
//
// # Errors
//
// Every failure is one of a few typed errors, all usable with errors.As:
//
//   - *BulkheadRejectedError or *BulkheadTimeoutError: the pool was full;
//     the operation did not run and the breaker was not touched.
//   - *CircuitOpenError: the breaker is open; NextAttempt says when a probe
//     will be admitted.
//   - *OperationTimeoutError: the operation outlived the breaker's timeout.
//   - *OperationFailedError: the operation returned an error, available as
//     Cause and through errors.Is.
//
// A caller whose own ctx ends first gets ctx.Err() back, and the attempt is
// not counted either way.
//
// # Circuit Breakers
//
// Each operation name gets its own breaker, configured from Operations[name]
// or the CircuitBreaker defaults. Failures open it; after RecoveryTimeout it
// goes half-open and SuccessThreshold successes close it again:
//
//	cfg := holdfast.Config()
//	cfg.Operations = map[string]holdfast.CircuitBreakerConfig{
//	    "payments.charge": {FailureThreshold: 3, SuccessThreshold: 2, RecoveryTimeout: 10 * time.Second, Timeout: 2 * time.Second},
//	}
//	o, err := holdfast.NewFromConfig(ctx, cfg)
//
// # Bulkheads
//
// Pools bound concurrency per dependency. Callers beyond MaxConcurrent queue
// for up to BaseTimeout × (4 − rank), so critical callers wait four times as
// long as low-priority ones:
//
//	holdfast.ExecuteProtected(ctx, o, "report", build,
//	    holdfast.WithPool("reports"), holdfast.WithPriority(holdfast.PriorityCritical))
//
// # Caching
//
// The cache probes an in-process LRU first, then the sharded, Redis and S3
// levels that are enabled, promoting hits into faster levels:
//
//	var u User
//	err := o.GetOrCreate(ctx, "user:42", &u, func(ctx context.Context) (any, error) {
//	    return client.GetUser(ctx, 42)
//	}, holdfast.WithTTL(10*time.Minute))
//
// # Observability
//
// Start launches the maintenance loops: half-open sweeps, metric snapshots
// and pool alerts. Metrics go to DataDog and/or Prometheus; circuit, health
// and pool events go to the log, Redis pub/sub, Kafka or DataDog events.
//
//	if err := o.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	report := o.GetHealth()
//
// # Configuration
//
// Load a JSON or YAML file, with HOLDFAST_* environment overrides:
//
//	o, err := holdfast.NewFromFile(ctx, "holdfast.yaml")
//
// For tests, TestConfig disables background loops and exporters.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package holdfast
