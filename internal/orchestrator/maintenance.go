package orchestrator

import (
	"context"
	"time"

	"github.com/LavishGent/holdfast/internal/events"
	"github.com/LavishGent/holdfast/internal/metrics"
	"github.com/LavishGent/holdfast/internal/resilience"
	"github.com/LavishGent/holdfast/internal/schedule"
	"github.com/LavishGent/holdfast/internal/types"
)

const (
	severityWarning  = "warning"
	severityCritical = "critical"
)

// Start launches the maintenance loops. They run until Stop or Close, even
// if ctx is cancelled first. It is a no-op when maintenance is disabled or
// the loops already run.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.closed.Load() {
		return types.ErrClosed
	}
	if !o.cfg.Maintenance.Enabled {
		o.logger.Debug("Maintenance disabled, not starting loops")
		return nil
	}
	o.runner.Start(ctx)
	return nil
}

// Stop halts the loops and waits for them and for in-flight event
// publishes, bounded by ctx.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if err := o.runner.Stop(ctx); err != nil {
		return err
	}
	return o.waitInflight(ctx)
}

func (o *Orchestrator) loops() []schedule.Periodic {
	m := o.cfg.Maintenance
	return []schedule.Periodic{
		{Name: "circuit-sweep", Interval: m.CircuitSweepInterval, Fn: o.sweepCircuits},
		{Name: "metrics-snapshot", Interval: m.MetricsSnapshotInterval, Fn: o.snapshotMetrics},
		{Name: "pool-health", Interval: m.PoolHealthInterval, Fn: o.checkPools},
	}
}

// sweepCircuits moves OPEN breakers past their recovery timeout to
// HALF_OPEN. The transitions publish through the state-change callbacks.
func (o *Orchestrator) sweepCircuits(context.Context) {
	moved := o.breakers.SweepHalfOpen()
	for _, cb := range o.cache.LevelBreakers() {
		if cb.TryHalfOpen() {
			moved = append(moved, cb.Name())
		}
	}
	if len(moved) > 0 {
		o.logger.Debug("Circuit sweep moved breakers to half-open", "breakers", moved)
	}
}

// snapshotMetrics emits the health report as gauges and publishes it.
func (o *Orchestrator) snapshotMetrics(context.Context) {
	report := o.GetHealth()

	o.sink.Gauge("health.status", float64(report.Status))
	o.sink.Gauge("circuits.open", float64(report.OpenCircuits))
	o.sink.Gauge("pools.stressed", float64(report.StressedPools))

	for _, c := range report.Circuits {
		o.sink.Gauge("circuit.state", float64(c.State), metrics.OperationTag(c.Name))
		o.sink.Gauge("circuit.failures", float64(c.FailureCount), metrics.OperationTag(c.Name))
	}
	for _, p := range report.Pools {
		tag := metrics.PoolTag(p.Name)
		o.sink.Gauge("pool.utilization", p.Utilization, tag)
		o.sink.Gauge("pool.queue_utilization", p.QueueUtilization, tag)
		o.sink.Gauge("pool.active", float64(p.Current), tag)
		o.sink.Gauge("pool.queued", float64(p.Queued), tag)
	}
	for _, op := range report.Operations {
		tag := metrics.OperationTag(op.Name)
		o.sink.Gauge("operation.success_rate", op.SuccessRate, tag)
		o.sink.Gauge("operation.latency.avg_ms", ms(op.AvgLatency), tag)
		o.sink.Gauge("operation.latency.p95_ms", ms(op.P95Latency), tag)
		o.sink.Gauge("operation.latency.p99_ms", ms(op.P99Latency), tag)
	}

	stats := o.cache.Stats()
	o.sink.Gauge("cache.hit_ratio", stats.HitRatio)
	o.sink.Gauge("cache.l1.entries", float64(stats.L1Entries))
	for _, l := range stats.Levels {
		o.sink.Gauge("cache.level.hit_ratio", l.HitRatio, metrics.LevelTag(l.Name))
		o.sink.Gauge("cache.level.errors", float64(l.Errors), metrics.LevelTag(l.Name))
	}

	o.publishAsync(types.TopicHealthSnapshot, events.New(o.source(), events.TypeHealthSnapshot,
		map[string]string{"status": report.Status.String()},
		map[string]any{
			"openCircuits":  report.OpenCircuits,
			"stressedPools": report.StressedPools,
			"circuits":      len(report.Circuits),
			"pools":         len(report.Pools),
			"operations":    len(report.Operations),
			"cacheHitRatio": stats.HitRatio,
		}))
}

// checkPools raises warning and critical alerts for busy pools.
func (o *Orchestrator) checkPools(context.Context) {
	h := o.cfg.Health
	for _, p := range o.pools.Snapshots() {
		severity := ""
		switch {
		case p.Utilization >= h.PoolCriticalThreshold || p.QueueUtilization >= h.QueueCriticalThreshold:
			severity = severityCritical
		case p.Utilization >= h.PoolWarningThreshold:
			severity = severityWarning
		default:
			continue
		}

		args := []any{
			"pool", p.Name,
			"utilization", p.Utilization,
			"queueUtilization", p.QueueUtilization,
			"active", p.Current,
			"queued", p.Queued,
		}
		if severity == severityCritical {
			o.logger.Error("Pool critically loaded", args...)
		} else {
			o.logger.Warn("Pool under pressure", args...)
		}

		o.sink.Count("pool.alerts", 1, metrics.PoolTag(p.Name), metrics.SeverityTag(severity))
		o.publishAsync(types.TopicPoolHealth, events.New(o.source(), events.TypePoolAlert,
			map[string]string{"pool": p.Name, "severity": severity},
			map[string]any{
				"utilization":      p.Utilization,
				"queueUtilization": p.QueueUtilization,
				"active":           p.Current,
				"queued":           p.Queued,
			}))
	}
}

func (o *Orchestrator) onCircuitChange(name string, from, to resilience.State) {
	o.circuitChanged(name, "operation", from, to)
}

func (o *Orchestrator) onLevelCircuitChange(name string, from, to resilience.State) {
	o.circuitChanged(name, "cache", from, to)
}

// circuitChanged runs on the caller's goroutine inside the breaker
// callback, so it only logs, counts and hands the event off.
func (o *Orchestrator) circuitChanged(name, kind string, from, to resilience.State) {
	args := []any{"name", name, "kind", kind, "from", from.String(), "to", to.String()}
	if to == resilience.StateOpen {
		o.logger.Warn("Circuit opened", args...)
	} else {
		o.logger.Info("Circuit state changed", args...)
	}

	o.sink.Count("circuit.transitions", 1,
		metrics.OperationTag(name), metrics.CircuitStateTag(to.String()), metrics.Tag("kind", kind))

	o.publishAsync(types.TopicCircuitStateChanged, events.New(o.source(), events.TypeCircuitStateChanged,
		map[string]string{"name": name, "kind": kind, "from": from.String(), "to": to.String()},
		nil))
}

// publishAsync publishes on a tracked goroutine. Errors are logged. After
// Close it drops the event.
func (o *Orchestrator) publishAsync(topic string, event types.Event) {
	if !o.inflight.add() {
		return
	}

	go func() {
		defer o.inflight.done()

		ctx := context.Background()
		if t := o.cfg.Events.PublishTimeout; t > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t)
			defer cancel()
		}

		if err := o.publisher.Publish(ctx, topic, event); err != nil {
			o.logger.Error("Failed to publish event", "topic", topic, "type", event.Type, "error", err)
			o.sink.Count("events.publish_errors", 1, metrics.Tag("topic", topic))
		}
	}()
}

func (o *Orchestrator) source() string {
	if s := o.cfg.Events.Source; s != "" {
		return s
	}
	return "holdfast"
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
