package orchestrator

import (
	"time"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/events"
	"github.com/LavishGent/holdfast/internal/types"
)

// GetHealth reports every operation breaker, pool and operation. It only
// reads snapshots, so it never blocks callers.
func (o *Orchestrator) GetHealth() types.HealthReport {
	report := types.HealthReport{
		Timestamp:  time.Now().UTC(),
		Circuits:   o.breakers.Snapshots(),
		Pools:      o.pools.Snapshots(),
		Operations: o.tracker.Snapshots(),
	}

	for _, c := range report.Circuits {
		if c.State == types.CircuitOpen {
			report.OpenCircuits++
		}
	}
	for _, p := range report.Pools {
		if stressed(p, o.cfg.Health) {
			report.StressedPools++
		}
	}
	report.Status = healthStatus(report.OpenCircuits, report.StressedPools, o.cfg.Health)
	return report
}

func stressed(p types.PoolSnapshot, h config.HealthConfig) bool {
	return p.Utilization >= h.PoolUtilizationThreshold || p.QueueUtilization >= h.QueueUtilizationThreshold
}

func healthStatus(open, stressedPools int, h config.HealthConfig) types.HealthStatus {
	switch {
	case open >= h.UnhealthyOpenCircuits || stressedPools >= h.UnhealthyStressedPools:
		return types.HealthStatusUnhealthy
	case open > 0 || stressedPools > 0:
		return types.HealthStatusDegraded
	default:
		return types.HealthStatusHealthy
	}
}

// OperationMetrics returns the rolling metrics for one operation name.
func (o *Orchestrator) OperationMetrics(name string) (types.OperationSnapshot, bool) {
	return o.tracker.Snapshot(name)
}

// CircuitState returns the state of an operation's breaker. Unknown names
// report closed.
func (o *Orchestrator) CircuitState(name string) types.CircuitState {
	cb, ok := o.breakers.Lookup(name)
	if !ok {
		return types.CircuitClosed
	}
	return cb.State()
}

// ResetCircuitBreaker closes the named breaker and reports whether it
// existed.
func (o *Orchestrator) ResetCircuitBreaker(name string) bool {
	if !o.breakers.Reset(name) {
		return false
	}
	o.logger.Info("Circuit breaker reset", "operation", name)
	o.publishAsync(types.TopicCircuitStateChanged, events.New(o.source(), events.TypeCircuitReset,
		map[string]string{"name": name}, nil))
	return true
}

// ResetAllCircuitBreakers closes every operation breaker.
func (o *Orchestrator) ResetAllCircuitBreakers() {
	o.breakers.ResetAll()
	o.logger.Info("All circuit breakers reset", "count", o.breakers.Len())
	o.publishAsync(types.TopicCircuitStateChanged, events.New(o.source(), events.TypeCircuitReset,
		map[string]string{"name": "*"}, map[string]any{"count": o.breakers.Len()}))
}
