// Package events builds holdfast events and delivers them to a configured
// backend.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/metrics/datadog"
	"github.com/LavishGent/holdfast/internal/types"
)

// Event type names carried in types.Event.Type.
const (
	TypeCircuitStateChanged = "circuit_state_changed"
	TypeCircuitReset        = "circuit_reset"
	TypeHealthSnapshot      = "health_snapshot"
	TypePoolAlert           = "pool_alert"
)

// New stamps an event with a fresh ID and the current time.
func New(source, eventType string, labels map[string]string, data map[string]any) types.Event {
	return types.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Labels:    labels,
		Data:      data,
	}
}

// NewPublisher returns the publisher selected by cfg.Backend. Disabled
// events, and the "none" backend, get a NoOpPublisher.
func NewPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (types.EventPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ev := cfg.Events
	if !ev.Enabled {
		return NewNoOpPublisher(), nil
	}

	switch ev.Backend {
	case "", "log":
		return NewLoggingPublisher(logger), nil
	case "none":
		return NewNoOpPublisher(), nil
	case "redis":
		return NewRedisPublisher(ctx, ev.Redis, logger)
	case "kafka":
		return NewKafkaPublisher(ev.Kafka, logger)
	case "datadog":
		return datadog.NewEventPublisher(cfg.Metrics.DataDog, logger)
	default:
		return nil, fmt.Errorf("unknown events backend %q", ev.Backend)
	}
}
