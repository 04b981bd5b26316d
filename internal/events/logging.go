package events

import (
	"context"
	"log/slog"

	"github.com/LavishGent/holdfast/internal/types"
)

// LoggingPublisher writes each event as one info log line.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger.With("component", "events")}
}

func (p *LoggingPublisher) Publish(ctx context.Context, topic string, event types.Event) error {
	p.logger.InfoContext(ctx, "event",
		"topic", topic,
		"id", event.ID,
		"type", event.Type,
		"source", event.Source,
		"labels", event.Labels,
		"data", event.Data,
	)
	return nil
}

func (p *LoggingPublisher) Close() error {
	return nil
}

// NoOpPublisher drops every event.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (NoOpPublisher) Publish(context.Context, string, types.Event) error { return nil }
func (NoOpPublisher) Close() error                                       { return nil }

var (
	_ types.EventPublisher = (*LoggingPublisher)(nil)
	_ types.EventPublisher = NoOpPublisher{}
)
