// Package datadog ships telemetry and events to a DogStatsD agent.
package datadog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/metrics"
	"github.com/LavishGent/holdfast/internal/types"
)

// client is the part of *statsd.Client the sink and publisher use.
type client interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	Event(e *statsd.Event) error
	Close() error
}

// NewClient dials the agent described by cfg. extra options are applied
// after the ones derived from cfg.
func NewClient(cfg config.DataDogConfig, extra ...statsd.Option) (*statsd.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.AgentHost, cfg.Port)

	opts := []statsd.Option{statsd.WithTags(cfg.Tags)}
	if cfg.Prefix != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Prefix+"."))
	}
	opts = append(opts, extra...)

	c, err := statsd.New(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}
	return c, nil
}

// Sink implements types.TelemetrySink on a statsd client. Send errors are
// logged at debug and dropped.
//
//nolint:govet // Small struct - minimal alignment benefit
type Sink struct {
	client client
	logger *slog.Logger
}

// NewSink creates a sink from config. When DataDog is disabled it returns a
// metrics.NoOpSink instead.
func NewSink(cfg config.DataDogConfig, logger *slog.Logger) (types.TelemetrySink, error) {
	if !cfg.Enabled {
		return metrics.NewNoOpSink(), nil
	}

	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("DataDog sink initialized",
		"agent", fmt.Sprintf("%s:%d", cfg.AgentHost, cfg.Port),
		"prefix", cfg.Prefix,
		"tags", cfg.Tags,
	)

	return newSink(c, logger), nil
}

func newSink(c client, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		client: c,
		logger: logger.With("component", "datadog"),
	}
}

func (s *Sink) Count(name string, value int64, tags ...string) {
	if err := s.client.Count(name, value, tags, 1); err != nil {
		s.logger.Debug("Failed to send count metric", "name", name, "error", err)
	}
}

func (s *Sink) Histogram(name string, value float64, tags ...string) {
	if err := s.client.Histogram(name, value, tags, 1); err != nil {
		s.logger.Debug("Failed to send histogram metric", "name", name, "error", err)
	}
}

func (s *Sink) Gauge(name string, value float64, tags ...string) {
	if err := s.client.Gauge(name, value, tags, 1); err != nil {
		s.logger.Debug("Failed to send gauge metric", "name", name, "error", err)
	}
}

// Close flushes and closes the client.
func (s *Sink) Close() error {
	return s.client.Close()
}

// EventPublisher sends holdfast events as DataDog events. The topic becomes
// the title and the event labels become tags.
//
//nolint:govet // Small struct - minimal alignment benefit
type EventPublisher struct {
	client client
	logger *slog.Logger
}

// NewEventPublisher dials its own client; it is independent of the sink.
func NewEventPublisher(cfg config.DataDogConfig, logger *slog.Logger) (*EventPublisher, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return newEventPublisher(c, logger), nil
}

func newEventPublisher(c client, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		client: c,
		logger: logger.With("component", "datadog-events"),
	}
}

// Publish sends one event. ctx is not consulted; the statsd client never
// blocks on the network.
func (p *EventPublisher) Publish(_ context.Context, topic string, event types.Event) error {
	e := &statsd.Event{
		Title:          topic,
		Text:           eventText(event),
		Timestamp:      event.Timestamp,
		AggregationKey: event.Labels["name"],
		SourceTypeName: event.Source,
		AlertType:      alertType(event),
		Tags:           labelTags(event),
	}
	if err := p.client.Event(e); err != nil {
		return fmt.Errorf("send datadog event %s: %w", topic, err)
	}
	return nil
}

func (p *EventPublisher) Close() error {
	return p.client.Close()
}

// alertType maps the "severity" label, and circuits opening, to DataDog
// alert types.
func alertType(event types.Event) statsd.EventAlertType {
	switch event.Labels["severity"] {
	case "critical":
		return statsd.Error
	case "warning":
		return statsd.Warning
	}
	if event.Labels["to"] == types.CircuitOpen.String() {
		return statsd.Error
	}
	return statsd.Info
}

func eventText(event types.Event) string {
	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(event.Type)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, event.Data[k])
	}
	return b.String()
}

func labelTags(event types.Event) []string {
	tags := make([]string, 0, len(event.Labels)+1)
	for k, v := range event.Labels {
		tags = append(tags, metrics.Tag(k, v))
	}
	sort.Strings(tags)
	return append(tags, metrics.Tag("event_id", event.ID))
}

var (
	_ types.TelemetrySink  = (*Sink)(nil)
	_ types.EventPublisher = (*EventPublisher)(nil)
)
