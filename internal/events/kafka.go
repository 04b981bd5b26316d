package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to the topic TopicPrefix+topic.
// Events about one named circuit or pool share a message key, so they land
// on one partition in order.
type KafkaPublisher struct {
	writer messageWriter
	prefix string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "events-kafka")

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		AllowAutoTopicCreation: true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error("kafka writer: " + fmt.Sprintf(msg, args...))
		}),
	}

	logger.Info("Kafka event publisher initialized", "brokers", cfg.Brokers, "topicPrefix", cfg.TopicPrefix)

	return newKafkaPublisher(w, cfg.TopicPrefix, logger), nil
}

func newKafkaPublisher(w messageWriter, prefix string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer: w,
		prefix: prefix,
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event types.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return types.ErrClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrSerializationFailed, err)
	}

	msg := kafka.Message{
		Topic: p.prefix + topic,
		Key:   []byte(messageKey(event)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.logger.Info("Kafka event publisher closing")
	return p.writer.Close()
}

func messageKey(event types.Event) string {
	if name := event.Labels["name"]; name != "" {
		return name
	}
	if pool := event.Labels["pool"]; pool != "" {
		return pool
	}
	return event.ID
}

var _ types.EventPublisher = (*KafkaPublisher)(nil)
