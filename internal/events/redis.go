package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

// RedisPublisher publishes events as JSON on the channel
// ChannelPrefix+topic.
type RedisPublisher struct {
	client    *redis.Client
	prefix    string
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewRedisPublisher connects to cfg.Address. Unlike the cache level, an
// unreachable server is a construction error: the caller asked for this
// backend explicitly.
func NewRedisPublisher(ctx context.Context, cfg config.RedisEventsConfig, logger *slog.Logger) (*RedisPublisher, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis events address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password.Value(),
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis events ping %s: %w", cfg.Address, err)
	}

	logger.Info("Redis event publisher connected", "address", cfg.Address, "channelPrefix", cfg.ChannelPrefix)

	return &RedisPublisher{
		client: client,
		prefix: cfg.ChannelPrefix,
		logger: logger.With("component", "events-redis"),
	}, nil
}

// Channel returns the pub/sub channel for topic.
func (p *RedisPublisher) Channel(topic string) string {
	return p.prefix + topic
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, event types.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrSerializationFailed, err)
	}
	receivers, err := p.client.Publish(ctx, p.Channel(topic), payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", p.Channel(topic), err)
	}
	p.logger.Debug("Event published", "channel", p.Channel(topic), "id", event.ID, "receivers", receivers)
	return nil
}

func (p *RedisPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.client.Close()
	})
	return err
}

var _ types.EventPublisher = (*RedisPublisher)(nil)
