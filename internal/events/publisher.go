package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tokengate/backend/internal/store"
)

// Publisher fans rotation events out to interested subscribers.
type Publisher interface {
	SecretRotated(ctx context.Context, client *store.Client) error
}

// RedisPublisher publishes envelopes on the clients channel.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) SecretRotated(ctx context.Context, client *store.Client) error {
	event := NewSecretRotatedEvent(client)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.EventType, err)
	}

	if err := p.rdb.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", event.EventType, err)
	}
	return nil
}

// NopPublisher discards events. Used where no Redis is wired, e.g. tests
// that do not exercise eviction.
type NopPublisher struct{}

func (NopPublisher) SecretRotated(context.Context, *store.Client) error { return nil }
