package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tokengate/backend/internal/cache"
)

// Subscriber listens on the clients channel and evicts rotated clients from
// the local cache. It runs as a single long-lived goroutine for the life of
// the process; malformed messages are logged and dropped, never fatal.
type Subscriber struct {
	rdb    *redis.Client
	cache  *cache.ClientCache
	logger *slog.Logger
}

func NewSubscriber(rdb *redis.Client, clientCache *cache.ClientCache, logger *slog.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, cache: clientCache, logger: logger}
}

// Run subscribes and processes messages until ctx is canceled. It returns
// the subscription error, or nil on clean shutdown.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	// Confirm the subscription before reporting ready.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	s.logger.Info("subscribed to rotation events", "channel", Channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(msg.Payload)
		}
	}
}

func (s *Subscriber) handle(payload string) {
	var event SecretRotatedEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		s.logger.Warn("dropping malformed event payload", "error", err)
		return
	}
	if err := event.Validate(); err != nil {
		s.logger.Warn("dropping invalid event", "error", err)
		return
	}

	s.cache.Evict(event.Data.ID)
	s.logger.Info("evicted client from cache after rotation",
		"client_id", event.Data.ID, "event_id", event.ID)
}
