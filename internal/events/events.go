// Package events carries the asynchronous client.secret.rotated channel.
// Delivery is advisory: the version bump commits before the event is
// published, and a missed event only delays cache eviction until the entry
// is next refreshed from the store.
package events

import (
	"fmt"
	"time"

	"github.com/tokengate/backend/internal/store"
	"github.com/tokengate/backend/internal/uid"
)

// Channel is the Redis pub/sub channel all client events flow over.
const Channel = "clients"

// TypeSecretRotated identifies a secret rotation envelope.
const TypeSecretRotated = "client.secret.rotated"

// ClientData is the rotated client without any secret material. Timestamps
// are Unix seconds with fractional precision, matching the wire format.
type ClientData struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	Version                 int     `json:"version"`
	WorkspaceID             string  `json:"workspace_id"`
	ForWorkspaceID          *string `json:"for_workspace_id"`
	ApiID                   string  `json:"api_id"`
	RateLimitBucketSize     *int    `json:"rate_limit_bucket_size"`
	RateLimitRefillAmount   *int    `json:"rate_limit_refill_amount"`
	RateLimitRefillInterval *int    `json:"rate_limit_refill_interval"`
	CreatedAt               float64 `json:"created_at"`
}

// SecretRotatedEvent is the JSON envelope published on Channel.
type SecretRotatedEvent struct {
	EventType string     `json:"event_type"`
	ID        string     `json:"id"`
	Timestamp float64    `json:"timestamp"`
	Data      ClientData `json:"data"`
}

// NewSecretRotatedEvent builds an envelope for the given client.
func NewSecretRotatedEvent(client *store.Client) SecretRotatedEvent {
	return SecretRotatedEvent{
		EventType: TypeSecretRotated,
		ID:        uid.New("evt"),
		Timestamp: unixFloat(time.Now()),
		Data: ClientData{
			ID:                      client.ID,
			Name:                    client.Name,
			Version:                 client.Version,
			WorkspaceID:             client.WorkspaceID,
			ForWorkspaceID:          client.ForWorkspaceID,
			ApiID:                   client.ApiID,
			RateLimitBucketSize:     client.RateLimitBucketSize,
			RateLimitRefillAmount:   client.RateLimitRefillAmount,
			RateLimitRefillInterval: client.RateLimitRefillInterval,
			CreatedAt:               unixFloat(client.CreatedAt),
		},
	}
}

// Validate checks the envelope fields a subscriber depends on.
func (e *SecretRotatedEvent) Validate() error {
	if e.EventType != TypeSecretRotated {
		return fmt.Errorf("events: unexpected event type %q", e.EventType)
	}
	if e.Data.ID == "" {
		return fmt.Errorf("events: event %s has no client id", e.ID)
	}
	return nil
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
