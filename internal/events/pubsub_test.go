package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/backend/internal/cache"
	"github.com/tokengate/backend/internal/store"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func testClient() *store.Client {
	forWorkspace := "ws_parent"
	return &store.Client{
		ID:             "cli_rotated",
		Name:           "rotated client",
		Version:        2,
		WorkspaceID:    "ws_home",
		ForWorkspaceID: &forWorkspace,
		ApiID:          "api_home",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestEnvelopeShape(t *testing.T) {
	event := NewSecretRotatedEvent(testClient())

	assert.Equal(t, TypeSecretRotated, event.EventType)
	assert.Regexp(t, `^evt_[0-9a-z]{26}$`, event.ID)
	assert.Greater(t, event.Timestamp, 0.0)
	assert.Equal(t, "cli_rotated", event.Data.ID)
	assert.Equal(t, 2, event.Data.Version)
	require.NoError(t, event.Validate())

	// No secret material on the wire: the hash column stays out of the
	// envelope, and no data field smuggles a secret in under another name.
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret_hash")

	var wire struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &wire))
	for key := range wire.Data {
		assert.NotContains(t, key, "secret")
	}
}

func TestPublishEvictsThroughSubscriber(t *testing.T) {
	rdb := testRedis(t)
	clientCache := cache.NewClientCache()
	client := testClient()
	clientCache.Set(client)

	sub := NewSubscriber(rdb, clientCache, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	// Give the subscription a moment to establish, then publish. The
	// condition runs off the test goroutine, so failures surface as a
	// timeout rather than a FailNow.
	pub := NewRedisPublisher(rdb)
	require.Eventually(t, func() bool {
		if err := pub.SecretRotated(ctx, client); err != nil {
			return false
		}
		_, cached := clientCache.Get(client.ID)
		return !cached
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSubscriberDropsMalformedPayloads(t *testing.T) {
	rdb := testRedis(t)
	clientCache := cache.NewClientCache()
	client := testClient()
	clientCache.Set(client)

	sub := NewSubscriber(rdb, clientCache, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	// Garbage and wrong-type envelopes must be dropped without killing the
	// subscriber.
	require.NoError(t, rdb.Publish(ctx, Channel, "not json").Err())
	require.NoError(t, rdb.Publish(ctx, Channel, `{"event_type":"other","data":{}}`).Err())

	time.Sleep(100 * time.Millisecond)
	_, cached := clientCache.Get(client.ID)
	require.True(t, cached)

	// A valid event afterwards still lands.
	pub := NewRedisPublisher(rdb)
	require.Eventually(t, func() bool {
		if err := pub.SecretRotated(ctx, client); err != nil {
			return false
		}
		_, stillCached := clientCache.Get(client.ID)
		return !stillCached
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestValidate(t *testing.T) {
	event := NewSecretRotatedEvent(testClient())
	require.NoError(t, event.Validate())

	bad := event
	bad.EventType = "client.created"
	assert.Error(t, bad.Validate())

	bad = event
	bad.Data.ID = ""
	assert.Error(t, bad.Validate())
}
