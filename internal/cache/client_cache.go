// Package cache holds the process-local client cache consulted by the basic
// authorizer. An entry is authoritative only until the client's secret is
// rotated; the rotation subscriber evicts it, and the next lookup reloads
// from the store. Eviction is a liveness improvement, not a correctness
// requirement: a stale entry is caught by the token version check.
package cache

import (
	"sync"

	"github.com/tokengate/backend/internal/store"
)

type ClientCache struct {
	mu      sync.RWMutex
	clients map[string]*store.Client
}

func NewClientCache() *ClientCache {
	return &ClientCache{
		clients: make(map[string]*store.Client),
	}
}

func (c *ClientCache) Get(id string) (*store.Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	client, ok := c.clients[id]
	return client, ok
}

func (c *ClientCache) Set(client *store.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clients[client.ID] = client
}

func (c *ClientCache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.clients, id)
}

func (c *ClientCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.clients)
}
