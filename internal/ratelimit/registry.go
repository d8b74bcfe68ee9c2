package ratelimit

import "sync"

// Registry maps client ids to their token buckets. Buckets are materialized
// full on first sight and are never persisted; each server replica keeps its
// own view.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

func NewRegistry() *Registry {
	return &Registry{
		buckets: make(map[string]*TokenBucket),
	}
}

// Bucket returns the bucket for clientID, creating it with a full token
// count if the client has not been seen before. The configuration arguments
// are only used on creation.
func (r *Registry) Bucket(clientID string, size, refillAmount, refillInterval int) *TokenBucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[clientID]
	if !ok {
		b = NewTokenBucket(size, refillAmount, refillInterval, size)
		r.buckets[clientID] = b
	}
	return b
}

// Len returns the number of materialized buckets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
