// Package ratelimit implements the per-client token-bucket rate limiter used
// by the basic authorizer. Buckets are process-local: a replica that loses a
// bucket only resets that client's burst budget.
package ratelimit

import (
	"sync"
	"time"
)

var timeNow = time.Now

// TokenBucket refills lazily: tokens accrue only when the bucket is checked,
// based on the time elapsed since the last refill.
type TokenBucket struct {
	mu             sync.Mutex
	size           int
	refillAmount   int
	refillInterval int // milliseconds
	tokens         int
	lastRefill     time.Time
}

// NewTokenBucket creates a bucket holding tokens out of size capacity, which
// gains refillAmount tokens every refillInterval milliseconds.
func NewTokenBucket(size, refillAmount, refillInterval, tokens int) *TokenBucket {
	return &TokenBucket{
		size:           size,
		refillAmount:   refillAmount,
		refillInterval: refillInterval,
		tokens:         tokens,
		lastRefill:     timeNow(),
	}
}

// Take consumes n tokens if available, refilling first. Returns false and
// leaves the count untouched when the bucket holds fewer than n tokens.
func (b *TokenBucket) Take(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// CanConsume reports whether n tokens are available without consuming them.
// The refill it performs is persisted, so back-to-back checks do not double
// count elapsed time.
func (b *TokenBucket) CanConsume(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens >= n
}

// Tokens returns the current token count after a refill.
func (b *TokenBucket) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens
}

// refill credits floor(elapsed/interval)*amount tokens, capped at size.
// Callers must hold b.mu.
func (b *TokenBucket) refill() {
	now := timeNow()
	elapsed := now.Sub(b.lastRefill).Milliseconds()

	added := int(elapsed/int64(b.refillInterval)) * b.refillAmount
	b.tokens += added
	if b.tokens > b.size {
		b.tokens = b.size
	}
	b.lastRefill = now
}
