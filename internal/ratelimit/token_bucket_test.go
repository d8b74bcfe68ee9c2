package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestTokenBucketInit(t *testing.T) {
	b := NewTokenBucket(100, 10, 1000, 100)

	assert.Equal(t, 100, b.size)
	assert.Equal(t, 10, b.refillAmount)
	assert.Equal(t, 1000, b.refillInterval)
	assert.Equal(t, 100, b.tokens)
}

func TestTokenBucketTake(t *testing.T) {
	now := time.Now()
	timeNow = fixedClock(&now)
	defer func() { timeNow = time.Now }()

	b := NewTokenBucket(100, 10, 1000, 100)

	assert.True(t, b.Take(10))
	assert.Equal(t, 90, b.tokens)

	assert.False(t, b.Take(100))
	assert.Equal(t, 90, b.tokens)
}

func TestTokenBucketRefill(t *testing.T) {
	now := time.Now()
	timeNow = fixedClock(&now)
	defer func() { timeNow = time.Now }()

	b := NewTokenBucket(100, 10, 1000, 100)

	require.True(t, b.Take(100))
	assert.Equal(t, 0, b.tokens)

	// One refill interval passes: 10 tokens come back.
	now = now.Add(1 * time.Second)
	assert.Equal(t, 10, b.Tokens())
}

func TestTokenBucketOverfill(t *testing.T) {
	now := time.Now()
	timeNow = fixedClock(&now)
	defer func() { timeNow = time.Now }()

	b := NewTokenBucket(100, 10, 1000, 100)

	// Ten intervals on a full bucket must cap at size.
	now = now.Add(10 * time.Second)
	assert.Equal(t, 100, b.Tokens())
}

func TestCanConsumePersistsRefill(t *testing.T) {
	now := time.Now()
	timeNow = fixedClock(&now)
	defer func() { timeNow = time.Now }()

	b := NewTokenBucket(100, 10, 1000, 0)

	assert.False(t, b.CanConsume(10))

	now = now.Add(1 * time.Second)
	assert.True(t, b.CanConsume(10))

	// The refill above was persisted; the check itself consumed nothing.
	assert.Equal(t, 10, b.tokens)
	assert.True(t, b.CanConsume(10))
}

func TestPartialIntervalDoesNotRefill(t *testing.T) {
	now := time.Now()
	timeNow = fixedClock(&now)
	defer func() { timeNow = time.Now }()

	b := NewTokenBucket(100, 10, 1000, 0)

	now = now.Add(999 * time.Millisecond)
	assert.Equal(t, 0, b.Tokens())
}

func TestTokenBucketConcurrentTake(t *testing.T) {
	b := NewTokenBucket(1000, 1, 1_000_000, 1000)

	var wg sync.WaitGroup
	granted := make(chan bool, 2000)
	for i := 0; i < 2000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted <- b.Take(1)
		}()
	}
	wg.Wait()
	close(granted)

	ok := 0
	for g := range granted {
		if g {
			ok++
		}
	}
	assert.Equal(t, 1000, ok)
	assert.GreaterOrEqual(t, b.tokens, 0)
}

func TestRegistryLazyMaterialization(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())

	b := r.Bucket("cli_a", 10, 2, 200)
	assert.Equal(t, 10, b.tokens)
	assert.Equal(t, 1, r.Len())

	// Same client returns the same bucket; config args are ignored.
	require.True(t, b.Take(3))
	again := r.Bucket("cli_a", 99, 99, 99)
	assert.Same(t, b, again)
	assert.Equal(t, 7, again.tokens)
}
