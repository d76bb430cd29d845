package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"checkpoint/internal/ratelimit/store"
)

func TestAllow_WindowExhaustion(t *testing.T) {
	limiter := New(store.NewInMemoryWindowStore(), 3, time.Minute)
	ctx := context.Background()
	now := time.Now()

	// First `limit` attempts are admitted.
	for i := 0; i < 3; i++ {
		res := limiter.Allow(ctx, "user-1", now.Add(time.Duration(i)*time.Second))
		assert.True(t, res.Allowed, "attempt %d should be allowed", i+1)
		assert.Equal(t, 3-(i+1), res.Remaining)
	}

	// limit+1 is rejected with remaining=0.
	res := limiter.Allow(ctx, "user-1", now.Add(3*time.Second))
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, 3, res.Limit)

	// Other identities are unaffected.
	res = limiter.Allow(ctx, "user-2", now.Add(3*time.Second))
	assert.True(t, res.Allowed)
}

func TestAllow_AdmissionResumesAfterWindow(t *testing.T) {
	limiter := New(store.NewInMemoryWindowStore(), 2, time.Minute)
	ctx := context.Background()
	now := time.Now()

	limiter.Allow(ctx, "user-1", now)
	limiter.Allow(ctx, "user-1", now.Add(time.Second))
	res := limiter.Allow(ctx, "user-1", now.Add(2*time.Second))
	assert.False(t, res.Allowed)

	// Everything recorded so far ages out after the window.
	res = limiter.Allow(ctx, "user-1", now.Add(time.Minute+3*time.Second))
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestAllow_RejectedAttemptsKeepCounting(t *testing.T) {
	limiter := New(store.NewInMemoryWindowStore(), 1, time.Minute)
	ctx := context.Background()
	now := time.Now()

	limiter.Allow(ctx, "user-1", now)

	// A retry storm of rejected attempts keeps refreshing the window: the
	// newest rejected attempt is still recorded, so admission does not
	// resume one window after the first attempt if retries kept coming.
	for i := 1; i <= 30; i++ {
		res := limiter.Allow(ctx, "user-1", now.Add(time.Duration(i)*time.Second))
		assert.False(t, res.Allowed)
	}

	res := limiter.Allow(ctx, "user-1", now.Add(time.Minute+15*time.Second))
	assert.False(t, res.Allowed, "storm entries inside the window still count")
}

type failingWindowStore struct{}

func (failingWindowStore) Observe(ctx context.Context, identity string, now time.Time, window time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func TestAllow_FailsOpenOnStoreOutage(t *testing.T) {
	limiter := New(failingWindowStore{}, 1, time.Minute)

	res := limiter.Allow(context.Background(), "user-1", time.Now())

	assert.True(t, res.Allowed)
	assert.True(t, res.Degraded)
}
