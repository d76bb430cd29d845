package motion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"checkpoint/pkg/platform/sentinel"
)

// SampleStore retains the single most-recent location sample per identity.
// Swap must be atomic per identity: concurrent check-ins from the same user
// must each observe a consistent previous sample.
type SampleStore interface {
	// Swap stores cur as the identity's latest sample and returns the
	// previous one, or nil if none was retained.
	Swap(ctx context.Context, identity string, cur Sample) (*Sample, error)
}

// InMemorySampleStore keeps last samples in a mutex-guarded map. Suitable
// for single-instance deployments and tests.
type InMemorySampleStore struct {
	mu      sync.Mutex
	samples map[string]Sample
}

// NewInMemorySampleStore creates an empty in-memory sample store.
func NewInMemorySampleStore() *InMemorySampleStore {
	return &InMemorySampleStore{samples: make(map[string]Sample)}
}

func (s *InMemorySampleStore) Swap(ctx context.Context, identity string, cur Sample) (*Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.samples[identity]
	s.samples[identity] = cur
	if !ok {
		return nil, nil
	}
	return &prev, nil
}

const sampleKeyPrefix = "motion:last:"

// RedisSampleStore shares last samples across instances. GETSET-style swap
// via a pipeline keeps the read-modify-write on one round trip; go-redis
// serializes commands per connection so same-key swaps stay ordered.
type RedisSampleStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisSampleStore constructs a Redis-backed sample store. Samples expire
// after the retention period so stale locations never veto a check-in.
func NewRedisSampleStore(client *redis.Client, retention time.Duration) *RedisSampleStore {
	return &RedisSampleStore{client: client, retention: retention}
}

func (s *RedisSampleStore) Swap(ctx context.Context, identity string, cur Sample) (*Sample, error) {
	payload, err := json.Marshal(cur)
	if err != nil {
		return nil, fmt.Errorf("marshal motion sample: %w", err)
	}

	key := sampleKeyPrefix + identity
	old, err := s.client.GetSet(ctx, key, payload).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: swap motion sample: %v", sentinel.ErrUnavailable, err)
	}
	// GETSET clears the TTL; re-arm it.
	if s.retention > 0 {
		_ = s.client.Expire(ctx, key, s.retention).Err()
	}

	if errors.Is(err, redis.Nil) || old == "" {
		return nil, nil
	}

	var prev Sample
	if err := json.Unmarshal([]byte(old), &prev); err != nil {
		// A corrupt stored sample cannot judge anything; treat as absent.
		return nil, nil
	}
	return &prev, nil
}
