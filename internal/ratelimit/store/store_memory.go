package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryWindowStore implements WindowStore with mutex-guarded per-identity
// timestamp slices. Single-instance deployments and tests; distributed
// deployments use the Redis store.
type InMemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewInMemoryWindowStore creates an empty in-memory window store.
func NewInMemoryWindowStore() *InMemoryWindowStore {
	return &InMemoryWindowStore{windows: make(map[string][]time.Time)}
}

func (s *InMemoryWindowStore) Observe(ctx context.Context, identity string, now time.Time, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	timestamps := s.windows[identity]

	// Lazy eviction of entries that fell out of the window.
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i].After(cutoff) {
			break
		}
	}
	timestamps = append(timestamps[i:], now)
	s.windows[identity] = timestamps

	return len(timestamps), timestamps[0], nil
}
