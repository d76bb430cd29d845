package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryWindowStore_Observe(t *testing.T) {
	s := NewInMemoryWindowStore()
	ctx := context.Background()
	now := time.Now()

	count, oldest, err := s.Observe(ctx, "id-1", now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, now, oldest)

	count, oldest, err = s.Observe(ctx, "id-1", now.Add(10*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, now, oldest)
}

func TestInMemoryWindowStore_EvictsExpiredEntries(t *testing.T) {
	s := NewInMemoryWindowStore()
	ctx := context.Background()
	now := time.Now()

	s.Observe(ctx, "id-1", now, time.Minute)
	s.Observe(ctx, "id-1", now.Add(2*time.Second), time.Minute)

	// 61s after the first entry, only the second entry is still in window.
	count, oldest, err := s.Observe(ctx, "id-1", now.Add(61*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, now.Add(2*time.Second), oldest)
}

func TestInMemoryWindowStore_ConcurrentObserve(t *testing.T) {
	s := NewInMemoryWindowStore()
	ctx := context.Background()
	now := time.Now()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.Observe(ctx, "id-1", now.Add(time.Duration(i)*time.Millisecond), time.Minute)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, _, err := s.Observe(ctx, "id-1", now.Add(time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, n+1, count)
}
