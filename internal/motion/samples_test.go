package motion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySampleStore_Swap(t *testing.T) {
	store := NewInMemorySampleStore()
	ctx := context.Background()
	now := time.Now()

	first := Sample{Location: Location{Latitude: 59.43, Longitude: 24.74}, Timestamp: now}
	prev, err := store.Swap(ctx, "user-1", first)
	require.NoError(t, err)
	assert.Nil(t, prev)

	second := Sample{Location: Location{Latitude: 59.44, Longitude: 24.76}, Timestamp: now.Add(time.Minute)}
	prev, err = store.Swap(ctx, "user-1", second)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, first.Location, prev.Location)

	// Other identities are independent.
	prev, err = store.Swap(ctx, "user-2", first)
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestInMemorySampleStore_ConcurrentSwapsSameIdentity(t *testing.T) {
	store := NewInMemorySampleStore()
	ctx := context.Background()
	now := time.Now()

	const n = 100
	var wg sync.WaitGroup
	seen := make(chan *Sample, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := Sample{Timestamp: now.Add(time.Duration(i) * time.Second)}
			prev, err := store.Swap(ctx, "user-1", s)
			require.NoError(t, err)
			seen <- prev
		}(i)
	}
	wg.Wait()
	close(seen)

	// Exactly one swap observed the empty state; every sample is handed
	// back exactly once or retained as the final value.
	nils := 0
	for prev := range seen {
		if prev == nil {
			nils++
		}
	}
	assert.Equal(t, 1, nils)
}
