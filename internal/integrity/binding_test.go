package integrity

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
)

func TestInMemoryBindingStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryBindingStore()
	key := []byte("device-key")

	status, err := store.Validate(ctx, testUser, testDevice, key)
	require.NoError(t, err)
	assert.Equal(t, BindingUnbound, status)

	require.NoError(t, store.Bind(ctx, &BindingRecord{
		UserID: testUser, DeviceID: testDevice, DevicePublicKey: key,
	}))

	status, err = store.Validate(ctx, testUser, testDevice, key)
	require.NoError(t, err)
	assert.Equal(t, BindingValid, status)

	status, err = store.Validate(ctx, testUser, testDevice, []byte("other-key"))
	require.NoError(t, err)
	assert.Equal(t, BindingMismatch, status)

	status, err = store.Validate(ctx, testUser, testDevice, nil)
	require.NoError(t, err)
	assert.Equal(t, BindingMissingPublicKey, status)
}

func TestInMemoryBindingStore_SecondBindConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryBindingStore()

	require.NoError(t, store.Bind(ctx, &BindingRecord{
		UserID: testUser, DeviceID: testDevice, DevicePublicKey: []byte("k1"),
	}))
	err := store.Bind(ctx, &BindingRecord{
		UserID: testUser, DeviceID: testDevice, DevicePublicKey: []byte("k2"),
	})
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	rec, err := store.Get(ctx, testUser, testDevice)
	require.NoError(t, err)
	assert.Equal(t, []byte("k1"), rec.DevicePublicKey)
}

func TestInMemoryBindingStore_ConcurrentBindsSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryBindingStore()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := store.Bind(ctx, &BindingRecord{
				UserID:          testUser,
				DeviceID:        testDevice,
				DevicePublicKey: []byte{byte(n)},
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestInMemoryBindingStore_PairsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryBindingStore()
	otherDevice := id.DeviceID(uuid.MustParse("99999999-9999-9999-9999-999999999999"))

	require.NoError(t, store.Bind(ctx, &BindingRecord{
		UserID: testUser, DeviceID: testDevice, DevicePublicKey: []byte("k1"),
	}))

	status, err := store.Validate(ctx, testUser, otherDevice, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, BindingUnbound, status)
}
