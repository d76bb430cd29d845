package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
)

func sampleVerdict(userID id.UserID) *IntegrityVerdict {
	return &IntegrityVerdict{
		SchemaVersion: VerdictSchemaVersion,
		ID:            id.NewAttendanceID(),
		UserID:        userID,
		DeviceID:      testDevice,
		Kind:          id.CheckKindIn,
		Timestamp:     time.Now(),
		Decision:      id.DecisionAccepted,
		OverallScore:  1.0,
		Signature:     "sig",
		CreatedAt:     time.Now(),
	}
}

func TestInMemoryStore_SaveAndGet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	v := sampleVerdict(testUser)
	require.NoError(t, store.Save(ctx, v))

	got, err := store.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, v.Signature, got.Signature)

	// The store hands back copies, not aliases.
	got.Signature = "tampered"
	again, err := store.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "sig", again.Signature)
}

func TestInMemoryStore_GetUnknown(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get(context.Background(), id.NewAttendanceID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_LatestTracksMostRecent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	first := sampleVerdict(testUser)
	second := sampleVerdict(testUser)
	second.Kind = id.CheckKindOut

	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	latest, err := store.Latest(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, id.CheckKindOut, latest.Kind)

	_, err = store.Latest(ctx, id.UserID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
