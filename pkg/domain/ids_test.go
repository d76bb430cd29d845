package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "checkpoint/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseDeviceID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

func TestParseMode(t *testing.T) {
	t.Run("accepts supported modes", func(t *testing.T) {
		for _, s := range []string{"geofence", "wifi", "beacon", "nfc", "qr", "face"} {
			m, err := ParseMode(s)
			require.NoError(t, err)
			assert.True(t, m.IsValid())
		}
	})

	t.Run("rejects empty and unknown modes", func(t *testing.T) {
		_, err := ParseMode("")
		require.Error(t, err)
		_, err = ParseMode("carrier-pigeon")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestDecision_Persistable(t *testing.T) {
	assert.True(t, DecisionAccepted.Persistable())
	assert.True(t, DecisionReview.Persistable())
	assert.False(t, DecisionRejected.Persistable())
}
