package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "checkpoint/pkg/domain-errors"
)

type samplePayload struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
	Note   string  `json:"note"`
}

func TestNew_Configuration(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := New("", AlgorithmHMACSHA256)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("rejects unknown algorithm", func(t *testing.T) {
		_, err := New("secret", Algorithm("md5"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})
}

func TestSignVerify_RoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmHMACSHA256, AlgorithmHMACSHA512, AlgorithmBlake2b256} {
		t.Run(string(alg), func(t *testing.T) {
			svc, err := New("test-secret", alg)
			require.NoError(t, err)

			payload := samplePayload{UserID: "u-1", Score: 0.85, Note: "ok"}
			sig, err := svc.Sign(payload)
			require.NoError(t, err)
			require.NotEmpty(t, sig)

			assert.True(t, svc.Verify(payload, sig))
		})
	}
}

func TestVerify_RejectsMutatedPayload(t *testing.T) {
	svc, err := New("test-secret", AlgorithmHMACSHA256)
	require.NoError(t, err)

	payload := samplePayload{UserID: "u-1", Score: 0.85, Note: "ok"}
	sig, err := svc.Sign(payload)
	require.NoError(t, err)

	mutated := payload
	mutated.Score = 0.86
	assert.False(t, svc.Verify(mutated, sig))

	mutated = payload
	mutated.Note = "ok "
	assert.False(t, svc.Verify(mutated, sig))
}

func TestVerify_RejectsForeignSignature(t *testing.T) {
	svc1, err := New("secret-one", AlgorithmHMACSHA256)
	require.NoError(t, err)
	svc2, err := New("secret-two", AlgorithmHMACSHA256)
	require.NoError(t, err)

	payload := samplePayload{UserID: "u-1", Score: 1}
	sig, err := svc1.Sign(payload)
	require.NoError(t, err)

	assert.False(t, svc2.Verify(payload, sig))
	assert.False(t, svc1.Verify(payload, "not-base64!"))
	assert.False(t, svc1.Verify(payload, ""))
}

func TestSign_DeterministicAcrossFieldOrder(t *testing.T) {
	svc, err := New("test-secret", AlgorithmHMACSHA256)
	require.NoError(t, err)

	// Maps with identical content must sign identically regardless of
	// insertion order; canonical JSON sorts keys.
	a := map[string]any{"x": 1.0, "y": "z", "nested": map[string]any{"b": 2.0, "a": 1.0}}
	b := map[string]any{"nested": map[string]any{"a": 1.0, "b": 2.0}, "y": "z", "x": 1.0}

	sigA, err := svc.Sign(a)
	require.NoError(t, err)
	sigB, err := svc.Sign(b)
	require.NoError(t, err)
	assert.Equal(t, sigA, sigB)
}
