package factors

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
)

var qrSecret = []byte("rotating-display-secret")

func TestNewQRChecker_RequiresSecret(t *testing.T) {
	_, err := NewQRChecker(nil, "checkpoint")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestQRChecker(t *testing.T) {
	checker, err := NewQRChecker(qrSecret, "checkpoint")
	require.NoError(t, err)
	ctx := context.Background()

	mint := func(office id.OfficeID, ttl time.Duration) string {
		token, err := IssueQRToken(qrSecret, "checkpoint", office, ttl, time.Now())
		require.NoError(t, err)
		return token
	}

	t.Run("fresh token for the right office passes", func(t *testing.T) {
		finding, err := checker.Check(ctx, evalContext(&testOffice),
			&policy.QREvidence{Token: mint(testOffice, time.Minute)}, emptyPolicy())
		require.NoError(t, err)
		assert.True(t, finding.Passed)
	})

	t.Run("expired token fails", func(t *testing.T) {
		token, err := IssueQRToken(qrSecret, "checkpoint", testOffice, time.Minute, time.Now().Add(-time.Hour))
		require.NoError(t, err)

		finding, err := checker.Check(ctx, evalContext(&testOffice),
			&policy.QREvidence{Token: token}, emptyPolicy())
		require.NoError(t, err)
		assert.False(t, finding.Passed)
		assert.Contains(t, finding.Detail, "invalid")
	})

	t.Run("token for another office fails", func(t *testing.T) {
		other := id.OfficeID(uuid.MustParse("99999999-9999-9999-9999-999999999999"))
		finding, err := checker.Check(ctx, evalContext(&testOffice),
			&policy.QREvidence{Token: mint(other, time.Minute)}, emptyPolicy())
		require.NoError(t, err)
		assert.False(t, finding.Passed)
		assert.Contains(t, finding.Detail, "different office")
	})

	t.Run("token signed with a foreign secret fails", func(t *testing.T) {
		token, err := IssueQRToken([]byte("not-our-secret"), "checkpoint", testOffice, time.Minute, time.Now())
		require.NoError(t, err)

		finding, err := checker.Check(ctx, evalContext(&testOffice),
			&policy.QREvidence{Token: token}, emptyPolicy())
		require.NoError(t, err)
		assert.False(t, finding.Passed)
	})

	t.Run("garbage token fails without error", func(t *testing.T) {
		finding, err := checker.Check(ctx, evalContext(&testOffice),
			&policy.QREvidence{Token: "not-a-jwt"}, emptyPolicy())
		require.NoError(t, err)
		assert.False(t, finding.Passed)
	})
}
