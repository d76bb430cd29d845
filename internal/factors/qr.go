package factors

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
)

// qrClaims is the payload of a rotating check-in QR token. Displays in the
// office render a fresh token every rotation interval; exp bounds how long a
// screenshot stays usable.
type qrClaims struct {
	OfficeID string `json:"office_id"`
	jwt.RegisteredClaims
}

// QRChecker verifies a scanned rotating QR token: HMAC signature, expiry,
// and the office claim against the attempt's office.
type QRChecker struct {
	secret []byte
	issuer string
}

// NewQRChecker constructs a QR checker. The secret is shared with the token
// issuer that drives the office displays.
func NewQRChecker(secret []byte, issuer string) (*QRChecker, error) {
	if len(secret) == 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "qr token secret is required")
	}
	return &QRChecker{secret: secret, issuer: issuer}, nil
}

func (c *QRChecker) Mode() id.Mode { return id.ModeQR }

func (c *QRChecker) Check(ctx context.Context, ec *policy.EvaluationContext, evidence any, pol *policy.Policy) (policy.FactorFinding, error) {
	scan, ok := evidence.(*policy.QREvidence)
	if !ok {
		return policy.FactorFinding{}, dErrors.New(dErrors.CodeInternal, "qr checker received unexpected evidence payload")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &qrClaims{}
	token, err := jwt.ParseWithClaims(scan.Token, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		// Expired, tampered, or foreign tokens fail the factor; they are
		// user input, not system faults.
		return policy.FactorFinding{Detail: "qr token invalid: " + err.Error()}, nil
	}
	if !token.Valid {
		return policy.FactorFinding{Detail: "qr token invalid"}, nil
	}

	if ec.OfficeID != nil && claims.OfficeID != ec.OfficeID.String() {
		return policy.FactorFinding{Detail: "qr token issued for a different office"}, nil
	}

	return policy.FactorFinding{Passed: true, Confidence: 1, Detail: "qr token verified"}, nil
}

// IssueQRToken mints a rotating token for an office display. Lives next to
// the checker so the claim shape has a single owner.
func IssueQRToken(secret []byte, issuer string, officeID id.OfficeID, ttl time.Duration, now time.Time) (string, error) {
	claims := &qrClaims{
		OfficeID: officeID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign qr token: %w", err)
	}
	return signed, nil
}
