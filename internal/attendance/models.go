// Package attendance orchestrates the check-in integrity pipeline: rate
// limiting, device trust, motion plausibility, policy evaluation, scoring,
// signing, and persistence of the resulting verdict.
package attendance

import (
	"time"

	"checkpoint/internal/integrity"
	"checkpoint/internal/motion"
	"checkpoint/internal/policy"
	"checkpoint/internal/ratelimit"
	id "checkpoint/pkg/domain"
)

// VerdictSchemaVersion tags persisted verdicts so the blob can evolve
// without migrating history.
const VerdictSchemaVersion = 1

// Reason codes carried on rejected or downgraded verdicts.
const (
	ReasonRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ReasonDeviceUntrusted     = "DEVICE_UNTRUSTED"
	ReasonPolicyRejected      = "POLICY_REJECTED"
	ReasonImplausibleMovement = "IMPLAUSIBLE_MOVEMENT"
)

// CheckInRequest is one attendance attempt with all its evidence.
type CheckInRequest struct {
	UserID    id.UserID
	DeviceID  id.DeviceID
	OfficeID  *id.OfficeID
	Kind      id.CheckKind
	Timestamp time.Time

	Location *policy.LocationEvidence
	Wifi     *policy.WifiEvidence
	Beacon   *policy.BeaconEvidence
	NFC      *policy.NFCEvidence
	QR       *policy.QREvidence
	Face     *policy.FaceEvidence

	Attestation   integrity.Attestation
	ExpectedNonce string
	RawSignals    *integrity.RawSignals

	DeviceMetadata map[string]string
}

// IntegrityVerdict is the full, signed outcome of one check-in attempt.
// Once persisted it is never mutated.
type IntegrityVerdict struct {
	SchemaVersion int             `json:"schema_version"`
	ID            id.AttendanceID `json:"id"`
	UserID        id.UserID       `json:"user_id"`
	DeviceID      id.DeviceID     `json:"device_id"`
	OfficeID      *id.OfficeID    `json:"office_id,omitempty"`
	Kind          id.CheckKind    `json:"kind"`
	Timestamp     time.Time       `json:"timestamp"`

	Decision   id.Decision `json:"decision"`
	ReasonCode string      `json:"reason_code,omitempty"`
	Rationale  string      `json:"rationale,omitempty"`

	PolicyEvaluation *policy.Evaluation          `json:"policy_evaluation,omitempty"`
	Motion           *motion.Result              `json:"motion,omitempty"`
	DeviceTrust      *integrity.IntegrityContext `json:"device_trust,omitempty"`
	RateLimit        *ratelimit.Result           `json:"rate_limit,omitempty"`

	OverallScore float64   `json:"overall_score"`
	Signature    string    `json:"signature,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Persistable reports whether this verdict is stored. Rejections leave only
// an audit trail.
func (v *IntegrityVerdict) Persistable() bool {
	return v.Decision.Persistable()
}
