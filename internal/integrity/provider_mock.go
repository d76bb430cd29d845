package integrity

import (
	"context"
	"encoding/json"
	"time"
)

// MockVerifier returns canned results for development and tests. When the
// payload is valid JSON in the mock wire shape it is echoed back, so tests
// can script arbitrary provider behavior; anything else yields the default
// healthy result.
type MockVerifier struct {
	now func() time.Time
}

// NewMockVerifier constructs the development verifier.
func NewMockVerifier() *MockVerifier {
	return &MockVerifier{now: time.Now}
}

// mockPayload is the scriptable wire shape accepted by the mock provider.
type mockPayload struct {
	Valid           *bool    `json:"valid,omitempty"`
	DeviceID        string   `json:"device_id,omitempty"`
	DevicePublicKey []byte   `json:"device_public_key,omitempty"`
	Nonce           string   `json:"nonce,omitempty"`
	IssuedAt        *int64   `json:"issued_at,omitempty"` // unix seconds
	IntegrityLevel  string   `json:"integrity_level,omitempty"`
	RiskSignals     []string `json:"risk_signals,omitempty"`
	RootDetected    bool     `json:"root_detected,omitempty"`
	Jailbroken      bool     `json:"jailbroken,omitempty"`
}

func (v *MockVerifier) Mode() Mode { return ModeMock }

func (v *MockVerifier) Verify(ctx context.Context, att Attestation) (*VerificationResult, error) {
	now := v.now()
	result := &VerificationResult{
		Valid:          true,
		Provider:       ModeMock,
		IssuedAt:       now,
		ExpiresAt:      now.Add(5 * time.Minute),
		IntegrityLevel: LevelStrong,
	}

	var scripted mockPayload
	if len(att.Payload) == 0 || json.Unmarshal(att.Payload, &scripted) != nil {
		return result, nil
	}

	if scripted.Valid != nil {
		result.Valid = *scripted.Valid
		if !result.Valid {
			result.Reasons = append(result.Reasons, "scripted failure")
		}
	}
	result.DeviceID = scripted.DeviceID
	result.DevicePublicKey = scripted.DevicePublicKey
	result.Nonce = scripted.Nonce
	if scripted.IssuedAt != nil {
		result.IssuedAt = time.Unix(*scripted.IssuedAt, 0)
	}
	if scripted.IntegrityLevel != "" {
		result.IntegrityLevel = IntegrityLevel(scripted.IntegrityLevel)
	}
	result.RiskSignals = scripted.RiskSignals
	result.RootDetected = scripted.RootDetected
	result.JailbreakDetect = scripted.Jailbroken
	return result, nil
}
