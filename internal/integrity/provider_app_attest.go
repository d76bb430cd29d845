package integrity

import (
	"context"
	"encoding/json"
	"time"
)

// appAttestEnvelope is the JSON envelope the iOS client sends after local
// App Attest assertion. The assertion itself was validated against Apple
// during key enrollment; the envelope carries the enrolled key material.
type appAttestEnvelope struct {
	KeyID           string   `json:"key_id"`
	BundleID        string   `json:"bundle_id"`
	Nonce           string   `json:"nonce"`
	Timestamp       int64    `json:"timestamp"` // unix seconds
	DevicePublicKey []byte   `json:"device_public_key"`
	Environment     string   `json:"environment"` // production or development
	RiskSignals     []string `json:"risk_signals,omitempty"`
	Jailbroken      bool     `json:"jailbroken"`
}

// AppAttestVerifier validates the App Attest envelope: key id and bundle
// checks plus risk signal normalization.
type AppAttestVerifier struct {
	expectedBundle string
}

// NewAppAttestVerifier constructs the iOS verifier.
func NewAppAttestVerifier(expectedBundle string) *AppAttestVerifier {
	return &AppAttestVerifier{expectedBundle: expectedBundle}
}

func (v *AppAttestVerifier) Mode() Mode { return ModeAppAttest }

func (v *AppAttestVerifier) Verify(ctx context.Context, att Attestation) (*VerificationResult, error) {
	result := &VerificationResult{Provider: ModeAppAttest, IntegrityLevel: LevelNone}

	var envelope appAttestEnvelope
	if err := json.Unmarshal(att.Payload, &envelope); err != nil {
		result.fail("attestation envelope is not valid JSON")
		return result, nil
	}

	if envelope.KeyID == "" {
		result.fail("attestation envelope missing key id")
		return result, nil
	}
	if v.expectedBundle != "" && envelope.BundleID != v.expectedBundle {
		result.fail("attestation issued for bundle " + envelope.BundleID)
		return result, nil
	}

	result.Valid = true
	result.DeviceID = envelope.KeyID
	result.DevicePublicKey = envelope.DevicePublicKey
	result.Nonce = envelope.Nonce
	if envelope.Timestamp > 0 {
		result.IssuedAt = time.Unix(envelope.Timestamp, 0)
	}
	result.RiskSignals = envelope.RiskSignals
	result.JailbreakDetect = envelope.Jailbroken

	switch {
	case envelope.Jailbroken:
		result.IntegrityLevel = LevelNone
	case envelope.Environment == "development":
		result.IntegrityLevel = LevelBasic
		result.Warnings = append(result.Warnings, "development attestation environment")
	default:
		result.IntegrityLevel = LevelStrong
	}

	return result, nil
}
