// Package integrity implements device trust: attestation verification
// through pluggable providers, device binding, and root/jailbreak signal
// fusion, combined into a single trust score per verification.
package integrity

import (
	"time"

	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
)

// Mode selects the active attestation provider. The enum is closed;
// an unregistered mode is a configuration error at wiring time.
type Mode string

const (
	ModePlayIntegrity Mode = "play_integrity"
	ModeAppAttest     Mode = "app_attest"
	ModeMock          Mode = "mock"
)

// ParseMode constructs a Mode from external input.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePlayIntegrity, ModeAppAttest, ModeMock:
		return Mode(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeConfiguration, "unsupported integrity mode: %s", s)
}

// String returns the string representation of the mode.
func (m Mode) String() string { return string(m) }

// IntegrityLevel is the normalized strength a provider reports.
type IntegrityLevel string

const (
	LevelStrong IntegrityLevel = "strong"
	LevelDevice IntegrityLevel = "device"
	LevelBasic  IntegrityLevel = "basic"
	LevelNone   IntegrityLevel = "none"
)

// Attestation is the opaque device-signed payload as received on the wire,
// tagged with the provider the client claims produced it.
type Attestation struct {
	Provider Mode   `json:"provider"`
	Payload  []byte `json:"payload"`
}

// RawSignals are client-reported device state flags, fed to the raw-signal
// adapter. They are self-reported and only ever lower trust.
type RawSignals struct {
	SELinuxPermissive  bool `json:"selinux_permissive"`
	DebuggerAttached   bool `json:"debugger_attached"`
	HooksDetected      bool `json:"hooks_detected"`
	EmulatorDetected   bool `json:"emulator_detected"`
	BootloaderUnlocked bool `json:"bootloader_unlocked"`
}

// VerifyRequest is one device verification attempt.
type VerifyRequest struct {
	UserID        id.UserID
	DeviceID      id.DeviceID
	Attestation   Attestation
	ExpectedNonce string
	RawSignals    *RawSignals
	// Metadata is folded into the binding record on auto-bind
	// (device model, user agent).
	Metadata map[string]string
}

// VerificationResult is the normalized output of any provider, regardless
// of wire format. Validation failures land in Reasons with Valid=false;
// non-fatal oddities land in Warnings.
type VerificationResult struct {
	Valid           bool           `json:"valid"`
	Provider        Mode           `json:"provider"`
	DeviceID        string         `json:"device_id,omitempty"`
	DevicePublicKey []byte         `json:"device_public_key,omitempty"`
	IssuedAt        time.Time      `json:"issued_at,omitempty"`
	ExpiresAt       time.Time      `json:"expires_at,omitempty"`
	Nonce           string         `json:"nonce,omitempty"`
	IntegrityLevel  IntegrityLevel `json:"integrity_level"`
	RiskSignals     []string       `json:"risk_signals,omitempty"`
	RootDetected    bool           `json:"root_detected"`
	JailbreakDetect bool           `json:"jailbreak_detected"`
	Warnings        []string       `json:"warnings,omitempty"`
	Reasons         []string       `json:"reasons,omitempty"`
}

// fail marks the result invalid with a recorded reason.
func (r *VerificationResult) fail(reason string) {
	r.Valid = false
	r.Reasons = append(r.Reasons, reason)
}

// BindingStatus is the outcome of validating a (user, device) binding.
type BindingStatus string

const (
	BindingValid            BindingStatus = "valid"
	BindingUnbound          BindingStatus = "unbound"
	BindingMismatch         BindingStatus = "mismatch"
	BindingMissingPublicKey BindingStatus = "missing_public_key"
	// BindingUnknown is reported when the binding store is unreachable
	// and the verification proceeds degraded.
	BindingUnknown BindingStatus = "unknown"
)

// BindingRecord ties a user to a device through the device's attested
// public key. At most one record exists per (user, device) pair.
type BindingRecord struct {
	UserID          id.UserID         `json:"user_id"`
	DeviceID        id.DeviceID       `json:"device_id"`
	DevicePublicKey []byte            `json:"device_public_key"`
	BoundAt         time.Time         `json:"bound_at"`
	LastValidatedAt time.Time         `json:"last_validated_at"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// RootSignal is one fused root/jailbreak/tamper indicator.
type RootSignal struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Detail string `json:"detail,omitempty"`
}

// IntegrityContext is the orchestrated verdict for one verification.
type IntegrityContext struct {
	Result        *VerificationResult `json:"result"`
	BindingStatus BindingStatus       `json:"binding_status"`
	RootSignals   []RootSignal        `json:"root_signals,omitempty"`
	TrustScore    float64             `json:"trust_score"`
	Degraded      bool                `json:"degraded"`
}
