package domain

import dErrors "checkpoint/pkg/domain-errors"

// Mode identifies one verifiable proof of physical presence.
// Invariant: the value must be one of the supported presence modes.
//
// Usage: construct via ParseMode at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Mode string

// Supported presence modes.
const (
	ModeGeofence Mode = "geofence"
	ModeWifi     Mode = "wifi"
	ModeBeacon   Mode = "beacon"
	ModeNFC      Mode = "nfc"
	ModeQR       Mode = "qr"
	ModeFace     Mode = "face"
)

// validModes is the single source of truth for valid presence modes.
var validModes = map[Mode]bool{
	ModeGeofence: true,
	ModeWifi:     true,
	ModeBeacon:   true,
	ModeNFC:      true,
	ModeQR:       true,
	ModeFace:     true,
}

// ParseMode constructs a Mode from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "presence mode cannot be empty")
	}
	m := Mode(s)
	if !m.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported presence mode: %s", s)
	}
	return m, nil
}

// IsValid checks if the mode is one of the supported enum values.
func (m Mode) IsValid() bool {
	return validModes[m]
}

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}
