package domain

import (
	"github.com/google/uuid"

	dErrors "checkpoint/pkg/domain-errors"
)

// Typed UUID identifiers for the core entities. Distinct types keep a
// DeviceID from being passed where a UserID is expected; the compiler
// enforces the distinction.
//
// Invariant: IDs must be valid, non-empty, non-nil UUIDs. Construct via the
// Parse* functions at trust boundaries; direct casting bypasses validation.
type (
	UserID       uuid.UUID
	DeviceID     uuid.UUID
	OfficeID     uuid.UUID
	PolicyID     uuid.UUID
	AttendanceID uuid.UUID
)

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", what)
	}
	return u, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseDeviceID validates and returns a DeviceID.
func ParseDeviceID(s string) (DeviceID, error) {
	u, err := parseUUID(s, "device ID")
	return DeviceID(u), err
}

// ParseOfficeID validates and returns an OfficeID.
func ParseOfficeID(s string) (OfficeID, error) {
	u, err := parseUUID(s, "office ID")
	return OfficeID(u), err
}

// ParsePolicyID validates and returns a PolicyID.
func ParsePolicyID(s string) (PolicyID, error) {
	u, err := parseUUID(s, "policy ID")
	return PolicyID(u), err
}

// ParseAttendanceID validates and returns an AttendanceID.
func ParseAttendanceID(s string) (AttendanceID, error) {
	u, err := parseUUID(s, "attendance ID")
	return AttendanceID(u), err
}

// NewAttendanceID generates a fresh attendance record identifier.
func NewAttendanceID() AttendanceID {
	return AttendanceID(uuid.New())
}

// NewPolicyID generates a fresh policy identifier.
func NewPolicyID() PolicyID {
	return PolicyID(uuid.New())
}

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id DeviceID) String() string     { return uuid.UUID(id).String() }
func (id OfficeID) String() string     { return uuid.UUID(id).String() }
func (id PolicyID) String() string     { return uuid.UUID(id).String() }
func (id AttendanceID) String() string { return uuid.UUID(id).String() }

// The ID types serialize as canonical UUID strings. Without these, JSON
// would encode the underlying 16-byte array.
func (id UserID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id DeviceID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id OfficeID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id PolicyID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id AttendanceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DeviceID) UnmarshalText(b []byte) error {
	parsed, err := ParseDeviceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *OfficeID) UnmarshalText(b []byte) error {
	parsed, err := ParseOfficeID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PolicyID) UnmarshalText(b []byte) error {
	parsed, err := ParsePolicyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AttendanceID) UnmarshalText(b []byte) error {
	parsed, err := ParseAttendanceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id DeviceID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id OfficeID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AttendanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
