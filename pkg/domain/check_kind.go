package domain

import dErrors "checkpoint/pkg/domain-errors"

// CheckKind distinguishes arrival from departure attempts. Lateness rules
// apply to check-ins, early-departure rules to check-outs.
type CheckKind string

const (
	CheckKindIn  CheckKind = "check_in"
	CheckKindOut CheckKind = "check_out"
)

// ParseCheckKind constructs a CheckKind from external input. Empty input
// defaults to check_in.
func ParseCheckKind(s string) (CheckKind, error) {
	switch s {
	case "", string(CheckKindIn):
		return CheckKindIn, nil
	case string(CheckKindOut):
		return CheckKindOut, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported check kind: %s", s)
}

// String returns the string representation of the check kind.
func (k CheckKind) String() string {
	return string(k)
}
