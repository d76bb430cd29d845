package integrity

import (
	"context"

	dErrors "checkpoint/pkg/domain-errors"
)

// Verifier decodes and validates one provider's attestation payload into
// the normalized result. Malformed payloads produce a Valid=false result
// with Reasons populated; an error return is reserved for internal faults.
type Verifier interface {
	Mode() Mode
	Verify(ctx context.Context, att Attestation) (*VerificationResult, error)
}

// Safeguard captures the mock-in-production policy. The mock provider is
// hard-disabled in production unless the override flag is set; the check
// runs at construction and again on every mode switch so a runtime
// reconfiguration cannot sneak it in.
type Safeguard struct {
	Production        bool
	AllowMockOverride bool
}

// check validates that mode may be activated under this safeguard against
// the given registry.
func (s Safeguard) check(mode Mode, providers map[Mode]Verifier) error {
	if _, ok := providers[mode]; !ok {
		return dErrors.Newf(dErrors.CodeConfiguration, "no attestation provider registered for mode %q", mode)
	}
	if mode == ModeMock && s.Production && !s.AllowMockOverride {
		return dErrors.New(dErrors.CodeConfiguration, "mock attestation provider is disabled in production")
	}
	return nil
}
