package ratelimit

import "time"

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
	// Degraded marks a fail-open admission taken while the window store
	// was unreachable. Surfaced so verdicts can record the weaker guarantee.
	Degraded bool `json:"degraded,omitempty"`
}
