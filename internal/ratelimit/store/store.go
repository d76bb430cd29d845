// Package store provides sliding-window stores for the rate limiter.
package store

import (
	"context"
	"time"
)

// WindowStore records check-in attempt timestamps per identity and reports
// how many fall inside the current window.
//
// Record-then-count semantics: the attempt timestamp is always recorded,
// allowed or not, so retry storms keep counting against the window.
type WindowStore interface {
	// Observe appends now to the identity's window, evicts entries older
	// than now-window, and returns the count including this attempt plus
	// the timestamp of the oldest retained entry (for reset computation).
	Observe(ctx context.Context, identity string, now time.Time, window time.Duration) (count int, oldest time.Time, err error)
}
