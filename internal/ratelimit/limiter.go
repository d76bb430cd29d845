// Package ratelimit provides per-identity sliding-window admission control
// for check-in attempts.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"checkpoint/internal/ratelimit/store"
)

// Limiter admits or rejects attempts against a sliding window.
//
// Availability outranks strict enforcement: if the window store is
// unreachable the limiter fails OPEN, admitting the attempt and marking the
// result degraded.
type Limiter struct {
	windows store.WindowStore
	limit   int
	window  time.Duration
	logger  *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger used for degraded-mode warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New constructs a limiter over the given window store.
func New(windows store.WindowStore, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		windows: windows,
		limit:   limit,
		window:  window,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records the attempt and admits it iff the identity has not exhausted
// the window. The attempt counts against the window regardless of the
// decision, so pathological retry storms keep the window saturated.
func (l *Limiter) Allow(ctx context.Context, identity string, now time.Time) Result {
	count, oldest, err := l.windows.Observe(ctx, identity, now, l.window)
	if err != nil {
		// Fail open: the business flow survives a window-store outage.
		if l.logger != nil {
			l.logger.WarnContext(ctx, "rate limit store unreachable, failing open",
				"identity", identity,
				"error", err,
			)
		}
		return Result{
			Allowed:   true,
			Remaining: l.limit,
			Limit:     l.limit,
			ResetAt:   now.Add(l.window),
			Degraded:  true,
		}
	}

	resetAt := oldest.Add(l.window)
	if count > l.limit {
		return Result{
			Allowed:   false,
			Remaining: 0,
			Limit:     l.limit,
			ResetAt:   resetAt,
		}
	}
	return Result{
		Allowed:   true,
		Remaining: l.limit - count,
		Limit:     l.limit,
		ResetAt:   resetAt,
	}
}
