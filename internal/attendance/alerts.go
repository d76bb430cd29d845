package attendance

import (
	"context"
	"log/slog"
)

// AlertHook is notified of review and rejected verdicts. Hooks run
// fire-and-forget: a slow, failing, or panicking hook never affects the
// returned verdict.
type AlertHook interface {
	Name() string
	Notify(ctx context.Context, v *IntegrityVerdict) error
}

// LogAlertHook records alerts in the structured log. The default hook when
// no external alerting is wired.
type LogAlertHook struct {
	Logger *slog.Logger
}

func (h LogAlertHook) Name() string { return "log" }

func (h LogAlertHook) Notify(ctx context.Context, v *IntegrityVerdict) error {
	if h.Logger == nil {
		return nil
	}
	h.Logger.WarnContext(ctx, "attendance verdict flagged",
		"attendance_id", v.ID,
		"user_id", v.UserID,
		"decision", v.Decision,
		"reason_code", v.ReasonCode,
		"rationale", v.Rationale,
		"score", v.OverallScore,
	)
	return nil
}
