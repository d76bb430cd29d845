// Package audit captures the append-only trail of attendance decisions and
// device trust events. Events flow through a publisher that fans out to the
// durable store and optional external sinks.
package audit

import (
	"time"

	id "checkpoint/pkg/domain"
)

// Action identifies what happened.
type Action string

const (
	ActionCheckInAccepted  Action = "check_in_accepted"
	ActionCheckInReview    Action = "check_in_review"
	ActionCheckInRejected  Action = "check_in_rejected"
	ActionRateLimited      Action = "rate_limited"
	ActionDeviceUntrusted  Action = "device_untrusted"
	ActionDeviceBound      Action = "device_bound"
	ActionBindingMismatch  Action = "binding_mismatch"
	ActionPolicyPublished  Action = "policy_published"
	ActionPipelineTimedOut Action = "pipeline_timed_out"
)

// Event is one audit trail entry. Keep it transport-agnostic so stores and
// sinks can fan out.
type Event struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       Action            `json:"action"`
	UserID       id.UserID         `json:"user_id"`
	DeviceID     id.DeviceID       `json:"device_id,omitempty"`
	OfficeID     *id.OfficeID      `json:"office_id,omitempty"`
	AttendanceID *id.AttendanceID  `json:"attendance_id,omitempty"`
	Decision     string            `json:"decision,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Score        float64           `json:"score,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
