package handler

import (
	"time"

	"checkpoint/internal/attendance"
)

// VerdictResponse is the wire shape of a check-in verdict. Stage details are
// echoed back so clients can explain a rejection or review flag to the user.
type VerdictResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	OfficeID  string    `json:"office_id,omitempty"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Decision   string `json:"decision"`
	ReasonCode string `json:"reason_code,omitempty"`
	Rationale  string `json:"rationale,omitempty"`

	OverallScore float64 `json:"overall_score"`
	Signature    string  `json:"signature,omitempty"`

	FactorsPassed    int      `json:"factors_passed"`
	MotionPassed     *bool    `json:"motion_passed,omitempty"`
	DeviceTrustScore *float64 `json:"device_trust_score,omitempty"`
	RateRemaining    *int     `json:"rate_remaining,omitempty"`
}

// FromVerdict maps a pipeline verdict to its response shape.
func FromVerdict(v *attendance.IntegrityVerdict) VerdictResponse {
	resp := VerdictResponse{
		ID:           v.ID.String(),
		UserID:       v.UserID.String(),
		DeviceID:     v.DeviceID.String(),
		Kind:         v.Kind.String(),
		Timestamp:    v.Timestamp,
		Decision:     v.Decision.String(),
		ReasonCode:   v.ReasonCode,
		Rationale:    v.Rationale,
		OverallScore: v.OverallScore,
		Signature:    v.Signature,
	}
	if v.OfficeID != nil {
		resp.OfficeID = v.OfficeID.String()
	}
	if v.PolicyEvaluation != nil {
		resp.FactorsPassed = v.PolicyEvaluation.FactorsPassed
	}
	if v.Motion != nil {
		passed := v.Motion.Passed
		resp.MotionPassed = &passed
	}
	if v.DeviceTrust != nil {
		score := v.DeviceTrust.TrustScore
		resp.DeviceTrustScore = &score
	}
	if v.RateLimit != nil {
		remaining := v.RateLimit.Remaining
		resp.RateRemaining = &remaining
	}
	return resp
}
