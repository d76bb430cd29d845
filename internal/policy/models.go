// Package policy defines the versioned attendance policy document and the
// evaluator that applies it to a check-in attempt.
package policy

import (
	"time"

	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
)

// Policy is a versioned, immutable-once-published decision document.
//
// Invariants, enforced by Validate and the store:
//   - Version strictly increases on every mutation.
//   - Exactly one version is current per policy identity.
//   - Factor weights are non-negative.
//   - MinFactors never exceeds the number of configured presence modes.
type Policy struct {
	ID       id.PolicyID `json:"id" yaml:"-"`
	Name     string      `json:"name" yaml:"name"`
	Version  int         `json:"version" yaml:"-"`
	Current  bool        `json:"current" yaml:"-"`
	Priority int         `json:"priority" yaml:"priority"`
	// OfficeID scopes the policy to one office; nil means global.
	OfficeID *id.OfficeID `json:"office_id,omitempty" yaml:"-"`

	RequiredFactors RequiredFactors `json:"required_factors" yaml:"required_factors"`
	GeoDistance     *GeoDistance    `json:"geo_distance,omitempty" yaml:"geo_distance,omitempty"`
	Liveness        *Liveness       `json:"liveness,omitempty" yaml:"liveness,omitempty"`
	WorkingHours    *WorkingHours   `json:"working_hours,omitempty" yaml:"working_hours,omitempty"`
	Thresholds      Thresholds      `json:"thresholds" yaml:"thresholds"`

	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"-"`
}

// RequiredFactors configures the multi-factor presence requirement.
type RequiredFactors struct {
	// MinFactors is the minimum count of passing factors.
	MinFactors int `json:"min_factors" yaml:"min_factors"`
	// Factors is the ordered list of presence modes this policy evaluates.
	Factors []FactorRequirement `json:"factors" yaml:"factors"`
	// AllowFallback downgrades an insufficient-factors rejection to REVIEW
	// when at least one factor passed.
	AllowFallback bool `json:"allow_fallback" yaml:"allow_fallback"`
}

// FactorRequirement is one presence mode entry in a policy.
type FactorRequirement struct {
	Mode     id.Mode `json:"mode" yaml:"mode"`
	Required bool    `json:"required" yaml:"required"`
	Weight   float64 `json:"weight" yaml:"weight"`
}

// GeoDistance tunes the geofence factor for this policy.
type GeoDistance struct {
	MaxDistanceMeters float64 `json:"max_distance_meters" yaml:"max_distance_meters"`
}

// Liveness tunes the face factor for this policy.
type Liveness struct {
	MinConfidence   float64 `json:"min_confidence" yaml:"min_confidence"`
	RequireLiveness bool    `json:"require_liveness" yaml:"require_liveness"`
}

// WorkingHours is the expected attendance window. Weekdays uses time.Weekday
// values (Sunday=0).
type WorkingHours struct {
	Start    string         `json:"start" yaml:"start"` // "09:00"
	End      string         `json:"end" yaml:"end"`     // "18:00"
	Weekdays []time.Weekday `json:"weekdays" yaml:"weekdays"`
}

// Thresholds configures the lateness / early-departure review windows,
// in minutes past start / before end.
type Thresholds struct {
	LateAfterMinutes        int `json:"late_after_minutes" yaml:"late_after_minutes"`
	EarlyLeaveBeforeMinutes int `json:"early_leave_before_minutes" yaml:"early_leave_before_minutes"`
}

// Validate enforces the document invariants. Called before create/publish.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "policy name is required")
	}
	if p.RequiredFactors.MinFactors < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "min_factors cannot be negative")
	}
	if p.RequiredFactors.MinFactors > len(p.RequiredFactors.Factors) {
		return dErrors.New(dErrors.CodeInvalidInput, "min_factors exceeds configured presence modes")
	}
	seen := make(map[id.Mode]bool, len(p.RequiredFactors.Factors))
	for _, f := range p.RequiredFactors.Factors {
		if !f.Mode.IsValid() {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unsupported presence mode: %s", f.Mode)
		}
		if f.Weight < 0 {
			return dErrors.Newf(dErrors.CodeInvalidInput, "negative weight for mode %s", f.Mode)
		}
		if seen[f.Mode] {
			return dErrors.Newf(dErrors.CodeInvalidInput, "duplicate presence mode: %s", f.Mode)
		}
		seen[f.Mode] = true
	}
	if p.WorkingHours != nil {
		if _, err := parseClock(p.WorkingHours.Start); err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "working hours start must be HH:MM")
		}
		if _, err := parseClock(p.WorkingHours.End); err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "working hours end must be HH:MM")
		}
	}
	return nil
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
