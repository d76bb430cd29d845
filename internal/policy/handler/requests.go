package handler

import (
	"time"

	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
)

// PublishRequest is the wire shape of a policy publish.
type PublishRequest struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Priority int    `json:"priority,omitempty"`
	OfficeID string `json:"office_id,omitempty"`

	RequiredFactors RequiredFactors `json:"required_factors"`
	GeoDistance     *GeoDistance    `json:"geo_distance,omitempty"`
	Liveness        *Liveness       `json:"liveness,omitempty"`
	WorkingHours    *WorkingHours   `json:"working_hours,omitempty"`
	Thresholds      Thresholds      `json:"thresholds"`
}

type RequiredFactors struct {
	MinFactors    int                 `json:"min_factors"`
	Factors       []FactorRequirement `json:"factors"`
	AllowFallback bool                `json:"allow_fallback"`
}

type FactorRequirement struct {
	Mode     string  `json:"mode"`
	Required bool    `json:"required"`
	Weight   float64 `json:"weight"`
}

type GeoDistance struct {
	MaxDistanceMeters float64 `json:"max_distance_meters"`
}

type Liveness struct {
	MinConfidence   float64 `json:"min_confidence"`
	RequireLiveness bool    `json:"require_liveness"`
}

type WorkingHours struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Weekdays []int  `json:"weekdays"`
}

type Thresholds struct {
	LateAfterMinutes        int `json:"late_after_minutes"`
	EarlyLeaveBeforeMinutes int `json:"early_leave_before_minutes"`
}

// Parse validates the wire request and converts it to the policy document.
// Document invariants are enforced by Validate at publish time; Parse only
// handles shape and identifier conversion.
func (r *PublishRequest) Parse() (*policy.Policy, error) {
	doc := &policy.Policy{
		Name:     r.Name,
		Priority: r.Priority,
		RequiredFactors: policy.RequiredFactors{
			MinFactors:    r.RequiredFactors.MinFactors,
			AllowFallback: r.RequiredFactors.AllowFallback,
		},
		Thresholds: policy.Thresholds{
			LateAfterMinutes:        r.Thresholds.LateAfterMinutes,
			EarlyLeaveBeforeMinutes: r.Thresholds.EarlyLeaveBeforeMinutes,
		},
	}

	if r.ID != "" {
		policyID, err := id.ParsePolicyID(r.ID)
		if err != nil {
			return nil, err
		}
		doc.ID = policyID
	}
	if r.OfficeID != "" {
		officeID, err := id.ParseOfficeID(r.OfficeID)
		if err != nil {
			return nil, err
		}
		doc.OfficeID = &officeID
	}

	for _, f := range r.RequiredFactors.Factors {
		mode, err := id.ParseMode(f.Mode)
		if err != nil {
			return nil, err
		}
		doc.RequiredFactors.Factors = append(doc.RequiredFactors.Factors, policy.FactorRequirement{
			Mode:     mode,
			Required: f.Required,
			Weight:   f.Weight,
		})
	}

	if r.GeoDistance != nil {
		doc.GeoDistance = &policy.GeoDistance{MaxDistanceMeters: r.GeoDistance.MaxDistanceMeters}
	}
	if r.Liveness != nil {
		doc.Liveness = &policy.Liveness{
			MinConfidence:   r.Liveness.MinConfidence,
			RequireLiveness: r.Liveness.RequireLiveness,
		}
	}
	if r.WorkingHours != nil {
		wh := &policy.WorkingHours{Start: r.WorkingHours.Start, End: r.WorkingHours.End}
		for _, d := range r.WorkingHours.Weekdays {
			wh.Weekdays = append(wh.Weekdays, time.Weekday(d))
		}
		doc.WorkingHours = wh
	}

	return doc, nil
}
