package handler

import (
	"time"

	"checkpoint/internal/policy"
)

// PolicyResponse is the wire shape of a published policy version. The
// document sub-structures reuse the domain JSON shapes; only identifiers
// are normalized to strings.
type PolicyResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Current  bool   `json:"current"`
	Priority int    `json:"priority"`
	OfficeID string `json:"office_id,omitempty"`

	RequiredFactors policy.RequiredFactors `json:"required_factors"`
	GeoDistance     *policy.GeoDistance    `json:"geo_distance,omitempty"`
	Liveness        *policy.Liveness       `json:"liveness,omitempty"`
	WorkingHours    *policy.WorkingHours   `json:"working_hours,omitempty"`
	Thresholds      policy.Thresholds      `json:"thresholds"`

	CreatedAt   time.Time `json:"created_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromPolicy maps a policy document to its response shape.
func FromPolicy(p *policy.Policy) PolicyResponse {
	resp := PolicyResponse{
		ID:              p.ID.String(),
		Name:            p.Name,
		Version:         p.Version,
		Current:         p.Current,
		Priority:        p.Priority,
		RequiredFactors: p.RequiredFactors,
		GeoDistance:     p.GeoDistance,
		Liveness:        p.Liveness,
		WorkingHours:    p.WorkingHours,
		Thresholds:      p.Thresholds,
		CreatedAt:       p.CreatedAt,
		PublishedAt:     p.PublishedAt,
	}
	if p.OfficeID != nil {
		resp.OfficeID = p.OfficeID.String()
	}
	return resp
}
