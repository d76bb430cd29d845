package factors

import (
	"context"
	"errors"
	"fmt"

	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
	"checkpoint/pkg/geo"
	"checkpoint/pkg/platform/sentinel"
)

// GeofenceChecker verifies a reported location against the office geofence.
// The policy's geo_distance block, when present, overrides the office radius.
type GeofenceChecker struct {
	geometries GeometryDirectory
}

// NewGeofenceChecker constructs a geofence checker over the given directory.
func NewGeofenceChecker(geometries GeometryDirectory) *GeofenceChecker {
	return &GeofenceChecker{geometries: geometries}
}

func (c *GeofenceChecker) Mode() id.Mode { return id.ModeGeofence }

func (c *GeofenceChecker) Check(ctx context.Context, ec *policy.EvaluationContext, evidence any, pol *policy.Policy) (policy.FactorFinding, error) {
	loc, ok := evidence.(*policy.LocationEvidence)
	if !ok {
		return policy.FactorFinding{}, dErrors.New(dErrors.CodeInternal, "geofence checker received unexpected evidence payload")
	}
	if ec.OfficeID == nil {
		return policy.FactorFinding{Detail: "no office to verify against"}, nil
	}

	geom, err := c.geometries.Geometry(ctx, *ec.OfficeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return policy.FactorFinding{Detail: "office has no registered geofence"}, nil
		}
		return policy.FactorFinding{}, fmt.Errorf("resolve office geofence: %w", err)
	}

	maxDistance := geom.RadiusMeters
	if pol.GeoDistance != nil && pol.GeoDistance.MaxDistanceMeters > 0 {
		maxDistance = pol.GeoDistance.MaxDistanceMeters
	}

	distance := geo.HaversineMeters(geom.Latitude, geom.Longitude, loc.Latitude, loc.Longitude)
	if distance > maxDistance {
		return policy.FactorFinding{
			Detail: fmt.Sprintf("%.0fm from office, limit %.0fm", distance, maxDistance),
		}, nil
	}

	return policy.FactorFinding{
		Passed:     true,
		Confidence: proximityConfidence(distance, maxDistance),
		Detail:     fmt.Sprintf("%.0fm from office", distance),
	}, nil
}

// proximityConfidence scales linearly from 1 at the center to 0.5 at the
// fence so downstream scoring can tell a dead-center fix from a boundary one.
func proximityConfidence(distance, maxDistance float64) float64 {
	if maxDistance <= 0 {
		return 1
	}
	return 1 - 0.5*(distance/maxDistance)
}
