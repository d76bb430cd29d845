package factors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
	"checkpoint/pkg/platform/sentinel"
)

// BeaconChecker verifies a sighted BLE beacon against the office registry.
// The RSSI floor rejects sightings too weak to indicate actual proximity.
type BeaconChecker struct {
	beacons BeaconDirectory
}

// NewBeaconChecker constructs a beacon checker over the given directory.
func NewBeaconChecker(beacons BeaconDirectory) *BeaconChecker {
	return &BeaconChecker{beacons: beacons}
}

func (c *BeaconChecker) Mode() id.Mode { return id.ModeBeacon }

func (c *BeaconChecker) Check(ctx context.Context, ec *policy.EvaluationContext, evidence any, pol *policy.Policy) (policy.FactorFinding, error) {
	sighting, ok := evidence.(*policy.BeaconEvidence)
	if !ok {
		return policy.FactorFinding{}, dErrors.New(dErrors.CodeInternal, "beacon checker received unexpected evidence payload")
	}
	if ec.OfficeID == nil {
		return policy.FactorFinding{Detail: "no office to verify against"}, nil
	}

	registered, err := c.beacons.Beacons(ctx, *ec.OfficeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return policy.FactorFinding{Detail: "office has no registered beacons"}, nil
		}
		return policy.FactorFinding{}, fmt.Errorf("resolve office beacons: %w", err)
	}

	for _, b := range registered {
		if !strings.EqualFold(b.UUID, sighting.UUID) || b.Major != sighting.Major || b.Minor != sighting.Minor {
			continue
		}
		if b.MinRSSI != 0 && sighting.RSSI < b.MinRSSI {
			return policy.FactorFinding{
				Detail: fmt.Sprintf("beacon signal too weak (%d dBm, floor %d dBm)", sighting.RSSI, b.MinRSSI),
			}, nil
		}
		return policy.FactorFinding{Passed: true, Confidence: 0.9, Detail: "registered beacon in range"}, nil
	}

	return policy.FactorFinding{Detail: "beacon not registered for office"}, nil
}
