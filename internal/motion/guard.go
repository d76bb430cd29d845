// Package motion implements the location-plausibility guard: given the
// previous and current location samples for an identity, decide whether the
// movement between them is physically plausible.
package motion

import (
	"time"

	"checkpoint/pkg/geo"
)

// Location is a WGS-84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sample is one observed location with its timestamp.
type Sample struct {
	Location  Location  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome of a plausibility check. SpeedMps is nil when the
// guard cannot judge (no previous sample).
type Result struct {
	Passed           bool     `json:"passed"`
	TeleportDetected bool     `json:"teleport_detected"`
	SpeedMps         *float64 `json:"speed_mps,omitempty"`
	DistanceMeters   float64  `json:"distance_meters"`
}

// Guard checks pairwise location plausibility. It is stateless and pure;
// sample retention belongs to the calling orchestrator.
type Guard struct {
	maxSpeedMps    float64
	teleportMeters float64
	minTimeDelta   time.Duration
}

// NewGuard constructs a guard with the configured thresholds. A non-positive
// minTimeDelta falls back to one second to avoid division blow-up on
// near-simultaneous samples.
func NewGuard(maxSpeedMps, teleportMeters float64, minTimeDelta time.Duration) *Guard {
	if minTimeDelta <= 0 {
		minTimeDelta = time.Second
	}
	return &Guard{
		maxSpeedMps:    maxSpeedMps,
		teleportMeters: teleportMeters,
		minTimeDelta:   minTimeDelta,
	}
}

// Check judges the movement from prev to cur. A nil prev always passes:
// with a single sample there is nothing to judge.
//
// Teleport is distance-based regardless of elapsed time; the speed check
// divides by max(dt, minTimeDelta) so retries milliseconds apart cannot
// manufacture absurd speeds.
func (g *Guard) Check(prev *Sample, cur Sample) Result {
	if prev == nil {
		return Result{Passed: true}
	}

	distance := geo.HaversineMeters(
		prev.Location.Latitude, prev.Location.Longitude,
		cur.Location.Latitude, cur.Location.Longitude,
	)

	dt := cur.Timestamp.Sub(prev.Timestamp)
	if dt < g.minTimeDelta {
		dt = g.minTimeDelta
	}
	speed := distance / dt.Seconds()

	teleport := distance > g.teleportMeters
	passed := !teleport && speed <= g.maxSpeedMps

	return Result{
		Passed:           passed,
		TeleportDetected: teleport,
		SpeedMps:         &speed,
		DistanceMeters:   distance,
	}
}
