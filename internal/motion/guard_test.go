package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tallinnOldTown = Location{Latitude: 59.4370, Longitude: 24.7454}
	// ~1.2km east of the old town
	tallinnHarbour = Location{Latitude: 59.4424, Longitude: 24.7632}
	helsinki       = Location{Latitude: 60.1699, Longitude: 24.9384}
)

func newTestGuard() *Guard {
	return NewGuard(42.0, 1000, time.Second)
}

func TestCheck_NoPreviousSampleAlwaysPasses(t *testing.T) {
	g := newTestGuard()

	res := g.Check(nil, Sample{Location: tallinnOldTown, Timestamp: time.Now()})

	assert.True(t, res.Passed)
	assert.False(t, res.TeleportDetected)
	assert.Nil(t, res.SpeedMps)
	assert.Zero(t, res.DistanceMeters)
}

func TestCheck_IdenticalCoordinatesZeroSpeed(t *testing.T) {
	g := newTestGuard()
	now := time.Now()

	prev := &Sample{Location: tallinnOldTown, Timestamp: now}
	res := g.Check(prev, Sample{Location: tallinnOldTown, Timestamp: now.Add(30 * time.Second)})

	assert.True(t, res.Passed)
	require.NotNil(t, res.SpeedMps)
	assert.Zero(t, *res.SpeedMps)
	assert.Zero(t, res.DistanceMeters)
}

func TestCheck_PlausibleWalkPasses(t *testing.T) {
	g := newTestGuard()
	now := time.Now()

	// ~1.2km in 20 minutes is a stroll.
	prev := &Sample{Location: tallinnOldTown, Timestamp: now}
	res := g.Check(prev, Sample{Location: tallinnHarbour, Timestamp: now.Add(20 * time.Minute)})

	// Distance exceeds the 1000m teleport threshold even at walking pace.
	assert.True(t, res.TeleportDetected)
	assert.False(t, res.Passed)

	// Widen the teleport threshold and the same walk passes.
	relaxed := NewGuard(42.0, 5000, time.Second)
	res = relaxed.Check(prev, Sample{Location: tallinnHarbour, Timestamp: now.Add(20 * time.Minute)})
	assert.True(t, res.Passed)
	require.NotNil(t, res.SpeedMps)
	assert.Less(t, *res.SpeedMps, 2.0)
}

func TestCheck_TeleportDetected(t *testing.T) {
	g := newTestGuard()
	now := time.Now()

	// ~1.2km in 2 seconds: both teleport distance and speed are violated.
	prev := &Sample{Location: tallinnOldTown, Timestamp: now}
	res := g.Check(prev, Sample{Location: tallinnHarbour, Timestamp: now.Add(2 * time.Second)})

	assert.False(t, res.Passed)
	assert.True(t, res.TeleportDetected)
	require.NotNil(t, res.SpeedMps)
	assert.Greater(t, *res.SpeedMps, 42.0)
	assert.InDelta(t, 1200, res.DistanceMeters, 150)
}

func TestCheck_TeleportRegardlessOfElapsedTime(t *testing.T) {
	g := newTestGuard()
	now := time.Now()

	// Helsinki is ~80km away; even a week of elapsed time keeps the jump
	// above the absolute teleport threshold.
	prev := &Sample{Location: tallinnOldTown, Timestamp: now.Add(-7 * 24 * time.Hour)}
	res := g.Check(prev, Sample{Location: helsinki, Timestamp: now})

	assert.True(t, res.TeleportDetected)
	assert.False(t, res.Passed)
}

func TestCheck_MinTimeDeltaFloorsSpeed(t *testing.T) {
	g := NewGuard(42.0, 100000, 10*time.Second)
	now := time.Now()

	// Samples 1ms apart: without the floor the speed would be absurd.
	prev := &Sample{Location: tallinnOldTown, Timestamp: now}
	res := g.Check(prev, Sample{Location: tallinnHarbour, Timestamp: now.Add(time.Millisecond)})

	require.NotNil(t, res.SpeedMps)
	// ~1.2km over the 10s floor ≈ 120 m/s, not 1.2M m/s.
	assert.Less(t, *res.SpeedMps, 200.0)
	assert.False(t, res.Passed)
}
