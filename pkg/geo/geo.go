// Package geo provides the great-circle distance helper shared by the
// motion guard and the geofence factor.
package geo

import "math"

const earthRadiusMeters = 6371000.0 // WGS-84 spherical approximation

// HaversineMeters computes the great-circle distance between two WGS-84
// coordinate pairs.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(rLat1)*math.Cos(rLat2)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
