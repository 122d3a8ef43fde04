// Package geo provides great-circle distance and circular geofence checks.
package geo

import (
	"math"

	"github.com/opensource-finance/magpie/internal/domain"
)

// EarthRadiusMeters is the mean radius of the sphere used for Haversine.
const EarthRadiusMeters = 6371000.0

// DistanceMeters returns the Haversine distance between a and b in meters.
// Non-finite inputs yield NaN.
func DistanceMeters(a, b domain.Coordinates) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// IsWithinFence reports whether point lies inside fence. The boundary counts
// as inside.
func IsWithinFence(point domain.Coordinates, fence *domain.Geofence) bool {
	return DistanceMeters(point, fence.Center()) <= fence.RadiusMeters
}

// FirstContaining returns the first fence that contains point, or nil.
func FirstContaining(point domain.Coordinates, fences []*domain.Geofence) *domain.Geofence {
	for _, f := range fences {
		if f != nil && IsWithinFence(point, f) {
			return f
		}
	}
	return nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
