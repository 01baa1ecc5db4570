package geo

import (
	"math"

	"github.com/tyreaid/roadaid/core/model"
)

// earthRadiusKm matches the constant used by the mobile clients so that both
// sides agree on which requests fall inside a service radius.
const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(a, b model.Location) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// Within reports whether point lies inside the circle of radiusKm around
// center. A point exactly at radius distance counts as inside; the boundary
// rule must never differ between the index and the visibility filter.
func Within(center model.Location, radiusKm float64, point model.Location) bool {
	return DistanceKm(center, point) <= radiusKm
}
