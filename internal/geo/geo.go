package geo

import (
	"math"

	"github.com/example/partner-dispatch/internal/models"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance in kilometers
// between two coordinates. Symmetric and deterministic.
func DistanceKm(a, b models.Coord) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}
