package resolver

import (
	"math"

	"github.com/Chedly25/newTrip/internal/domain"
)

const earthRadiusM = 6371000

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(a, b domain.Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// proximity maps a distance to [0,1]: 1 at zero distance, 0 at radius and beyond.
func proximity(distM, radiusM float64) float64 {
	if radiusM <= 0 {
		return 0
	}
	p := 1 - distM/radiusM
	if p < 0 {
		return 0
	}
	return p
}
