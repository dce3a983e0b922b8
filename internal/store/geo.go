package store

import "math"

const earthRadiusM = 6371000.0

// distanceM returns the great-circle distance in meters between two
// (longitude, latitude) points. The memory store uses it to mirror the
// metric-radius semantics of the Mongo 2dsphere queries.
func distanceM(lng1, lat1, lng2, lat2 float64) float64 {
	rad := math.Pi / 180.0
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
