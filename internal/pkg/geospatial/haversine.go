package geospatial

import "math"

const (
	earthRadiusKm = 6371.0

	// metersPerDegree is the flat-earth approximation used to turn a metric
	// grid spacing into degrees. It is kept at 111 km for compatibility with
	// grids produced by the web client.
	metersPerDegree = 111000.0
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// DegreeSteps converts a spacing in meters into latitude and longitude steps
// at the given latitude (local equirectangular approximation, degrades near the poles).
func DegreeSteps(centerLat, meters float64) (latStep, lngStep float64) {
	latStep = meters / metersPerDegree
	lngStep = meters / (metersPerDegree * math.Cos(toRad(centerLat)))
	return latStep, lngStep
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
