package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// AreaHectares returns the geodesic area of a polygonal geometry in hectares.
func AreaHectares(g orb.Geometry) float64 {
	return geo.Area(g) / 10000
}

// EstimatePoints approximates how many points a grid at spacingMeters yields
// over areaHectares, assuming one point per spacing² cell. Never less than 1.
func EstimatePoints(areaHectares, spacingMeters float64) int {
	if spacingMeters <= 0 {
		return 1
	}
	cellHectares := (spacingMeters / 100) * (spacingMeters / 100)
	n := int(areaHectares / cellHectares)
	if n < 1 {
		return 1
	}
	return n
}
