package geospatial

import "github.com/paulmach/orb"

// IsInsidePolygon reports whether p lies inside ring using the even-odd rule:
// a ray cast from p towards +x toggles membership at every edge whose y-span
// straddles p. The ring is treated as closed (last vertex joins the first)
// whether or not the closing vertex is repeated.
//
// Membership of points exactly on an edge is implementation-defined.
func IsInsidePolygon(p orb.Point, ring orb.Ring) bool {
	x, y := p[0], p[1]
	inside := false

	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}

	return inside
}
