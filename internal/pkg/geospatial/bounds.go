package geospatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// ComputeBounds returns the bounding box of a ring of (lng, lat) vertices.
func ComputeBounds(ring orb.Ring) (domain.BoundingBox, error) {
	if len(ring) < 3 {
		return domain.BoundingBox{}, fmt.Errorf("%w: ring has %d vertices, need at least 3",
			domain.ErrInvalidGeometry, len(ring))
	}

	b := domain.BoundingBox{
		MinLat: math.Inf(1), MaxLat: math.Inf(-1),
		MinLng: math.Inf(1), MaxLng: math.Inf(-1),
	}
	for _, v := range ring {
		lng, lat := v.Lon(), v.Lat()
		b.MinLat = math.Min(b.MinLat, lat)
		b.MaxLat = math.Max(b.MaxLat, lat)
		b.MinLng = math.Min(b.MinLng, lng)
		b.MaxLng = math.Max(b.MaxLng, lng)
	}
	b.CenterLat = (b.MinLat + b.MaxLat) / 2
	b.CenterLng = (b.MinLng + b.MaxLng) / 2

	return b, nil
}
