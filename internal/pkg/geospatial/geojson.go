package geospatial

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// ParseGeometry reads an ROI from GeoJSON. It accepts a bare geometry, a
// Feature, or a FeatureCollection (whose first feature is used), and only
// areal geometries (Polygon, MultiPolygon).
func ParseGeometry(raw []byte) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, err)
	}

	var g orb.Geometry
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, err)
		}
		if len(fc.Features) == 0 {
			return nil, fmt.Errorf("%w: empty feature collection", domain.ErrInvalidGeometry)
		}
		g = fc.Features[0].Geometry
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, err)
		}
		g = f.Geometry
	case "":
		return nil, fmt.Errorf("%w: missing type", domain.ErrInvalidGeometry)
	default:
		geom, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, err)
		}
		g = geom.Geometry()
	}

	if g == nil {
		return nil, fmt.Errorf("%w: no geometry", domain.ErrInvalidGeometry)
	}
	if err := ValidateROI(g); err != nil {
		return nil, err
	}
	return g, nil
}

// ValidateROI checks that g is a Polygon or MultiPolygon whose outer rings
// have at least three distinct, finite WGS 84 vertices.
func ValidateROI(g orb.Geometry) error {
	switch v := g.(type) {
	case orb.Polygon:
		return validatePolygon(v)
	case orb.MultiPolygon:
		if len(v) == 0 {
			return fmt.Errorf("%w: empty multipolygon", domain.ErrInvalidGeometry)
		}
		for _, p := range v {
			if err := validatePolygon(p); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s is not an area", domain.ErrUnsupportedGeometryType, geometryType(g))
	}
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: polygon has no rings", domain.ErrInvalidGeometry)
	}

	distinct := make(map[orb.Point]struct{}, len(p[0]))
	for _, v := range p[0] {
		lng, lat := v.Lon(), v.Lat()
		if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
			return fmt.Errorf("%w: non-finite coordinate", domain.ErrInvalidGeometry)
		}
		if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
			return fmt.Errorf("%w: coordinate (%v, %v) out of range", domain.ErrInvalidGeometry, lng, lat)
		}
		distinct[v] = struct{}{}
	}
	if len(distinct) < 3 {
		return fmt.Errorf("%w: outer ring has %d distinct vertices, need at least 3",
			domain.ErrInvalidGeometry, len(distinct))
	}
	return nil
}

// MarshalGeometry encodes g as a bare GeoJSON geometry object.
func MarshalGeometry(g orb.Geometry) (json.RawMessage, error) {
	return geojson.NewGeometry(g).MarshalJSON()
}
