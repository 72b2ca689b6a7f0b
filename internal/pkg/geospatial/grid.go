package geospatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// stepTolerance absorbs floating-point error in (max-min)/step so a lattice
// line that lands on the max edge is not dropped.
const stepTolerance = 1e-9

// maxLatticeCells caps the bounding-box lattice regardless of any point
// limit, so a tiny spacing over a large ROI cannot exhaust memory or CPU.
const maxLatticeCells = 50_000_000

// maxCellsPerPoint bounds how many lattice cells may be walked for each
// allowed point. Beyond it the ROI is rejected before any point is tested.
const maxCellsPerPoint = 16

// lattice is the regular grid over a polygon's bounding box.
type lattice struct {
	ring       orb.Ring
	bounds     domain.BoundingBox
	spacing    float64
	latStep    float64
	lngStep    float64
	rows, cols int
}

func newLattice(g orb.Geometry, spacingMeters float64) (*lattice, error) {
	if !(spacingMeters > 0) || math.IsInf(spacingMeters, 1) {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSpacing, spacingMeters)
	}

	poly, ok := g.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedGeometryType, geometryType(g))
	}
	if len(poly) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", domain.ErrInvalidGeometry)
	}
	ring := poly[0]

	b, err := ComputeBounds(ring)
	if err != nil {
		return nil, err
	}

	latStep, lngStep := DegreeSteps(b.CenterLat, spacingMeters)
	rows := lineCount(b.MinLat, b.MaxLat, latStep)
	cols := lineCount(b.MinLng, b.MaxLng, lngStep)
	if rows*cols > maxLatticeCells {
		return nil, fmt.Errorf("%w: %v m spans %.0f lattice cells, limit is %d",
			domain.ErrInvalidSpacing, spacingMeters, rows*cols, maxLatticeCells)
	}

	return &lattice{
		ring:    ring,
		bounds:  b,
		spacing: spacingMeters,
		latStep: latStep,
		lngStep: lngStep,
		rows:    int(rows),
		cols:    int(cols),
	}, nil
}

// walk calls keep for every lattice point inside the ring, in row-major
// order. With limit > 0 it fails as soon as more than limit points are
// found, and up front when the lattice is too large for that limit.
func (l *lattice) walk(limit int, keep func(lat, lng float64)) error {
	if limit > 0 && float64(l.rows)*float64(l.cols) > float64(limit)*maxCellsPerPoint {
		return fmt.Errorf("%w: %.0f m over this ROI spans %d lattice cells, too many for a limit of %d points",
			domain.ErrInvalidSpacing, l.spacing, l.rows*l.cols, limit)
	}

	found := 0
	for r := 0; r < l.rows; r++ {
		lat := l.bounds.MinLat + float64(r)*l.latStep
		for c := 0; c < l.cols; c++ {
			lng := l.bounds.MinLng + float64(c)*l.lngStep
			if !IsInsidePolygon(orb.Point{lng, lat}, l.ring) {
				continue
			}
			found++
			if limit > 0 && found > limit {
				return fmt.Errorf("%w: %.0f m yields more than %d points",
					domain.ErrInvalidSpacing, l.spacing, limit)
			}
			keep(lat, lng)
		}
	}
	return nil
}

// GenerateGrid lays a regular lattice at spacingMeters over the polygon's
// bounding box and keeps the points inside its outer ring. Points are
// numbered from 1 in row-major order (latitude ascending, then longitude
// ascending). An empty result is not an error.
//
// limit > 0 caps the number of points; exceeding it returns
// ErrInvalidSpacing without building the rest of the grid.
func GenerateGrid(g orb.Geometry, spacingMeters float64, limit int) ([]domain.SamplePoint, error) {
	l, err := newLattice(g, spacingMeters)
	if err != nil {
		return nil, err
	}

	points := []domain.SamplePoint{}
	err = l.walk(limit, func(lat, lng float64) {
		points = append(points, domain.SamplePoint{ID: len(points) + 1, Lat: lat, Lng: lng})
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// CountGrid returns how many points GenerateGrid would keep, without
// allocating them. limit behaves as in GenerateGrid.
func CountGrid(g orb.Geometry, spacingMeters float64, limit int) (int, error) {
	l, err := newLattice(g, spacingMeters)
	if err != nil {
		return 0, err
	}
	n := 0
	if err := l.walk(limit, func(float64, float64) { n++ }); err != nil {
		return 0, err
	}
	return n, nil
}

// lineCount returns how many lattice lines lo + i*step fall in [lo, hi].
// It is a float so huge lattices are caught before converting to int.
func lineCount(lo, hi, step float64) float64 {
	if math.IsInf(step, 0) || math.IsNaN(step) || step <= 0 {
		return 1
	}
	return math.Floor((hi-lo)/step+stepTolerance) + 1
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}
