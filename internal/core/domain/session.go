package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// GridSession holds one ROI, the sample grid generated over it and the
// statistics later attached to that grid.
//
// Generation is incremented on every change of the point set (or of the ROI).
// Extraction requests capture it and AttachStats compares it, so a response
// that arrives after the grid was regenerated or cleared is rejected.
type GridSession struct {
	ID            string           `json:"id"`
	ROI           json.RawMessage  `json:"roi"`
	GeometryType  string           `json:"geometry_type"`
	AreaHectares  float64          `json:"area_ha"`
	SpacingMeters float64          `json:"spacing_m,omitempty"`
	RasterLayer   string           `json:"raster_layer,omitempty"`
	Generation    int64            `json:"generation"`
	Points        []SamplePoint    `json:"points"`
	Stats         []PointStatistic `json:"stats"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// SetPoints replaces the point set wholesale and drops any attached statistics.
func (s *GridSession) SetPoints(points []SamplePoint) {
	s.Points = points
	s.Stats = nil
	s.Generation++
}

// Clear empties both points and statistics.
func (s *GridSession) Clear() {
	s.Points = nil
	s.Stats = nil
	s.SpacingMeters = 0
	s.Generation++
}

// ReplaceROI swaps the region of interest. The old grid, its statistics and
// the rendered raster all belonged to the previous ROI and are discarded.
func (s *GridSession) ReplaceROI(roi json.RawMessage, geometryType string, areaHectares float64) {
	s.ROI = roi
	s.GeometryType = geometryType
	s.AreaHectares = areaHectares
	s.RasterLayer = ""
	s.Clear()
}

// RasterReady reports whether a raster layer has been rendered for the ROI.
func (s *GridSession) RasterReady() bool {
	return s.RasterLayer != ""
}

// AttachStats stores statistics produced for the given grid generation.
// The result must carry exactly one statistic per current point id; it is
// stored in point order.
func (s *GridSession) AttachStats(generation int64, stats []PointStatistic) error {
	if generation != s.Generation {
		return fmt.Errorf("%w: requested for generation %d, session is at %d",
			ErrStaleStatistics, generation, s.Generation)
	}
	if len(stats) != len(s.Points) {
		return fmt.Errorf("%w: got %d statistics for %d points",
			ErrStaleStatistics, len(stats), len(s.Points))
	}

	pos := make(map[int]int, len(s.Points))
	for i, p := range s.Points {
		pos[p.ID] = i
	}

	ordered := make([]PointStatistic, len(s.Points))
	seen := make([]bool, len(s.Points))
	for _, st := range stats {
		i, ok := pos[st.ID]
		if !ok {
			return fmt.Errorf("%w: unknown point id %d", ErrStaleStatistics, st.ID)
		}
		if seen[i] {
			return fmt.Errorf("%w: duplicate point id %d", ErrStaleStatistics, st.ID)
		}
		seen[i] = true
		ordered[i] = st
	}

	s.Stats = ordered
	return nil
}

// Density returns sample points per hectare of ROI, or 0 when the area is unknown.
func (s *GridSession) Density() float64 {
	if s.AreaHectares <= 0 {
		return 0
	}
	return float64(len(s.Points)) / s.AreaHectares
}
