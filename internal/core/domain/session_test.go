package domain_test

import (
	"errors"
	"testing"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

func threePoints() []domain.SamplePoint {
	return []domain.SamplePoint{
		{ID: 1, Lat: 0.001, Lng: 0.001},
		{ID: 2, Lat: 0.001, Lng: 0.002},
		{ID: 3, Lat: 0.002, Lng: 0.001},
	}
}

func TestGridSession_SetPointsClearsStats(t *testing.T) {
	s := &domain.GridSession{}
	s.SetPoints(threePoints())
	gen := s.Generation

	if err := s.AttachStats(gen, []domain.PointStatistic{{ID: 1}, {ID: 2}, {ID: 3}}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	s.SetPoints(threePoints())

	if len(s.Stats) != 0 {
		t.Errorf("expected stats cleared, got %d", len(s.Stats))
	}
	if s.Generation != gen+1 {
		t.Errorf("expected generation %d, got %d", gen+1, s.Generation)
	}
}

func TestGridSession_AttachStats_StaleAfterRegenerate(t *testing.T) {
	s := &domain.GridSession{}
	s.SetPoints(threePoints())
	requested := s.Generation

	s.SetPoints(threePoints())

	err := s.AttachStats(requested, []domain.PointStatistic{{ID: 1}, {ID: 2}, {ID: 3}})
	if !errors.Is(err, domain.ErrStaleStatistics) {
		t.Fatalf("expected ErrStaleStatistics, got %v", err)
	}
	if len(s.Stats) != 0 {
		t.Error("stale statistics must not be attached")
	}
}

func TestGridSession_AttachStats_StaleAfterClear(t *testing.T) {
	s := &domain.GridSession{}
	s.SetPoints(threePoints())
	requested := s.Generation
	s.Clear()

	if err := s.AttachStats(requested, nil); !errors.Is(err, domain.ErrStaleStatistics) {
		t.Fatalf("expected ErrStaleStatistics, got %v", err)
	}
}

func TestGridSession_AttachStats_OrdersByPoint(t *testing.T) {
	s := &domain.GridSession{}
	s.SetPoints(threePoints())

	err := s.AttachStats(s.Generation, []domain.PointStatistic{
		{ID: 3, NDVIMean: 0.3},
		{ID: 1, NDVIMean: 0.1},
		{ID: 2, NDVIMean: 0.2},
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	for i, st := range s.Stats {
		if st.ID != i+1 {
			t.Errorf("stats[%d]: expected id %d, got %d", i, i+1, st.ID)
		}
	}
}

func TestGridSession_AttachStats_RejectsMismatchedIDs(t *testing.T) {
	cases := map[string][]domain.PointStatistic{
		"unknown id": {{ID: 1}, {ID: 2}, {ID: 9}},
		"duplicate":  {{ID: 1}, {ID: 1}, {ID: 2}},
		"missing":    {{ID: 1}, {ID: 2}},
	}
	for name, stats := range cases {
		t.Run(name, func(t *testing.T) {
			s := &domain.GridSession{}
			s.SetPoints(threePoints())
			if err := s.AttachStats(s.Generation, stats); !errors.Is(err, domain.ErrStaleStatistics) {
				t.Fatalf("expected ErrStaleStatistics, got %v", err)
			}
			if s.Stats != nil {
				t.Error("stats must stay untouched on failure")
			}
		})
	}
}

func TestGridSession_ReplaceROIResetsRaster(t *testing.T) {
	s := &domain.GridSession{RasterLayer: "ndvi"}
	s.SetPoints(threePoints())
	s.ReplaceROI([]byte(`{"type":"Polygon","coordinates":[]}`), "Polygon", 12)

	if s.RasterReady() {
		t.Error("raster must be reset with the ROI")
	}
	if len(s.Points) != 0 {
		t.Error("points must be cleared with the ROI")
	}
}

func TestGridSession_Density(t *testing.T) {
	s := &domain.GridSession{AreaHectares: 2}
	s.SetPoints(threePoints())
	if got := s.Density(); got != 1.5 {
		t.Errorf("expected density 1.5, got %v", got)
	}

	s.AreaHectares = 0
	if got := s.Density(); got != 0 {
		t.Errorf("expected density 0 without area, got %v", got)
	}
}
