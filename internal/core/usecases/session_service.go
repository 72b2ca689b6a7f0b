package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geosampler/internal/core/domain"
	"github.com/samirrijal/geosampler/internal/core/ports"
	"github.com/samirrijal/geosampler/internal/pkg/geospatial"
	"github.com/samirrijal/geosampler/internal/pkg/metrics"
)

// SessionService owns the lifecycle of grid sessions: the ROI, the raster
// signal and the sample grid.
type SessionService struct {
	sessions  ports.SessionRepository
	publisher ports.EventPublisher
	maxPoints int
	now       func() time.Time
}

// NewSessionService creates a new SessionService. publisher may be nil;
// maxPoints <= 0 disables the grid size limit.
func NewSessionService(sessions ports.SessionRepository, publisher ports.EventPublisher, maxPoints int) *SessionService {
	return &SessionService{
		sessions:  sessions,
		publisher: publisher,
		maxPoints: maxPoints,
		now:       time.Now,
	}
}

// Create parses an ROI and stores a new session without a grid.
func (s *SessionService) Create(ctx context.Context, roi []byte) (*domain.GridSession, error) {
	g, err := geospatial.ParseGeometry(roi)
	if err != nil {
		return nil, err
	}
	normalized, err := geospatial.MarshalGeometry(g)
	if err != nil {
		return nil, fmt.Errorf("encode roi: %w", err)
	}

	now := s.now()
	session := &domain.GridSession{
		ID:           uuid.NewString(),
		ROI:          normalized,
		GeometryType: g.GeoJSONType(),
		AreaHectares: geospatial.AreaHectares(g),
		Points:       []domain.SamplePoint{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.GridSession, error) {
	return s.sessions.Get(ctx, id)
}

// ReplaceROI swaps the region of interest, discarding grid, statistics and raster.
func (s *SessionService) ReplaceROI(ctx context.Context, id string, roi []byte) (*domain.GridSession, error) {
	g, err := geospatial.ParseGeometry(roi)
	if err != nil {
		return nil, err
	}
	normalized, err := geospatial.MarshalGeometry(g)
	if err != nil {
		return nil, fmt.Errorf("encode roi: %w", err)
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := session.Generation
	session.ReplaceROI(normalized, g.GeoJSONType(), geospatial.AreaHectares(g))
	session.UpdatedAt = s.now()

	if err := s.sessions.Save(ctx, session, expected); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	publishEvent(ctx, s.publisher, eventGridCleared, session)
	return session, nil
}

// Delete discards the ROI and everything derived from it.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// MarkRasterReady records that the map collaborator finished rendering a
// raster layer for the session's ROI.
func (s *SessionService) MarkRasterReady(ctx context.Context, id, layer string) (*domain.GridSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session.RasterLayer = layer
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session, session.Generation); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// GenerateGrid samples the ROI at spacing meters and replaces the session's
// points. When nothing falls inside the polygon and fallback is a different
// positive spacing, it retries once at fallback. A grid that stays empty is
// stored as such; callers decide how to report it. Either pass stops as soon
// as it would exceed the service's point limit.
func (s *SessionService) GenerateGrid(ctx context.Context, id string, spacing, fallback float64) (*domain.GridSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := geospatial.ParseGeometry(session.ROI)
	if err != nil {
		return nil, err
	}

	points, err := geospatial.GenerateGrid(g, spacing, s.maxPoints)
	if err != nil {
		return nil, err
	}
	used, outcome := spacing, "ok"
	if len(points) == 0 && fallback > 0 && fallback != spacing {
		retry, err := geospatial.GenerateGrid(g, fallback, s.maxPoints)
		if err != nil {
			return nil, err
		}
		points, used, outcome = retry, fallback, "fallback"
	}
	if len(points) == 0 {
		outcome = "empty"
	}

	expected := session.Generation
	session.SetPoints(points)
	session.SpacingMeters = used
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session, expected); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	metrics.GridsGenerated.WithLabelValues(outcome).Inc()
	metrics.GridPoints.Observe(float64(len(points)))
	publishEvent(ctx, s.publisher, eventGridGenerated, session)
	return session, nil
}

// ClearGrid removes points and statistics.
func (s *SessionService) ClearGrid(ctx context.Context, id string) (*domain.GridSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := session.Generation
	session.Clear()
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session, expected); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	publishEvent(ctx, s.publisher, eventGridCleared, session)
	return session, nil
}

// EstimateGrid compares the area-based estimate for spacing with the size of
// the grid that spacing would actually produce. Nothing is stored, and a
// spacing that would exceed the point limit is rejected like GenerateGrid.
func (s *SessionService) EstimateGrid(ctx context.Context, id string, spacing float64) (domain.GridEstimate, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domain.GridEstimate{}, err
	}
	g, err := geospatial.ParseGeometry(session.ROI)
	if err != nil {
		return domain.GridEstimate{}, err
	}
	actual, err := geospatial.CountGrid(g, spacing, s.maxPoints)
	if err != nil {
		return domain.GridEstimate{}, err
	}
	return domain.GridEstimate{
		SpacingMeters: spacing,
		AreaHectares:  session.AreaHectares,
		Estimated:     geospatial.EstimatePoints(session.AreaHectares, spacing),
		Actual:        actual,
	}, nil
}

// NearestPoint finds the sample point closest to (lat, lng).
func (s *SessionService) NearestPoint(ctx context.Context, id string, lat, lng float64) (*domain.PointMatch, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(session.Points) == 0 {
		return nil, fmt.Errorf("nearest point: %w", domain.ErrNoPoints)
	}

	best, bestDist := 0, math.Inf(1)
	for i, p := range session.Points {
		if d := geospatial.Haversine(lat, lng, p.Lat, p.Lng); d < bestDist {
			best, bestDist = i, d
		}
	}

	match := &domain.PointMatch{Point: session.Points[best], DistanceMeters: bestDist}
	if len(session.Stats) == len(session.Points) {
		st := session.Stats[best]
		match.Stat = &st
	}
	return match, nil
}

// PurgeIdle deletes sessions that have not been updated for ttl.
func (s *SessionService) PurgeIdle(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, errors.New("purge idle: ttl must be positive")
	}
	n, err := s.sessions.DeleteIdle(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("purge idle sessions: %w", err)
	}
	metrics.SessionsPurged.Add(float64(n))
	return n, nil
}

const (
	eventGridGenerated = "grid.generated"
	eventGridCleared   = "grid.cleared"
	eventStatsAttached = "stats.attached"
)

// publishEvent is best-effort; the session is already stored when it runs.
func publishEvent(ctx context.Context, p ports.EventPublisher, event string, session *domain.GridSession) {
	if p == nil {
		return
	}
	var err error
	switch event {
	case eventGridGenerated:
		err = p.PublishGridGenerated(ctx, session)
	case eventGridCleared:
		err = p.PublishGridCleared(ctx, session)
	case eventStatsAttached:
		err = p.PublishStatsAttached(ctx, session)
	}
	if err != nil {
		slog.Warn("publish session event failed", "event", event, "session", session.ID, "error", err)
	}
}
