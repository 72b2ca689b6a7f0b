package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/geosampler/internal/core/domain"
	"github.com/samirrijal/geosampler/internal/core/ports"
	"github.com/samirrijal/geosampler/internal/pkg/metrics"
)

// ExtractionService requests statistics for a session's grid and attaches
// them, refusing results computed for a grid that has since changed.
type ExtractionService struct {
	sessions  ports.SessionRepository
	provider  ports.StatsProvider
	publisher ports.EventPublisher
	cache     ports.CacheService
	cacheTTL  int
	starter   ports.ExtractionStarter
}

// NewExtractionService creates a new ExtractionService. publisher and cache
// may be nil; cacheTTL is in seconds and <= 0 disables caching.
func NewExtractionService(
	sessions ports.SessionRepository,
	provider ports.StatsProvider,
	publisher ports.EventPublisher,
	cache ports.CacheService,
	cacheTTL int,
) *ExtractionService {
	return &ExtractionService{
		sessions:  sessions,
		provider:  provider,
		publisher: publisher,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

// WithStarter enables StartAsync.
func (s *ExtractionService) WithStarter(starter ports.ExtractionStarter) *ExtractionService {
	s.starter = starter
	return s
}

// Extract fetches statistics for the current grid and attaches them. If the
// grid changes while the request is in flight the result is discarded with
// domain.ErrStaleStatistics. Stored statistics are untouched on any failure.
func (s *ExtractionService) Extract(ctx context.Context, sessionID string) (*domain.GridSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkExtractable(session); err != nil {
		return nil, err
	}

	generation := session.Generation
	stats, err := s.Fetch(ctx, session.Points, session.ROI)
	if err != nil {
		return nil, err
	}
	return s.Attach(ctx, sessionID, generation, stats)
}

// Fetch calls the statistics provider, serving repeated requests for the
// same grid and ROI from the cache.
func (s *ExtractionService) Fetch(ctx context.Context, points []domain.SamplePoint, roi json.RawMessage) ([]domain.PointStatistic, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("extract stats: %w", domain.ErrNoPoints)
	}

	useCache := s.cache != nil && s.cacheTTL > 0
	var cacheKey string
	if useCache {
		cacheKey = statsCacheKey(points, roi)
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var stats []domain.PointStatistic
			if err := json.Unmarshal(data, &stats); err == nil {
				metrics.CacheHits.WithLabelValues("extract_stats").Inc()
				return stats, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("extract_stats").Inc()
	}

	start := time.Now()
	stats, err := s.provider.ExtractStats(ctx, points, roi)
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Extractions.WithLabelValues("failed").Inc()
		return nil, err
	}

	if useCache {
		if data, err := json.Marshal(stats); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return stats, nil
}

// Attach stores statistics computed for the given grid generation.
func (s *ExtractionService) Attach(ctx context.Context, sessionID string, generation int64, stats []domain.PointStatistic) (*domain.GridSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	expected := session.Generation
	if err := session.AttachStats(generation, stats); err != nil {
		metrics.Extractions.WithLabelValues("stale").Inc()
		return nil, err
	}
	session.UpdatedAt = time.Now()

	if err := s.sessions.Save(ctx, session, expected); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			metrics.Extractions.WithLabelValues("stale").Inc()
			return nil, fmt.Errorf("%w: %w", domain.ErrStaleStatistics, err)
		}
		return nil, fmt.Errorf("save session: %w", err)
	}

	metrics.Extractions.WithLabelValues("ok").Inc()
	publishEvent(ctx, s.publisher, eventStatsAttached, session)
	return session, nil
}

// StartAsync hands the extraction to the workflow engine and returns the
// workflow id. The current generation is captured now.
func (s *ExtractionService) StartAsync(ctx context.Context, sessionID string) (string, error) {
	if s.starter == nil {
		return "", fmt.Errorf("async extraction: %w", domain.ErrNotConfigured)
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if err := checkExtractable(session); err != nil {
		return "", err
	}

	id, err := s.starter.StartExtraction(ctx, sessionID, session.Generation)
	if err != nil {
		return "", fmt.Errorf("start extraction workflow: %w", err)
	}
	return id, nil
}

func checkExtractable(session *domain.GridSession) error {
	if !session.RasterReady() {
		return fmt.Errorf("extract stats: %w", domain.ErrNoActiveRaster)
	}
	if len(session.Points) == 0 {
		return fmt.Errorf("extract stats: %w", domain.ErrNoPoints)
	}
	return nil
}

func statsCacheKey(points []domain.SamplePoint, roi json.RawMessage) string {
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(points)
	h.Write(roi)
	return "stats:extract:" + hex.EncodeToString(h.Sum(nil))
}
