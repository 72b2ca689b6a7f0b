package ports

import (
	"context"
	"encoding/json"
	"io"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// StatsProvider retrieves per-point statistics from the remote raster service.
type StatsProvider interface {
	ExtractStats(ctx context.Context, points []domain.SamplePoint, roi json.RawMessage) ([]domain.PointStatistic, error)
}

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishGridGenerated(ctx context.Context, s *domain.GridSession) error
	PublishGridCleared(ctx context.Context, s *domain.GridSession) error
	PublishStatsAttached(ctx context.Context, s *domain.GridSession) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ExportArchiver stores exported files and returns their location.
type ExportArchiver interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// ExtractionStarter launches an asynchronous extraction for a captured grid generation.
type ExtractionStarter interface {
	StartExtraction(ctx context.Context, sessionID string, generation int64) (string, error)
}
