package ports

import (
	"context"
	"time"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// SessionRepository persists grid sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.GridSession) error
	// Get returns domain.ErrSessionNotFound when the id is unknown.
	Get(ctx context.Context, id string) (*domain.GridSession, error)
	// Save stores s only if the stored generation still equals expectedGeneration,
	// otherwise it returns domain.ErrConcurrentUpdate.
	Save(ctx context.Context, s *domain.GridSession, expectedGeneration int64) error
	Delete(ctx context.Context, id string) error
	// DeleteIdle removes sessions not updated since before and reports how many.
	DeleteIdle(ctx context.Context, before time.Time) (int64, error)
}
