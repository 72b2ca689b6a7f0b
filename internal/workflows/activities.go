package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/geosampler/internal/core/domain"
	"github.com/samirrijal/geosampler/internal/core/ports"
	"github.com/samirrijal/geosampler/internal/core/usecases"
)

// Application error types reported by the activities.
const (
	ErrTypeStale            = "StaleStatistics"
	ErrTypeNotFound         = "SessionNotFound"
	ErrTypePrecondition     = "Precondition"
	ErrTypeExtractionFailed = "ExtractionFailed"
)

// ExtractionActivities holds the activity implementations for the extraction workflow.
type ExtractionActivities struct {
	Sessions   ports.SessionRepository
	Extraction *usecases.ExtractionService
}

// ExtractStats requests statistics for the session's grid if it is still at generation.
func (a *ExtractionActivities) ExtractStats(ctx context.Context, sessionID string, generation int64) ([]domain.PointStatistic, error) {
	session, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, classify(err)
	}
	if session.Generation != generation {
		return nil, classify(fmt.Errorf("%w: grid moved to generation %d", domain.ErrStaleStatistics, session.Generation))
	}

	stats, err := a.Extraction.Fetch(ctx, session.Points, session.ROI)
	if err != nil {
		return nil, classify(err)
	}
	return stats, nil
}

// AttachStats stores the statistics and returns how many were attached.
func (a *ExtractionActivities) AttachStats(ctx context.Context, sessionID string, generation int64, stats []domain.PointStatistic) (int, error) {
	session, err := a.Extraction.Attach(ctx, sessionID, generation, stats)
	if err != nil {
		return 0, classify(err)
	}
	return len(session.Stats), nil
}

// classify turns domain failures into non-retryable application errors;
// anything else (e.g. a database outage) stays retryable.
func classify(err error) error {
	var errType string
	switch {
	case errors.Is(err, domain.ErrStaleStatistics), errors.Is(err, domain.ErrConcurrentUpdate):
		errType = ErrTypeStale
	case errors.Is(err, domain.ErrSessionNotFound):
		errType = ErrTypeNotFound
	case errors.Is(err, domain.ErrNoPoints), errors.Is(err, domain.ErrNoActiveRaster):
		errType = ErrTypePrecondition
	case errors.Is(err, domain.ErrExtractionFailed):
		errType = ErrTypeExtractionFailed
	default:
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}
