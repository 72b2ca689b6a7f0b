package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/samirrijal/geosampler/internal/core/domain"
	"github.com/samirrijal/geosampler/internal/core/usecases"
)

func TestExtractionService_Extract(t *testing.T) {
	repo, current := storedRepo(sessionWithGrid(3))
	provider := &mockProvider{}
	pub := &mockPublisher{}
	svc := usecases.NewExtractionService(repo, provider, pub, nil, 0)

	s, err := svc.Extract(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Stats) != 3 {
		t.Fatalf("expected 3 stats, got %d", len(s.Stats))
	}
	if len(current().Stats) != 3 {
		t.Error("stats were not stored")
	}
	if len(pub.events) != 1 || pub.events[0] != "stats.attached" {
		t.Errorf("expected stats.attached event, got %v", pub.events)
	}
}

func TestExtractionService_Extract_RequiresRaster(t *testing.T) {
	initial := sessionWithGrid(3)
	initial.RasterLayer = ""
	repo, _ := storedRepo(initial)
	provider := &mockProvider{}
	svc := usecases.NewExtractionService(repo, provider, nil, nil, 0)

	_, err := svc.Extract(context.Background(), "s1")
	if !errors.Is(err, domain.ErrNoActiveRaster) {
		t.Fatalf("expected ErrNoActiveRaster, got %v", err)
	}
	if provider.calls != 0 {
		t.Error("provider must not be called without a raster")
	}
}

func TestExtractionService_Extract_EmptyPoints(t *testing.T) {
	repo, _ := storedRepo(sessionWithGrid(0))
	provider := &mockProvider{}
	svc := usecases.NewExtractionService(repo, provider, nil, nil, 0)

	_, err := svc.Extract(context.Background(), "s1")
	if !errors.Is(err, domain.ErrNoPoints) {
		t.Fatalf("expected ErrNoPoints, got %v", err)
	}
	if provider.calls != 0 {
		t.Error("provider must not be called without points")
	}
}

func TestExtractionService_Extract_ProviderFailureKeepsStats(t *testing.T) {
	initial := sessionWithGrid(2)
	previous := echoStats(initial.Points)
	initial.Stats = previous
	repo, current := storedRepo(initial)
	provider := &mockProvider{
		extractFn: func(ctx context.Context, points []domain.SamplePoint, roi json.RawMessage) ([]domain.PointStatistic, error) {
			return nil, fmt.Errorf("%w: HTTP 500: boom", domain.ErrExtractionFailed)
		},
	}
	svc := usecases.NewExtractionService(repo, provider, nil, nil, 0)

	_, err := svc.Extract(context.Background(), "s1")
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if got := current().Stats; len(got) != 2 || got[0] != previous[0] {
		t.Errorf("stored stats must be untouched, got %+v", got)
	}
}

func TestExtractionService_Extract_GridRegeneratedInFlight(t *testing.T) {
	repo, current := storedRepo(sessionWithGrid(3))
	sessions := usecases.NewSessionService(repo, nil, 0)
	provider := &mockProvider{
		extractFn: func(ctx context.Context, points []domain.SamplePoint, roi json.RawMessage) ([]domain.PointStatistic, error) {
			// the user regenerates the grid while the request is in flight
			if _, err := sessions.GenerateGrid(ctx, "s1", 100, 0); err != nil {
				t.Fatalf("regenerate: %v", err)
			}
			return echoStats(points), nil
		},
	}
	svc := usecases.NewExtractionService(repo, provider, nil, nil, 0)

	_, err := svc.Extract(context.Background(), "s1")
	if !errors.Is(err, domain.ErrStaleStatistics) {
		t.Fatalf("expected ErrStaleStatistics, got %v", err)
	}
	if len(current().Stats) != 0 {
		t.Error("stale stats must not be attached to the new grid")
	}
}

func TestExtractionService_Attach_ConcurrentSaveIsStale(t *testing.T) {
	initial := sessionWithGrid(2)
	repo := &mockSessionRepo{
		getFn: func(ctx context.Context, id string) (*domain.GridSession, error) {
			return clone(initial), nil
		},
		saveFn: func(ctx context.Context, s *domain.GridSession, expected int64) error {
			return domain.ErrConcurrentUpdate
		},
	}
	svc := usecases.NewExtractionService(repo, &mockProvider{}, nil, nil, 0)

	_, err := svc.Attach(context.Background(), "s1", initial.Generation, echoStats(initial.Points))
	if !errors.Is(err, domain.ErrStaleStatistics) {
		t.Errorf("expected ErrStaleStatistics, got %v", err)
	}
	if !errors.Is(err, domain.ErrConcurrentUpdate) {
		t.Errorf("expected the repository error to stay visible, got %v", err)
	}
}

func TestExtractionService_Attach_WrongGeneration(t *testing.T) {
	initial := sessionWithGrid(2)
	repo, _ := storedRepo(initial)
	svc := usecases.NewExtractionService(repo, &mockProvider{}, nil, nil, 0)

	_, err := svc.Attach(context.Background(), "s1", initial.Generation-1, echoStats(initial.Points))
	if !errors.Is(err, domain.ErrStaleStatistics) {
		t.Errorf("expected ErrStaleStatistics, got %v", err)
	}
}

func TestExtractionService_Fetch_Cached(t *testing.T) {
	provider := &mockProvider{}
	cache := newMockCache()
	svc := usecases.NewExtractionService(&mockSessionRepo{}, provider, nil, cache, 600)

	points := sessionWithGrid(2).Points
	roi := json.RawMessage(squareROI)
	first, err := svc.Fetch(context.Background(), points, roi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Fetch(context.Background(), points, roi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("expected one provider call, got %d", provider.calls)
	}
	if len(second) != len(first) || second[1] != first[1] {
		t.Errorf("cached stats differ: %+v vs %+v", second, first)
	}

	// a different grid is a different request
	if _, err := svc.Fetch(context.Background(), points[:1], roi); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected a second provider call, got %d", provider.calls)
	}
}

func TestExtractionService_Fetch_FailureNotCached(t *testing.T) {
	provider := &mockProvider{
		extractFn: func(ctx context.Context, points []domain.SamplePoint, roi json.RawMessage) ([]domain.PointStatistic, error) {
			return nil, domain.ErrExtractionFailed
		},
	}
	cache := newMockCache()
	svc := usecases.NewExtractionService(&mockSessionRepo{}, provider, nil, cache, 600)

	_, _ = svc.Fetch(context.Background(), sessionWithGrid(1).Points, json.RawMessage(squareROI))
	if len(cache.data) != 0 {
		t.Error("failures must not be cached")
	}
}

func TestExtractionService_StartAsync(t *testing.T) {
	initial := sessionWithGrid(2)
	repo, _ := storedRepo(initial)

	svc := usecases.NewExtractionService(repo, &mockProvider{}, nil, nil, 0)
	if _, err := svc.StartAsync(context.Background(), "s1"); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without a starter, got %v", err)
	}

	var gotGen int64 = -1
	svc.WithStarter(&mockStarter{
		startFn: func(ctx context.Context, sessionID string, generation int64) (string, error) {
			gotGen = generation
			return "wf-1", nil
		},
	})
	id, err := svc.StartAsync(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "wf-1" {
		t.Errorf("expected wf-1, got %s", id)
	}
	if gotGen != initial.Generation {
		t.Errorf("expected generation %d captured, got %d", initial.Generation, gotGen)
	}
}
