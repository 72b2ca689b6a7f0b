package usecases_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// --- Mock SessionRepository ---

type mockSessionRepo struct {
	createFn     func(ctx context.Context, s *domain.GridSession) error
	getFn        func(ctx context.Context, id string) (*domain.GridSession, error)
	saveFn       func(ctx context.Context, s *domain.GridSession, expected int64) error
	deleteFn     func(ctx context.Context, id string) error
	deleteIdleFn func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.GridSession) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) Get(ctx context.Context, id string) (*domain.GridSession, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockSessionRepo) Save(ctx context.Context, s *domain.GridSession, expected int64) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, s, expected)
	}
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteIdleFn != nil {
		return m.deleteIdleFn(ctx, before)
	}
	return 0, nil
}

// storedRepo wires the mock to a single stored session, copying on every
// read and write like a real store would.
func storedRepo(initial *domain.GridSession) (*mockSessionRepo, func() *domain.GridSession) {
	var mu sync.Mutex
	stored := clone(initial)

	repo := &mockSessionRepo{
		getFn: func(ctx context.Context, id string) (*domain.GridSession, error) {
			mu.Lock()
			defer mu.Unlock()
			if stored == nil || stored.ID != id {
				return nil, domain.ErrSessionNotFound
			}
			return clone(stored), nil
		},
		saveFn: func(ctx context.Context, s *domain.GridSession, expected int64) error {
			mu.Lock()
			defer mu.Unlock()
			if stored.Generation != expected {
				return domain.ErrConcurrentUpdate
			}
			stored = clone(s)
			return nil
		},
	}
	current := func() *domain.GridSession {
		mu.Lock()
		defer mu.Unlock()
		return clone(stored)
	}
	return repo, current
}

func clone(s *domain.GridSession) *domain.GridSession {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	var out domain.GridSession
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

// --- Mock StatsProvider ---

type mockProvider struct {
	extractFn func(ctx context.Context, points []domain.SamplePoint, roi json.RawMessage) ([]domain.PointStatistic, error)
	calls     int
}

func (m *mockProvider) ExtractStats(ctx context.Context, points []domain.SamplePoint, roi json.RawMessage) ([]domain.PointStatistic, error) {
	m.calls++
	if m.extractFn != nil {
		return m.extractFn(ctx, points, roi)
	}
	return echoStats(points), nil
}

func echoStats(points []domain.SamplePoint) []domain.PointStatistic {
	stats := make([]domain.PointStatistic, len(points))
	for i, p := range points {
		stats[i] = domain.PointStatistic{ID: p.ID, Lat: p.Lat, Lng: p.Lng, NDVIMean: 0.5, EVIMean: 0.25}
	}
	return stats
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	events []string
}

func (m *mockPublisher) PublishGridGenerated(ctx context.Context, s *domain.GridSession) error {
	m.events = append(m.events, "grid.generated")
	return nil
}

func (m *mockPublisher) PublishGridCleared(ctx context.Context, s *domain.GridSession) error {
	m.events = append(m.events, "grid.cleared")
	return nil
}

func (m *mockPublisher) PublishStatsAttached(ctx context.Context, s *domain.GridSession) error {
	m.events = append(m.events, "stats.attached")
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, io.EOF
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Mock ExtractionStarter ---

type mockStarter struct {
	startFn func(ctx context.Context, sessionID string, generation int64) (string, error)
}

func (m *mockStarter) StartExtraction(ctx context.Context, sessionID string, generation int64) (string, error) {
	if m.startFn != nil {
		return m.startFn(ctx, sessionID, generation)
	}
	return "extraction-" + sessionID, nil
}

// --- Mock ExportArchiver ---

type mockArchiver struct {
	key, contentType string
	body             []byte
}

func (m *mockArchiver) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.key, m.contentType, m.body = key, contentType, data
	return "s3://exports/" + key, nil
}

// --- Fixtures ---

// 0.01 degree square near Bilbao, roughly 90 ha.
const squareROI = `{"type":"Polygon","coordinates":[[[-2.94,43.26],[-2.93,43.26],[-2.93,43.27],[-2.94,43.27],[-2.94,43.26]]]}`

// ~110 m diamond: a 1000 m lattice only hits its bounding box corner.
const tinyDiamondROI = `{"type":"Polygon","coordinates":[[[-2.935,43.26],[-2.934,43.2605],[-2.935,43.261],[-2.936,43.2605],[-2.935,43.26]]]}`

func sessionWithGrid(points int) *domain.GridSession {
	s := &domain.GridSession{
		ID:           "s1",
		ROI:          json.RawMessage(squareROI),
		GeometryType: "Polygon",
		AreaHectares: 90,
		RasterLayer:  "ndvi",
	}
	pts := make([]domain.SamplePoint, points)
	for i := range pts {
		pts[i] = domain.SamplePoint{ID: i + 1, Lat: 43.26 + float64(i)*0.001, Lng: -2.935}
	}
	s.SetPoints(pts)
	return s
}
