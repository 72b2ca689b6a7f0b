package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// SessionRepo implements ports.SessionRepository with pgx. Points and
// statistics are stored as JSONB next to the ROI.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

const sessionColumns = `id, roi, geometry_type, area_ha, spacing_m, raster_layer,
	generation, points, stats, created_at, updated_at`

// Create inserts a new session.
func (r *SessionRepo) Create(ctx context.Context, s *domain.GridSession) error {
	points, stats, err := encodeGrid(s)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO grid_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.ID, []byte(s.ROI), s.GeometryType, s.AreaHectares, s.SpacingMeters, s.RasterLayer,
		s.Generation, points, stats, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get returns a session by id.
func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.GridSession, error) {
	var (
		s             domain.GridSession
		roi           []byte
		points, stats []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM grid_sessions WHERE id = $1
	`, id).Scan(
		&s.ID, &roi, &s.GeometryType, &s.AreaHectares, &s.SpacingMeters, &s.RasterLayer,
		&s.Generation, &points, &stats, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	s.ROI = json.RawMessage(roi)
	if err := json.Unmarshal(points, &s.Points); err != nil {
		return nil, fmt.Errorf("decode points: %w", err)
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &s.Stats); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
	}
	return &s, nil
}

// Save overwrites the session if its stored generation is still expectedGeneration.
func (r *SessionRepo) Save(ctx context.Context, s *domain.GridSession, expectedGeneration int64) error {
	points, stats, err := encodeGrid(s)
	if err != nil {
		return err
	}
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE grid_sessions
		SET roi = $2, geometry_type = $3, area_ha = $4, spacing_m = $5, raster_layer = $6,
		    generation = $7, points = $8, stats = $9, updated_at = $10
		WHERE id = $1 AND generation = $11
	`, s.ID, []byte(s.ROI), s.GeometryType, s.AreaHectares, s.SpacingMeters, s.RasterLayer,
		s.Generation, points, stats, s.UpdatedAt, expectedGeneration)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM grid_sessions WHERE id = $1)`, s.ID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return fmt.Errorf("session %s: %w", s.ID, domain.ErrSessionNotFound)
	}
	return fmt.Errorf("session %s expected at generation %d: %w", s.ID, expectedGeneration, domain.ErrConcurrentUpdate)
}

// Delete removes a session.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM grid_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return nil
}

// DeleteIdle removes sessions last updated before the cutoff.
func (r *SessionRepo) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM grid_sessions WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// encodeGrid returns the JSONB payloads; stats is nil (SQL NULL) when none are attached.
func encodeGrid(s *domain.GridSession) (points, stats []byte, err error) {
	pts := s.Points
	if pts == nil {
		pts = []domain.SamplePoint{}
	}
	if points, err = json.Marshal(pts); err != nil {
		return nil, nil, fmt.Errorf("encode points: %w", err)
	}
	if len(s.Stats) > 0 {
		if stats, err = json.Marshal(s.Stats); err != nil {
			return nil, nil, fmt.Errorf("encode stats: %w", err)
		}
	}
	return points, stats, nil
}
