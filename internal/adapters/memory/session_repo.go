// Package memory keeps sessions in process memory. It backs the API when no
// database is configured and is safe for concurrent use.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// SessionRepo implements ports.SessionRepository on a map.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*domain.GridSession
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]*domain.GridSession)}
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.GridSession) error {
	c, err := clone(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	r.sessions[s.ID] = c
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.GridSession, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return clone(s)
}

func (r *SessionRepo) Save(ctx context.Context, s *domain.GridSession, expectedGeneration int64) error {
	c, err := clone(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[s.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", s.ID, domain.ErrSessionNotFound)
	}
	if cur.Generation != expectedGeneration {
		return fmt.Errorf("session %s at generation %d, expected %d: %w",
			s.ID, cur.Generation, expectedGeneration, domain.ErrConcurrentUpdate)
	}
	r.sessions[s.ID] = c
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	delete(r.sessions, id)
	return nil
}

func (r *SessionRepo) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(before) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// clone deep-copies through JSON so callers never share slices with the store.
func clone(s *domain.GridSession) (*domain.GridSession, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("copy session: %w", err)
	}
	var out domain.GridSession
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copy session: %w", err)
	}
	return &out, nil
}
