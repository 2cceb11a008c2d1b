package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/quizrun-backend/internal/engine"
)

// Registry holds the live sessions of this process.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*engine.Session
	retention time.Duration
	now       func() time.Time
}

// NewRegistry creates a Registry. Finished sessions are kept for retention
// so results and reviews can be served from memory.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		sessions:  make(map[uuid.UUID]*engine.Session),
		retention: retention,
		now:       time.Now,
	}
}

// Get returns a live session.
func (r *Registry) Get(id uuid.UUID) (*engine.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrAdd registers s unless a session with the same id is already live,
// in which case the existing one is returned with loaded set.
func (r *Registry) GetOrAdd(s *engine.Session) (actual *engine.Session, loaded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[s.ID()]; ok {
		return existing, true
	}
	r.sessions[s.ID()] = s
	return s, false
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes and drops sessions that finished more than retention ago.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.Closed() {
			delete(r.sessions, id)
			removed++
			continue
		}
		a := s.Snapshot()
		if !a.Status.Terminal() || a.CompletedAt == nil || a.CompletedAt.After(cutoff) {
			continue
		}
		s.Close()
		delete(r.sessions, id)
		removed++
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

// CloseAll stops every live session. Their snapshots stay in Redis.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sessions)
	for id, s := range r.sessions {
		s.Close()
		delete(r.sessions, id)
	}
	return n
}
