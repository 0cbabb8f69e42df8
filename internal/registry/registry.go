// Package registry is the process-wide source of truth for session state.
// It owns every Session record; callers get copies and mutate through
// Upsert so a read-modify-write can never interleave with a concurrent
// lifecycle event.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/chasqui-io/chasqui/internal/domain"
)

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func New() *Registry {
	return &Registry{sessions: make(map[string]*domain.Session)}
}

// Get returns a copy of the session record, so readers can never observe a
// torn write from a concurrent mutation.
func (r *Registry) Get(id string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return *s, true
}

// Upsert applies a partial-field merge to the session under the registry
// lock, creating the record if absent. The apply function runs while the
// lock is held and must not block.
func (r *Registry) Upsert(id string, apply func(*domain.Session)) domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = domain.NewSession(id, "", false)
		r.sessions[id] = s
	}
	apply(s)
	s.UpdatedAt = time.Now()
	return *s
}

// Create inserts a fresh record, replacing any previous one for the id.
func (r *Registry) Create(s *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) ListAll() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
