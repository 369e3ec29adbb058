package validation

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrSessionNotFound is returned for an unknown or expired session ID
var ErrSessionNotFound = errors.New("validation: session not found")

type guarded struct {
	mu       sync.Mutex
	session  *Session
	lastUsed time.Time // written under mu
}

// Registry holds the sessions served by a transport. Each session is
// guarded by its own mutex, so different sessions progress independently.
// With an idle timeout, sessions untouched for longer are dropped on the
// next Add or With.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*guarded
	idle     time.Duration
	now      func() time.Time
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithIdleTimeout evicts sessions not used for d. Zero keeps sessions until
// they are removed.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idle = d }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*guarded),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IdleTimeout returns the eviction window, zero when eviction is off
func (r *Registry) IdleTimeout() time.Duration {
	return r.idle
}

// Add registers a session under its ID
func (r *Registry) Add(s *Session) {
	r.Evict()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = &guarded{session: s, lastUsed: r.now()}
}

// With runs fn while holding the session's lock
func (r *Registry) With(id string, fn func(*Session) error) error {
	r.Evict()

	r.mu.RLock()
	g, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() { g.lastUsed = r.now() }()
	return fn(g.session)
}

// Evict drops sessions idle for longer than the timeout and returns their
// IDs. A session whose lock is held is in use and is never evicted.
func (r *Registry) Evict() []string {
	if r.idle <= 0 {
		return nil
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, g := range r.sessions {
		if !g.mu.TryLock() {
			continue
		}
		if g.lastUsed.Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
		g.mu.Unlock()
	}
	sort.Strings(evicted)
	return evicted
}

// Remove drops a session and reports whether it existed
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the session IDs in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
