package server

import (
	"errors"
	"sync"
	"time"

	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/session"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

type sessionEntry struct {
	mu       sync.Mutex
	session  *session.Session
	lastUsed time.Time
}

// Registry holds the calculator sessions of the server. A session is used by
// one event at a time; different sessions proceed in parallel.
type Registry struct {
	mu         sync.Mutex
	sessions   map[string]*sessionEntry
	max        int
	newSession func() *session.Session
	now        func() time.Time
}

// NewRegistry creates a registry that allows at most max sessions (no limit
// when max <= 0) and builds each one with factory.
func NewRegistry(max int, factory func() *session.Session) *Registry {
	return &Registry{
		sessions:   make(map[string]*sessionEntry),
		max:        max,
		newSession: factory,
		now:        time.Now,
	}
}

// CreateSession allocates a session and returns its id.
func (r *Registry) CreateSession() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.sessions) >= r.max {
		logger.SecurityWarn("Session limit of %d reached", r.max)
		return "", ErrTooManySessions
	}

	id := uuid.NewString()
	r.sessions[id] = &sessionEntry{session: r.newSession(), lastUsed: r.now()}
	logger.SessionInfo("Session %s created (%d active)", id, len(r.sessions))
	return id, nil
}

// Exists reports whether id names a live session.
func (r *Registry) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// With runs fn with exclusive access to the session id.
func (r *Registry) With(id string, fn func(*session.Session) error) error {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.lastUsed = r.now()
	return fn(entry.session)
}

// Remove drops a session and closes its history.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if err := entry.session.History().Close(); err != nil {
			logger.SessionWarn("Closing history of session %s: %v", id, err)
		}
		logger.SessionInfo("Session %s removed", id)
	}
}

// PruneIdle removes sessions unused for longer than idle, except those keep
// reports as in use. It returns the number removed.
func (r *Registry) PruneIdle(idle time.Duration, keep func(id string) bool) int {
	cutoff := r.now().Add(-idle)

	var stale []string
	r.mu.Lock()
	for id, entry := range r.sessions {
		if keep != nil && keep(id) {
			continue
		}
		// TryLock skips sessions busy right now; they are not idle.
		if !entry.mu.TryLock() {
			continue
		}
		if entry.lastUsed.Before(cutoff) {
			stale = append(stale, id)
		}
		entry.mu.Unlock()
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.Remove(id)
	}
	if len(stale) > 0 {
		logger.SessionInfo("Pruned %d idle sessions", len(stale))
	}
	return len(stale)
}
