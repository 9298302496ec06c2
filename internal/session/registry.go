package session

import (
	"errors"
	"sync"
)

// ErrDuplicateSession indicates a start for a connection that already has
// an active session. The client must not assume any state changed.
var ErrDuplicateSession = errors.New("connection already has an active session")

// Registry owns the mapping from connection identifier to session state.
// It is the single source of truth for "is this connection currently
// transcribing". Event dispatch may run on multiple goroutines (one actor
// per connection), so the map is mutex-protected and Create/Get/Remove are
// atomic with respect to each other; a fast reconnect cannot produce two
// sessions for one identifier.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Create allocates and stores a new session for the connection.
// Fails with ErrDuplicateSession if the connection already has one.
func (r *Registry) Create(connectionID, languageCode string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connectionID]; exists {
		return nil, ErrDuplicateSession
	}

	s := newSession(connectionID, languageCode)
	r.sessions[connectionID] = s
	return s, nil
}

// Get returns the session for the connection, or nil if none exists
func (r *Registry) Get(connectionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[connectionID]
}

// Remove deletes the session entry. Idempotent: removing a missing id is
// not an error, which covers the disconnect-cleanup race.
func (r *Registry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connectionID)
}

// Len returns the number of active sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
