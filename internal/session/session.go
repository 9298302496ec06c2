package session

import (
	"strings"
	"time"
)

// Session holds the state of one live dictation attempt for one connected
// client. All mutation happens from the owning session actor goroutine;
// the registry only hands out the pointer.
type Session struct {
	// ID is the opaque connection identifier, unique while active
	ID string

	// LanguageCode is the client-requested language tag, immutable for
	// the session lifetime
	LanguageCode string

	// StartTime is when the session was created
	StartTime time.Time

	// segments are the committed final transcript fragments in arrival
	// order. Interim text never enters this slice.
	segments []string

	// interim is the most recent non-final fragment, overwritten on each
	// interim event and cleared on each final event
	interim string

	active bool
}

// newSession allocates a session with empty buffers
func newSession(id, languageCode string) *Session {
	return &Session{
		ID:           id,
		LanguageCode: languageCode,
		StartTime:    time.Now().UTC(),
		active:       true,
	}
}

// AppendFinal commits one final transcript fragment and clears any
// outstanding interim text
func (s *Session) AppendFinal(text string) {
	s.segments = append(s.segments, text)
	s.interim = ""
}

// SetInterim overwrites the provisional transcript fragment
func (s *Session) SetInterim(text string) {
	s.interim = text
}

// Interim returns the current provisional fragment
func (s *Session) Interim() string {
	return s.interim
}

// Segments returns a copy of the committed fragments
func (s *Session) Segments() []string {
	out := make([]string, len(s.segments))
	copy(out, s.segments)
	return out
}

// Transcript joins the committed fragments into the final transcript text.
// Leftover interim text that never finalized is discarded.
func (s *Session) Transcript() string {
	return strings.TrimSpace(strings.Join(s.segments, " "))
}

// IsActive reports whether the session is still accepting events
func (s *Session) IsActive() bool {
	return s.active
}

// Deactivate marks the session as no longer accepting events
func (s *Session) Deactivate() {
	s.active = false
}
