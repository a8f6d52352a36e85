package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Session is a signed-in browser. It caches the identity and token so calendar
// calls work even when the store cannot be read.
type Session struct {
	ID        string
	Email     string
	Name      string
	Token     *oauth2.Token
	ExpiresAt time.Time
}

// SessionStore holds sessions in memory with a fixed lifetime.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
}

// NewSessionStore returns a store whose sessions live for ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{sessions: make(map[string]Session), ttl: ttl}
}

// TTL returns the session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create stores a new session for the identity and returns it.
func (s *SessionStore) Create(email, name string, token *oauth2.Token, now time.Time) Session {
	session := Session{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

// Get returns the live session for id.
func (s *SessionStore) Get(id string, now time.Time) (Session, bool) {
	if id == "" {
		return Session{}, false
	}
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || !now.Before(session.ExpiresAt) {
		return Session{}, false
	}
	return session, true
}

// Delete removes the session for id.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Purge drops expired sessions and returns how many were removed.
func (s *SessionStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored sessions, expired or not.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
