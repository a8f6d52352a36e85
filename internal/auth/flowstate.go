package auth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// LoginTTL bounds how long a started sign-in may take to return.
const LoginTTL = 10 * time.Minute

// PendingLogin is the per-attempt secret material bound to a state value.
type PendingLogin struct {
	Nonce     string
	Verifier  string
	ExpiresAt time.Time
}

// StateStore keeps pending sign-in attempts keyed by the OAuth state
// parameter. Each state can be consumed once.
type StateStore struct {
	mu      sync.Mutex
	pending map[string]PendingLogin
}

// NewStateStore returns an empty store.
func NewStateStore() *StateStore {
	return &StateStore{pending: make(map[string]PendingLogin)}
}

// Begin records a new attempt and returns its state.
func (s *StateStore) Begin(now time.Time) (string, PendingLogin) {
	state := randomString(32)
	login := PendingLogin{
		Nonce:     randomString(16),
		Verifier:  oauth2.GenerateVerifier(),
		ExpiresAt: now.Add(LoginTTL),
	}
	s.mu.Lock()
	s.pending[state] = login
	s.mu.Unlock()
	return state, login
}

// Consume removes and returns the attempt for state if it has not expired.
func (s *StateStore) Consume(state string, now time.Time) (PendingLogin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	login, ok := s.pending[state]
	if !ok {
		return PendingLogin{}, false
	}
	delete(s.pending, state)
	if !now.Before(login.ExpiresAt) {
		return PendingLogin{}, false
	}
	return login, true
}

// Purge drops expired attempts and returns how many were removed.
func (s *StateStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, login := range s.pending {
		if !now.Before(login.ExpiresAt) {
			delete(s.pending, state)
			removed++
		}
	}
	return removed
}

// randomString returns n random bytes encoded as base64url.
func randomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("auth: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
