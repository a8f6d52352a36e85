package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/room-reservations/internal/persistence"
)

// IdentityProvider performs the OAuth2 authorization code flow against the
// calendar owner's identity provider.
type IdentityProvider interface {
	AuthCodeURL(state, nonce, verifier string) string
	Exchange(ctx context.Context, code, nonce, verifier string) (Credential, error)
}

// LoginStateStore keeps pending logins between the redirect and the callback.
// Consume must succeed at most once per state.
type LoginStateStore interface {
	Begin(now time.Time) (string, PendingLogin)
	Consume(state string, now time.Time) (PendingLogin, bool)
}

// SessionStore holds browser sessions.
type SessionStore interface {
	Create(email, name string, token *oauth2.Token, now time.Time) Session
	Get(id string, now time.Time) (Session, bool)
	Delete(id string)
}

// CredentialRepository persists credentials and the process wide latest
// identity marker naming the calendar owner.
type CredentialRepository interface {
	GetCredential(ctx context.Context, email string) (Credential, error)
	SaveCredential(ctx context.Context, credential Credential) error
	LatestIdentity(ctx context.Context) (string, error)
	SetLatestIdentity(ctx context.Context, email string) error
	ClearLatestIdentity(ctx context.Context) error
}

// AuthService coordinates the Google sign in lifecycle and decides which
// credential calendar sync runs as.
type AuthService struct {
	provider    IdentityProvider
	states      LoginStateStore
	sessions    SessionStore
	credentials CredentialRepository
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies. A
// nil provider means sign in is not configured.
func NewAuthService(provider IdentityProvider, states LoginStateStore, sessions SessionStore, credentials CredentialRepository, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(provider, states, sessions, credentials, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(provider IdentityProvider, states LoginStateStore, sessions SessionStore, credentials CredentialRepository, now func() time.Time, logger *slog.Logger) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		provider:    provider,
		states:      states,
		sessions:    sessions,
		credentials: credentials,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Enabled reports whether an identity provider is configured.
func (s *AuthService) Enabled() bool {
	return s != nil && s.provider != nil && s.states != nil && s.sessions != nil
}

// BeginLogin records a pending login and returns the provider URL the browser
// should be redirected to.
func (s *AuthService) BeginLogin(ctx context.Context) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("%w: sign in is not configured", ErrInvalidState)
	}
	state, pending := s.states.Begin(s.now())
	s.loggerWith(ctx, "BeginLogin").DebugContext(ctx, "login started")
	return s.provider.AuthCodeURL(state, pending.Nonce, pending.Verifier), nil
}

// CompleteLogin finishes the flow started by BeginLogin. The credential is
// stored and marked as the latest identity; failures to do so are logged and
// the login still succeeds with a session bound to the fresh token.
func (s *AuthService) CompleteLogin(ctx context.Context, state, code string) (session Session, err error) {
	if !s.Enabled() {
		err = fmt.Errorf("%w: sign in is not configured", ErrInvalidState)
		return
	}

	logger := s.loggerWith(ctx, "CompleteLogin")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "login succeeded", "email", session.Email)
	}()

	state = strings.TrimSpace(state)
	code = strings.TrimSpace(code)
	if state == "" || code == "" {
		err = fmt.Errorf("%w: missing state or code", ErrInvalidState)
		return
	}

	now := s.now()
	pending, ok := s.states.Consume(state, now)
	if !ok {
		err = fmt.Errorf("%w: unknown or expired login state", ErrInvalidState)
		return
	}

	credential, exchangeErr := s.provider.Exchange(ctx, code, pending.Nonce, pending.Verifier)
	if exchangeErr != nil {
		err = fmt.Errorf("%w: %w", ErrUnauthenticated, exchangeErr)
		return
	}
	if credential.Email == "" || credential.Token == nil {
		err = fmt.Errorf("%w: provider returned no identity", ErrUnauthenticated)
		return
	}

	s.rememberCredential(ctx, logger, credential, now)

	session = s.sessions.Create(credential.Email, credential.Name, credential.Token, now)
	return
}

func (s *AuthService) rememberCredential(ctx context.Context, logger *slog.Logger, credential Credential, now time.Time) {
	if s.credentials == nil {
		return
	}

	credential.CreatedAt = now
	credential.UpdatedAt = now
	if existing, err := s.credentials.GetCredential(ctx, credential.Email); err == nil && !existing.CreatedAt.IsZero() {
		credential.CreatedAt = existing.CreatedAt
	}

	if err := s.credentials.SaveCredential(ctx, credential); err != nil {
		logger.WarnContext(ctx, "credential not stored", "email", credential.Email, "error", err)
		return
	}
	if err := s.credentials.SetLatestIdentity(ctx, credential.Email); err != nil {
		logger.WarnContext(ctx, "latest identity not updated", "email", credential.Email, "error", err)
	}
}

// Status reports the signed in identity for sessionID. Without a live
// session the stored latest identity is used and a new session is restored
// for it.
func (s *AuthService) Status(ctx context.Context, sessionID string) (AuthStatus, error) {
	if s == nil {
		return AuthStatus{}, fmt.Errorf("AuthService is nil")
	}

	if session, ok := s.session(sessionID); ok {
		return AuthStatus{
			Authenticated: true,
			User:          &Identity{Email: session.Email, Name: session.Name},
		}, nil
	}

	credential, ok := s.latestCredential(ctx, s.loggerWith(ctx, "Status"))
	if !ok || s.sessions == nil {
		return AuthStatus{}, nil
	}

	restored := s.sessions.Create(credential.Email, credential.Name, credential.Token, s.now())
	return AuthStatus{
		Authenticated: true,
		User:          &Identity{Email: credential.Email, Name: credential.Name},
		Restored:      &restored,
	}, nil
}

// Logout ends the browser session and clears the latest identity marker. The
// stored credential is kept; the next login overwrites it.
func (s *AuthService) Logout(ctx context.Context, sessionID string) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}

	logger := s.loggerWith(ctx, "Logout")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "logout failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "logged out")
	}()

	if s.sessions != nil && sessionID != "" {
		s.sessions.Delete(sessionID)
	}
	if s.credentials == nil {
		return nil
	}
	if clearErr := s.credentials.ClearLatestIdentity(ctx); clearErr != nil {
		return mapRepoError(clearErr)
	}
	return nil
}

// ResolveSyncCredential picks the credential used for calendar operations:
// the session's credential, then the stored latest identity, then none.
func (s *AuthService) ResolveSyncCredential(ctx context.Context, sessionID string) (Credential, bool) {
	if s == nil {
		return Credential{}, false
	}
	if session, ok := s.session(sessionID); ok && session.Token != nil {
		return Credential{Email: session.Email, Name: session.Name, Token: session.Token}, true
	}
	return s.latestCredential(ctx, s.loggerWith(ctx, "ResolveSyncCredential"))
}

func (s *AuthService) session(id string) (Session, bool) {
	if s.sessions == nil || id == "" {
		return Session{}, false
	}
	return s.sessions.Get(id, s.now())
}

func (s *AuthService) latestCredential(ctx context.Context, logger *slog.Logger) (Credential, bool) {
	if s.credentials == nil {
		return Credential{}, false
	}

	email, err := s.credentials.LatestIdentity(ctx)
	if err != nil {
		if !isNotFound(err) {
			logger.WarnContext(ctx, "latest identity lookup failed", "error", err)
		}
		return Credential{}, false
	}

	credential, err := s.credentials.GetCredential(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			logger.WarnContext(ctx, "credential lookup failed", "email", email, "error", err)
		}
		return Credential{}, false
	}
	if credential.Token == nil {
		return Credential{}, false
	}
	return credential, true
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
