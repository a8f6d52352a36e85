package application_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/testfixtures"
)

type providerStub struct {
	credential  application.Credential
	err         error
	gotCode     string
	gotNonce    string
	gotVerifier string
}

func (p *providerStub) AuthCodeURL(state, nonce, verifier string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *providerStub) Exchange(ctx context.Context, code, nonce, verifier string) (application.Credential, error) {
	p.gotCode, p.gotNonce, p.gotVerifier = code, nonce, verifier
	if p.err != nil {
		return application.Credential{}, p.err
	}
	return p.credential, nil
}

type statesStub struct {
	next    int
	pending map[string]application.PendingLogin
}

func newStatesStub() *statesStub {
	return &statesStub{pending: make(map[string]application.PendingLogin)}
}

func (s *statesStub) Begin(now time.Time) (string, application.PendingLogin) {
	s.next++
	state := fmt.Sprintf("state-%d", s.next)
	pending := application.PendingLogin{Nonce: "nonce-" + state, Verifier: "verifier-" + state}
	s.pending[state] = pending
	return state, pending
}

func (s *statesStub) Consume(state string, now time.Time) (application.PendingLogin, bool) {
	pending, ok := s.pending[state]
	delete(s.pending, state)
	return pending, ok
}

type sessionsStub struct {
	next  int
	items map[string]application.Session
}

func newSessionsStub() *sessionsStub {
	return &sessionsStub{items: make(map[string]application.Session)}
}

func (s *sessionsStub) Create(email, name string, token *oauth2.Token, now time.Time) application.Session {
	s.next++
	session := application.Session{
		ID:        fmt.Sprintf("session-%d", s.next),
		Email:     email,
		Name:      name,
		Token:     token,
		ExpiresAt: now.Add(time.Hour),
	}
	s.items[session.ID] = session
	return session
}

func (s *sessionsStub) Get(id string, now time.Time) (application.Session, bool) {
	session, ok := s.items[id]
	if !ok || !now.Before(session.ExpiresAt) {
		return application.Session{}, false
	}
	return session, true
}

func (s *sessionsStub) Delete(id string) {
	delete(s.items, id)
}

type authHarness struct {
	svc      *application.AuthService
	provider *providerStub
	states   *statesStub
	sessions *sessionsStub
	creds    *testfixtures.CredentialRepository
	clock    *testfixtures.Clock
}

func newAuthHarness() authHarness {
	h := authHarness{
		provider: &providerStub{credential: application.Credential{
			Email: "owner@example.com",
			Name:  "Owner",
			Token: &oauth2.Token{AccessToken: "fresh", RefreshToken: "refresh"},
		}},
		states:   newStatesStub(),
		sessions: newSessionsStub(),
		creds:    testfixtures.NewCredentialRepository(),
		clock:    testfixtures.NewClock(time.Time{}),
	}
	h.svc = testfixtures.NewServiceFactory(testfixtures.WithClock(h.clock)).NewAuthService(testfixtures.AuthServiceDeps{
		Provider:    h.provider,
		States:      h.states,
		Sessions:    h.sessions,
		Credentials: h.creds,
	})
	return h
}

func (h authHarness) login(t *testing.T) application.Session {
	t.Helper()
	redirect, err := h.svc.BeginLogin(context.Background())
	if err != nil {
		t.Fatalf("BeginLogin returned error: %v", err)
	}
	parsed, err := url.Parse(redirect)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	session, err := h.svc.CompleteLogin(context.Background(), parsed.Query().Get("state"), "auth-code")
	if err != nil {
		t.Fatalf("CompleteLogin returned error: %v", err)
	}
	return session
}

func TestAuthService_LoginStoresCredentialAndLatestIdentity(t *testing.T) {
	t.Parallel()

	h := newAuthHarness()
	session := h.login(t)

	if session.Email != "owner@example.com" || session.Token.AccessToken != "fresh" {
		t.Fatalf("unexpected session %+v", session)
	}
	if h.provider.gotCode != "auth-code" || h.provider.gotNonce != "nonce-state-1" || h.provider.gotVerifier != "verifier-state-1" {
		t.Fatalf("exchange received unexpected inputs: %+v", h.provider)
	}

	stored, err := h.creds.GetCredential(context.Background(), "owner@example.com")
	if err != nil {
		t.Fatalf("GetCredential returned error: %v", err)
	}
	if stored.Token.RefreshToken != "refresh" || !stored.CreatedAt.Equal(h.clock.Current()) {
		t.Fatalf("unexpected stored credential %+v", stored)
	}
	latest, err := h.creds.LatestIdentity(context.Background())
	if err != nil || latest != "owner@example.com" {
		t.Fatalf("expected latest identity owner@example.com, got %q (%v)", latest, err)
	}
}

func TestAuthService_LoginKeepsOriginalCreatedAt(t *testing.T) {
	t.Parallel()

	h := newAuthHarness()
	h.login(t)
	first := h.clock.Current()

	h.clock.Advance(time.Hour)
	h.login(t)

	stored, _ := h.creds.GetCredential(context.Background(), "owner@example.com")
	if !stored.CreatedAt.Equal(first) || !stored.UpdatedAt.Equal(h.clock.Current()) {
		t.Fatalf("expected CreatedAt %v and UpdatedAt %v, got %+v", first, h.clock.Current(), stored)
	}
}

func TestAuthService_CompleteLoginRejectsBadState(t *testing.T) {
	t.Parallel()

	h := newAuthHarness()
	if _, err := h.svc.CompleteLogin(context.Background(), "forged", "auth-code"); !errors.Is(err, application.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if _, err := h.svc.CompleteLogin(context.Background(), "", ""); !errors.Is(err, application.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for missing params, got %v", err)
	}

	h.login(t)
	if _, err := h.svc.CompleteLogin(context.Background(), "state-1", "auth-code"); !errors.Is(err, application.ErrInvalidState) {
		t.Fatalf("expected replayed state to be rejected, got %v", err)
	}
}

func TestAuthService_CompleteLoginExchangeFailure(t *testing.T) {
	t.Parallel()

	h := newAuthHarness()
	h.provider.err = errors.New("id_token audience mismatch")

	state, _ := h.states.Begin(h.clock.Current())
	if _, err := h.svc.CompleteLogin(context.Background(), state, "auth-code"); !errors.Is(err, application.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := h.creds.LatestIdentity(context.Background()); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected no latest identity after failed login, got %v", err)
	}
}

func TestAuthService_LoginSurvivesStoreFailure(t *testing.T) {
	t.Parallel()

	h := newAuthHarness()
	h.creds.FailSaves(persistence.ErrUnavailable)

	session := h.login(t)
	credential, ok := h.svc.ResolveSyncCredential(context.Background(), session.ID)
	if !ok || credential.Token.AccessToken != "fresh" {
		t.Fatalf("expected session credential to be usable, got %+v (%v)", credential, ok)
	}
}

func TestAuthService_Status(t *testing.T) {
	t.Parallel()

	h := newAuthHarness()

	status, err := h.svc.Status(context.Background(), "")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.Authenticated {
		t.Fatalf("expected unauthenticated status before login")
	}

	session := h.login(t)
	status, err = h.svc.Status(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !status.Authenticated || status.User.Email != "owner@example.com" || status.Restored != nil {
		t.Fatalf("unexpected status %+v", status)
	}

	restored, err := h.svc.Status(context.Background(), "unknown-session")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !restored.Authenticated || restored.Restored == nil {
		t.Fatalf("expected session restored from latest identity, got %+v", restored)
	}
	if _, ok := h.sessions.Get(restored.Restored.ID, h.clock.Current()); !ok {
		t.Fatalf("expected restored session to be live")
	}
}

func TestAuthService_LogoutClearsLatestIdentityButKeepsCredential(t *testing.T) {
	t.Parallel()

	h := newAuthHarness()
	session := h.login(t)

	if err := h.svc.Logout(context.Background(), session.ID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	if _, ok := h.sessions.Get(session.ID, h.clock.Current()); ok {
		t.Fatalf("expected session to be deleted")
	}
	if _, err := h.creds.LatestIdentity(context.Background()); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected latest identity to be cleared, got %v", err)
	}
	if _, err := h.creds.GetCredential(context.Background(), "owner@example.com"); err != nil {
		t.Fatalf("expected credential to be kept, got %v", err)
	}

	status, err := h.svc.Status(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.Authenticated {
		t.Fatalf("expected logged out status, got %+v", status)
	}
	if _, ok := h.svc.ResolveSyncCredential(context.Background(), session.ID); ok {
		t.Fatalf("expected no sync credential after logout")
	}
}

func TestAuthService_LogoutStoreFailure(t *testing.T) {
	t.Parallel()

	h := newAuthHarness()
	session := h.login(t)
	h.creds.FailClears(persistence.ErrUnavailable)

	if err := h.svc.Logout(context.Background(), session.ID); !errors.Is(err, application.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestAuthService_ResolveSyncCredentialOrder(t *testing.T) {
	t.Parallel()

	h := newAuthHarness()
	if _, ok := h.svc.ResolveSyncCredential(context.Background(), ""); ok {
		t.Fatalf("expected no credential before any login")
	}

	first := h.login(t)

	h.provider.credential = application.Credential{
		Email: "second@example.com",
		Name:  "Second",
		Token: &oauth2.Token{AccessToken: "second-token"},
	}
	second := h.login(t)

	// The latest identity now names the second account, but the first
	// session's own credential wins for that session.
	credential, ok := h.svc.ResolveSyncCredential(context.Background(), first.ID)
	if !ok || credential.Email != "owner@example.com" {
		t.Fatalf("expected session credential, got %+v", credential)
	}

	credential, ok = h.svc.ResolveSyncCredential(context.Background(), "")
	if !ok || credential.Email != second.Email {
		t.Fatalf("expected latest identity credential, got %+v", credential)
	}
}

func TestAuthService_DisabledWithoutProvider(t *testing.T) {
	t.Parallel()

	svc := testfixtures.NewServiceFactory().NewAuthService(testfixtures.AuthServiceDeps{})
	if svc.Enabled() {
		t.Fatalf("expected disabled auth service")
	}
	if _, err := svc.BeginLogin(context.Background()); !errors.Is(err, application.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}
