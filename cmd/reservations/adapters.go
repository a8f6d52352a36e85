package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/auth"
	"github.com/example/room-reservations/internal/calendar"
	"github.com/example/room-reservations/internal/persistence"
)

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationRepositoryAdapter(repo persistence.ReservationRepository) *reservationRepositoryAdapter {
	return &reservationRepositoryAdapter{repo: repo}
}

func (a *reservationRepositoryAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context, date string) ([]application.Reservation, error) {
	models, err := a.repo.ListReservationsByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toApplicationReservation(model))
	}
	return reservations, nil
}

func (a *reservationRepositoryAdapter) SaveReservation(ctx context.Context, reservation application.Reservation) error {
	return a.repo.PutReservation(ctx, toPersistenceReservation(reservation))
}

func (a *reservationRepositoryAdapter) DeleteReservation(ctx context.Context, id string) error {
	return a.repo.DeleteReservation(ctx, id)
}

type credentialStore interface {
	persistence.CredentialRepository
	persistence.IdentityPointer
}

// credentialRepositoryAdapter seals tokens on the way into the store and
// opens them on the way out.
type credentialRepositoryAdapter struct {
	store  credentialStore
	sealer *auth.Sealer
}

func newCredentialRepositoryAdapter(store credentialStore, sealer *auth.Sealer) *credentialRepositoryAdapter {
	return &credentialRepositoryAdapter{store: store, sealer: sealer}
}

func (a *credentialRepositoryAdapter) GetCredential(ctx context.Context, email string) (application.Credential, error) {
	stored, err := a.store.GetCredential(ctx, email)
	if err != nil {
		return application.Credential{}, err
	}
	token, err := a.sealer.Open(stored.Token)
	if err != nil {
		return application.Credential{}, fmt.Errorf("%w: credential for %s: %w", persistence.ErrCorruptRecord, email, err)
	}
	return application.Credential{
		Email:     stored.Email,
		Name:      stored.Name,
		Token:     token,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

func (a *credentialRepositoryAdapter) SaveCredential(ctx context.Context, credential application.Credential) error {
	sealed, err := a.sealer.Seal(credential.Token)
	if err != nil {
		return fmt.Errorf("seal credential for %s: %w", credential.Email, err)
	}
	return a.store.PutCredential(ctx, persistence.Credential{
		Email:     credential.Email,
		Name:      credential.Name,
		Token:     sealed,
		CreatedAt: credential.CreatedAt,
		UpdatedAt: credential.UpdatedAt,
	})
}

func (a *credentialRepositoryAdapter) LatestIdentity(ctx context.Context) (string, error) {
	return a.store.GetLatestIdentity(ctx)
}

func (a *credentialRepositoryAdapter) SetLatestIdentity(ctx context.Context, email string) error {
	return a.store.SetLatestIdentity(ctx, email)
}

func (a *credentialRepositoryAdapter) ClearLatestIdentity(ctx context.Context) error {
	return a.store.ClearLatestIdentity(ctx)
}

type loginStateAdapter struct {
	states *auth.StateStore
}

func (a loginStateAdapter) Begin(now time.Time) (string, application.PendingLogin) {
	state, pending := a.states.Begin(now)
	return state, application.PendingLogin{Nonce: pending.Nonce, Verifier: pending.Verifier}
}

func (a loginStateAdapter) Consume(state string, now time.Time) (application.PendingLogin, bool) {
	pending, ok := a.states.Consume(state, now)
	if !ok {
		return application.PendingLogin{}, false
	}
	return application.PendingLogin{Nonce: pending.Nonce, Verifier: pending.Verifier}, true
}

type sessionStoreAdapter struct {
	sessions *auth.SessionStore
}

func (a sessionStoreAdapter) Create(email, name string, token *oauth2.Token, now time.Time) application.Session {
	return toApplicationSession(a.sessions.Create(email, name, token, now))
}

func (a sessionStoreAdapter) Get(id string, now time.Time) (application.Session, bool) {
	session, ok := a.sessions.Get(id, now)
	if !ok {
		return application.Session{}, false
	}
	return toApplicationSession(session), true
}

func (a sessionStoreAdapter) Delete(id string) {
	a.sessions.Delete(id)
}

type identityProviderAdapter struct {
	provider *auth.GoogleProvider
}

func (a identityProviderAdapter) AuthCodeURL(state, nonce, verifier string) string {
	return a.provider.AuthCodeURL(state, nonce, verifier)
}

func (a identityProviderAdapter) Exchange(ctx context.Context, code, nonce, verifier string) (application.Credential, error) {
	identity, err := a.provider.Exchange(ctx, code, nonce, verifier)
	if err != nil {
		return application.Credential{}, err
	}
	return application.Credential{Email: identity.Email, Name: identity.Name, Token: identity.Token}, nil
}

type calendarAdapter struct {
	client *calendar.Client
}

func (a calendarAdapter) CreateEvent(ctx context.Context, token *oauth2.Token, reservation application.Reservation) (string, error) {
	return a.client.CreateEvent(ctx, token, toBooking(reservation))
}

func (a calendarAdapter) UpdateEvent(ctx context.Context, token *oauth2.Token, eventID string, reservation application.Reservation) error {
	return a.client.UpdateEvent(ctx, token, eventID, toBooking(reservation))
}

func (a calendarAdapter) DeleteEvent(ctx context.Context, token *oauth2.Token, eventID string) error {
	return a.client.DeleteEvent(ctx, token, eventID)
}

func toBooking(r application.Reservation) calendar.Booking {
	return calendar.Booking{
		Name:      r.Name,
		Email:     r.Email,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Purpose:   r.Purpose,
	}
}

func toApplicationReservation(model persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:              model.ID,
		Name:            model.Name,
		Email:           model.Email,
		Date:            model.Date,
		StartTime:       model.StartTime,
		EndTime:         model.EndTime,
		DurationMinutes: model.DurationMinutes,
		Purpose:         model.Purpose,
		CalendarEventID: model.CalendarEventID,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       cloneTime(model.UpdatedAt),
	}
}

func toPersistenceReservation(r application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		Date:            r.Date,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationMinutes: r.DurationMinutes,
		Purpose:         r.Purpose,
		CalendarEventID: r.CalendarEventID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       cloneTime(r.UpdatedAt),
	}
}

func toApplicationSession(session auth.Session) application.Session {
	return application.Session{
		ID:        session.ID,
		Email:     session.Email,
		Name:      session.Name,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
