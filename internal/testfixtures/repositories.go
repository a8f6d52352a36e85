package testfixtures

import (
	"context"
	"sync"

	"github.com/example/room-reservations/internal/application"
)

// ReservationRepository is an in-memory application.ReservationRepository
// with switchable failures.
type ReservationRepository struct {
	mu      sync.Mutex
	items   map[string]application.Reservation
	saveErr error
	listErr error
	getErr  error
	saves   int
}

// NewReservationRepository returns a repository seeded with reservations.
func NewReservationRepository(seed ...application.Reservation) *ReservationRepository {
	repo := &ReservationRepository{items: make(map[string]application.Reservation)}
	for _, r := range seed {
		repo.items[r.ID] = r
	}
	return repo
}

// FailSaves makes every later save return err. A nil err clears the failure.
func (r *ReservationRepository) FailSaves(err error) {
	r.mu.Lock()
	r.saveErr = err
	r.mu.Unlock()
}

// FailLists makes every later list return err. A nil err clears the failure.
func (r *ReservationRepository) FailLists(err error) {
	r.mu.Lock()
	r.listErr = err
	r.mu.Unlock()
}

// FailGets makes every later lookup by id return err. A nil err clears the failure.
func (r *ReservationRepository) FailGets(err error) {
	r.mu.Lock()
	r.getErr = err
	r.mu.Unlock()
}

// Saves reports how many saves succeeded.
func (r *ReservationRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// Len reports how many reservations are stored.
func (r *ReservationRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// GetReservation implements application.ReservationRepository.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return application.Reservation{}, r.getErr
	}
	item, ok := r.items[id]
	if !ok {
		return application.Reservation{}, application.ErrNotFound
	}
	return item, nil
}

// ListReservations implements application.ReservationRepository.
func (r *ReservationRepository) ListReservations(ctx context.Context, date string) ([]application.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]application.Reservation, 0, len(r.items))
	for _, item := range r.items {
		if date == "" || item.Date == date {
			out = append(out, item)
		}
	}
	return out, nil
}

// SaveReservation implements application.ReservationRepository.
func (r *ReservationRepository) SaveReservation(ctx context.Context, reservation application.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.items[reservation.ID] = reservation
	r.saves++
	return nil
}

// DeleteReservation implements application.ReservationRepository.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return application.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// CredentialRepository is an in-memory application.CredentialRepository.
type CredentialRepository struct {
	mu       sync.Mutex
	items    map[string]application.Credential
	latest   string
	saveErr  error
	clearErr error
}

// NewCredentialRepository returns an empty repository.
func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{items: make(map[string]application.Credential)}
}

// FailSaves makes later credential and latest identity writes return err.
func (r *CredentialRepository) FailSaves(err error) {
	r.mu.Lock()
	r.saveErr = err
	r.mu.Unlock()
}

// FailClears makes later ClearLatestIdentity calls return err.
func (r *CredentialRepository) FailClears(err error) {
	r.mu.Lock()
	r.clearErr = err
	r.mu.Unlock()
}

// GetCredential implements application.CredentialRepository.
func (r *CredentialRepository) GetCredential(ctx context.Context, email string) (application.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[email]
	if !ok {
		return application.Credential{}, application.ErrNotFound
	}
	return item, nil
}

// SaveCredential implements application.CredentialRepository.
func (r *CredentialRepository) SaveCredential(ctx context.Context, credential application.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.items[credential.Email] = credential
	return nil
}

// LatestIdentity implements application.CredentialRepository.
func (r *CredentialRepository) LatestIdentity(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == "" {
		return "", application.ErrNotFound
	}
	return r.latest, nil
}

// SetLatestIdentity implements application.CredentialRepository.
func (r *CredentialRepository) SetLatestIdentity(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.latest = email
	return nil
}

// ClearLatestIdentity implements application.CredentialRepository.
func (r *CredentialRepository) ClearLatestIdentity(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clearErr != nil {
		return r.clearErr
	}
	r.latest = ""
	return nil
}
