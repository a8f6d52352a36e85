// Package memory provides the volatile in-process store. Contents are lost on
// restart; it backs development runs and serves degraded reads when a durable
// backend is unreachable.
package memory

import (
	"context"
	"sync"

	"github.com/example/room-reservations/internal/persistence"
)

// Storage keeps reservations and credentials in maps guarded by a RWMutex.
type Storage struct {
	mu           sync.RWMutex
	reservations map[string]persistence.Reservation
	credentials  map[string]persistence.Credential
	latest       string
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		reservations: make(map[string]persistence.Reservation),
		credentials:  make(map[string]persistence.Credential),
	}
}

// Name implements persistence.Store.
func (s *Storage) Name() string { return "memory" }

// Ping implements persistence.Store. The map is always reachable.
func (s *Storage) Ping(context.Context) error { return nil }

// Close implements persistence.Store.
func (s *Storage) Close() error { return nil }

// GetReservation retrieves a reservation by id.
func (s *Storage) GetReservation(_ context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(reservation), nil
}

// ListReservationsByDate scans every reservation and keeps those on date.
func (s *Storage) ListReservationsByDate(_ context.Context, date string) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]persistence.Reservation, 0)
	for _, reservation := range s.reservations {
		if date != "" && reservation.Date != date {
			continue
		}
		result = append(result, cloneReservation(reservation))
	}
	return result, nil
}

// PutReservation inserts or replaces a reservation.
func (s *Storage) PutReservation(_ context.Context, reservation persistence.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// DeleteReservation removes a reservation by id.
func (s *Storage) DeleteReservation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.reservations, id)
	return nil
}

// GetCredential retrieves the credential stored for email.
func (s *Storage) GetCredential(_ context.Context, email string) (persistence.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.credentials[email]
	if !ok {
		return persistence.Credential{}, persistence.ErrNotFound
	}
	return cloneCredential(credential), nil
}

// PutCredential inserts or replaces the credential for its email.
func (s *Storage) PutCredential(_ context.Context, credential persistence.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[credential.Email] = cloneCredential(credential)
	return nil
}

// GetLatestIdentity returns the email of the latest authenticated identity.
func (s *Storage) GetLatestIdentity(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == "" {
		return "", persistence.ErrNotFound
	}
	return s.latest, nil
}

// SetLatestIdentity records email as the latest identity.
func (s *Storage) SetLatestIdentity(_ context.Context, email string) error {
	s.mu.Lock()
	s.latest = email
	s.mu.Unlock()
	return nil
}

// ClearLatestIdentity forgets the latest identity.
func (s *Storage) ClearLatestIdentity(context.Context) error {
	s.mu.Lock()
	s.latest = ""
	s.mu.Unlock()
	return nil
}

func cloneReservation(r persistence.Reservation) persistence.Reservation {
	if r.UpdatedAt != nil {
		updated := *r.UpdatedAt
		r.UpdatedAt = &updated
	}
	return r
}

func cloneCredential(c persistence.Credential) persistence.Credential {
	if c.Token != nil {
		c.Token = append([]byte(nil), c.Token...)
	}
	return c
}
