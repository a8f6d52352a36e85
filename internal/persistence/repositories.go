package persistence

import "context"

// ReservationRepository stores reservations keyed by id.
type ReservationRepository interface {
	GetReservation(ctx context.Context, id string) (Reservation, error)
	// ListReservationsByDate returns reservations on date, or every
	// reservation when date is empty. Order is unspecified.
	ListReservationsByDate(ctx context.Context, date string) ([]Reservation, error)
	PutReservation(ctx context.Context, reservation Reservation) error
	DeleteReservation(ctx context.Context, id string) error
}

// CredentialRepository stores OAuth credentials keyed by email.
type CredentialRepository interface {
	GetCredential(ctx context.Context, email string) (Credential, error)
	PutCredential(ctx context.Context, credential Credential) error
}

// IdentityPointer tracks the single latest authenticated identity used for
// calendar sync. GetLatestIdentity returns ErrNotFound when none is set.
type IdentityPointer interface {
	GetLatestIdentity(ctx context.Context) (string, error)
	SetLatestIdentity(ctx context.Context, email string) error
	ClearLatestIdentity(ctx context.Context) error
}

// Store is the full capability set a backend provides.
type Store interface {
	ReservationRepository
	CredentialRepository
	IdentityPointer
	// Name identifies the backend in logs and status output.
	Name() string
	Ping(ctx context.Context) error
	Close() error
}
