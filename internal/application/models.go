package application

import (
	"time"

	"golang.org/x/oauth2"
)

// Reservation represents a booked slot of the room.
type Reservation struct {
	ID              string
	Name            string
	Email           string
	Date            string
	StartTime       string
	EndTime         string
	DurationMinutes int
	Purpose         string
	CalendarEventID string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// ReservationInput captures caller provided booking fields.
type ReservationInput struct {
	Name      string
	Email     string
	Date      string
	StartTime string
	EndTime   string
	Purpose   string
}

// CreateReservationParams wraps the data required to create a reservation.
// SessionID identifies the caller's browser session, if any, and only
// influences which credential is used for calendar sync.
type CreateReservationParams struct {
	SessionID string
	Input     ReservationInput
}

// UpdateReservationParams wraps the data required to replace an existing reservation.
type UpdateReservationParams struct {
	SessionID     string
	ReservationID string
	Input         ReservationInput
}

// DeleteReservationParams identifies the reservation to cancel.
type DeleteReservationParams struct {
	SessionID     string
	ReservationID string
}

// CreateReservationResult reports the stored reservation and whether it was
// mirrored into the external calendar.
type CreateReservationResult struct {
	Reservation   Reservation
	CalendarAdded bool
}

// AvailabilityQuery describes a candidate slot. ExcludeID omits one
// reservation from the check, which is how updates avoid conflicting with
// themselves.
type AvailabilityQuery struct {
	Date      string
	StartTime string
	EndTime   string
	ExcludeID string
}

// Availability is the outcome of an availability check.
type Availability struct {
	Available bool
	Conflicts []Reservation
}

// Credential is the stored OAuth grant of a signed in Google account.
type Credential struct {
	Email     string
	Name      string
	Token     *oauth2.Token
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is the public view of a signed in account.
type Identity struct {
	Email string
	Name  string
}

// Session is a browser session bound to a credential.
type Session struct {
	ID        string
	Email     string
	Name      string
	Token     *oauth2.Token
	ExpiresAt time.Time
}

// PendingLogin holds the secrets generated when a login flow begins.
type PendingLogin struct {
	Nonce    string
	Verifier string
}

// AuthStatus reports who, if anyone, is signed in. Restored is set when the
// status call created a new session from the stored latest identity; callers
// should hand its id back to the browser.
type AuthStatus struct {
	Authenticated bool
	User          *Identity
	Restored      *Session
}
