package persistence

import "time"

// Reservation is the stored form of a booked slot. The JSON layout is the
// record format written to key-value backends.
type Reservation struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Date            string     `json:"date"`
	StartTime       string     `json:"startTime"`
	EndTime         string     `json:"endTime"`
	DurationMinutes int        `json:"duration"`
	Purpose         string     `json:"purpose,omitempty"`
	CalendarEventID string     `json:"googleEventId,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// Credential is the stored OAuth identity keyed by email. Token holds the
// sealed token bundle and is never interpreted by the store.
type Credential struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Token     []byte    `json:"google_tokens"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
