package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
)

var reservationCounter uint64

var referenceTime = time.Date(2024, time.June, 1, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReservationFixture represents a deterministic reservation that can be
// materialised for application or persistence tests.
type ReservationFixture struct {
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

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a 30 minute reservation at 14:00 on
// 2024-06-10 with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	id := fmt.Sprintf("reservation-%03d", idx)
	fixture := ReservationFixture{
		ID:              id,
		Name:            fmt.Sprintf("Guest %03d", idx),
		Email:           fmt.Sprintf("guest%03d@example.com", idx),
		Date:            "2024-06-10",
		StartTime:       "14:00",
		EndTime:         "14:30",
		DurationMinutes: 30,
		CreatedAt:       referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated id.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationSlot sets the date and time range and recomputes the duration.
func WithReservationSlot(date, start, end string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Date = date
		f.StartTime = start
		f.EndTime = end
		f.DurationMinutes = clockMinutes(end) - clockMinutes(start)
	}
}

// WithReservationRequester overrides the requester name and email.
func WithReservationRequester(name, email string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Name = name
		f.Email = email
	}
}

// WithReservationPurpose sets the free text purpose.
func WithReservationPurpose(purpose string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Purpose = purpose
	}
}

// WithCalendarEventID attaches an external calendar event id.
func WithCalendarEventID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.CalendarEventID = id
	}
}

// WithReservationUpdatedAt sets the update timestamp.
func WithReservationUpdatedAt(t time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.UpdatedAt = &t
	}
}

// Application converts the fixture into an application reservation.
func (f ReservationFixture) Application() application.Reservation {
	return application.Reservation{
		ID:              f.ID,
		Name:            f.Name,
		Email:           f.Email,
		Date:            f.Date,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime,
		DurationMinutes: f.DurationMinutes,
		Purpose:         f.Purpose,
		CalendarEventID: f.CalendarEventID,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       copyTime(f.UpdatedAt),
	}
}

// Persistence converts the fixture into a stored reservation.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		ID:              f.ID,
		Name:            f.Name,
		Email:           f.Email,
		Date:            f.Date,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime,
		DurationMinutes: f.DurationMinutes,
		Purpose:         f.Purpose,
		CalendarEventID: f.CalendarEventID,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       copyTime(f.UpdatedAt),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func clockMinutes(hhmm string) int {
	var h, m int
	_, _ = fmt.Sscanf(hhmm, "%d:%d", &h, &m)
	return h*60 + m
}
