package http

import "github.com/example/room-reservations/internal/application"

// Realtime event types pushed to subscribers.
const (
	EventReservationCreated = "reservation_created"
	EventReservationUpdated = "reservation_updated"
	EventReservationDeleted = "reservation_deleted"
)

// Broadcaster fans a typed payload out to realtime subscribers.
type Broadcaster interface {
	Broadcast(eventType string, data any)
}

// EventPublisher renders reservation changes in the API wire format and
// hands them to a Broadcaster.
type EventPublisher struct {
	broadcaster Broadcaster
}

// NewEventPublisher returns a publisher for broadcaster.
func NewEventPublisher(broadcaster Broadcaster) *EventPublisher {
	return &EventPublisher{broadcaster: broadcaster}
}

// ReservationCreated implements application.ReservationEvents.
func (p *EventPublisher) ReservationCreated(reservation application.Reservation) {
	p.broadcaster.Broadcast(EventReservationCreated, toReservationDTO(reservation))
}

// ReservationUpdated implements application.ReservationEvents.
func (p *EventPublisher) ReservationUpdated(reservation application.Reservation) {
	p.broadcaster.Broadcast(EventReservationUpdated, toReservationDTO(reservation))
}

// ReservationDeleted implements application.ReservationEvents.
func (p *EventPublisher) ReservationDeleted(id string) {
	p.broadcaster.Broadcast(EventReservationDeleted, deletedEvent{ID: id})
}

type deletedEvent struct {
	ID string `json:"id"`
}
