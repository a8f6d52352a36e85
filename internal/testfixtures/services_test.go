package testfixtures

import (
	"context"
	"testing"

	"github.com/example/room-reservations/internal/application"
)

func TestServiceFactoryNewReservationService(t *testing.T) {
	factory := NewServiceFactory()
	repo := NewReservationRepository()

	svc := factory.NewReservationService(ReservationServiceDeps{Reservations: repo})
	result, err := svc.Create(context.Background(), application.CreateReservationParams{
		Input: application.ReservationInput{
			Name:      "Ada",
			Email:     "ada@example.com",
			Date:      "2024-06-10",
			StartTime: "14:00",
			EndTime:   "14:30",
		},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if result.Reservation.ID != "reservation-1" {
		t.Fatalf("expected generated ID reservation-1, got %q", result.Reservation.ID)
	}
	if !result.Reservation.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), result.Reservation.CreatedAt)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected repository to hold one reservation, got %d", repo.Len())
	}
}

func TestServiceFactoryNewAuthService(t *testing.T) {
	factory := NewServiceFactory()
	creds := NewCredentialRepository()
	if err := creds.SaveCredential(context.Background(), application.Credential{Email: "owner@example.com"}); err != nil {
		t.Fatalf("SaveCredential returned error: %v", err)
	}

	svc := factory.NewAuthService(AuthServiceDeps{Credentials: creds})
	if svc.Enabled() {
		t.Fatalf("expected auth service without provider to be disabled")
	}

	status, err := svc.Status(context.Background(), "")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.Authenticated {
		t.Fatalf("expected no identity without a latest identity marker")
	}
}
