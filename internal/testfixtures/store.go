package testfixtures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-reservations/internal/persistence"
)

// RunStoreContract exercises the behaviour every persistence.Store backend
// must share. newStore is invoked once per subtest and must return an empty
// store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) persistence.Store) {
	t.Helper()

	t.Run("reservation round trip", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		updated := referenceTime.Add(time.Hour)
		want := NewReservationFixture(
			WithReservationPurpose("screening"),
			WithCalendarEventID("event-1"),
			WithReservationUpdatedAt(updated),
		).Persistence()

		if err := store.PutReservation(ctx, want); err != nil {
			t.Fatalf("PutReservation failed: %v", err)
		}
		got, err := store.GetReservation(ctx, want.ID)
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		AssertSameReservation(t, want, got)
	})

	t.Run("missing reservation is not found", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		if _, err := store.GetReservation(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteReservation(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on delete, got %v", err)
		}
	})

	t.Run("list filters by date", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		first := NewReservationFixture(WithReservationSlot("2024-06-10", "09:00", "10:00")).Persistence()
		second := NewReservationFixture(WithReservationSlot("2024-06-10", "11:00", "12:00")).Persistence()
		other := NewReservationFixture(WithReservationSlot("2024-06-11", "09:00", "10:00")).Persistence()
		for _, r := range []persistence.Reservation{first, second, other} {
			if err := store.PutReservation(ctx, r); err != nil {
				t.Fatalf("PutReservation failed: %v", err)
			}
		}

		onDate, err := store.ListReservationsByDate(ctx, "2024-06-10")
		if err != nil {
			t.Fatalf("ListReservationsByDate failed: %v", err)
		}
		if len(onDate) != 2 {
			t.Fatalf("expected 2 reservations on date, got %d", len(onDate))
		}
		for _, r := range onDate {
			if r.Date != "2024-06-10" {
				t.Fatalf("unexpected date in listing: %#v", r)
			}
		}

		all, err := store.ListReservationsByDate(ctx, "")
		if err != nil {
			t.Fatalf("ListReservationsByDate(all) failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 reservations overall, got %d", len(all))
		}
	})

	t.Run("put replaces and delete removes", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		r := NewReservationFixture().Persistence()
		if err := store.PutReservation(ctx, r); err != nil {
			t.Fatalf("PutReservation failed: %v", err)
		}
		r.Name = "Renamed"
		r.CalendarEventID = "event-2"
		if err := store.PutReservation(ctx, r); err != nil {
			t.Fatalf("PutReservation (replace) failed: %v", err)
		}
		got, err := store.GetReservation(ctx, r.ID)
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if got.Name != "Renamed" || got.CalendarEventID != "event-2" {
			t.Fatalf("replace not applied: %#v", got)
		}

		if err := store.DeleteReservation(ctx, r.ID); err != nil {
			t.Fatalf("DeleteReservation failed: %v", err)
		}
		if err := store.DeleteReservation(ctx, r.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("credentials and latest identity", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		if _, err := store.GetLatestIdentity(ctx); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unset identity, got %v", err)
		}
		if _, err := store.GetCredential(ctx, "owner@example.com"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing credential, got %v", err)
		}

		credential := persistence.Credential{
			Email:     "owner@example.com",
			Name:      "Owner",
			Token:     []byte{0x01, 0x02, 0x03},
			CreatedAt: referenceTime,
			UpdatedAt: referenceTime,
		}
		if err := store.PutCredential(ctx, credential); err != nil {
			t.Fatalf("PutCredential failed: %v", err)
		}
		if err := store.SetLatestIdentity(ctx, credential.Email); err != nil {
			t.Fatalf("SetLatestIdentity failed: %v", err)
		}

		email, err := store.GetLatestIdentity(ctx)
		if err != nil {
			t.Fatalf("GetLatestIdentity failed: %v", err)
		}
		got, err := store.GetCredential(ctx, email)
		if err != nil {
			t.Fatalf("GetCredential failed: %v", err)
		}
		if got.Name != "Owner" || string(got.Token) != string(credential.Token) {
			t.Fatalf("unexpected credential: %#v", got)
		}
		if !got.CreatedAt.Equal(credential.CreatedAt) {
			t.Fatalf("expected created %v, got %v", credential.CreatedAt, got.CreatedAt)
		}

		if err := store.ClearLatestIdentity(ctx); err != nil {
			t.Fatalf("ClearLatestIdentity failed: %v", err)
		}
		if _, err := store.GetLatestIdentity(ctx); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after clear, got %v", err)
		}
		if _, err := store.GetCredential(ctx, credential.Email); err != nil {
			t.Fatalf("credential should survive clearing the identity: %v", err)
		}
	})
}

// AssertSameReservation fails the test when two stored reservations differ.
func AssertSameReservation(t *testing.T, want, got persistence.Reservation) {
	t.Helper()

	if got.ID != want.ID || got.Name != want.Name || got.Email != want.Email ||
		got.Date != want.Date || got.StartTime != want.StartTime || got.EndTime != want.EndTime ||
		got.DurationMinutes != want.DurationMinutes || got.Purpose != want.Purpose ||
		got.CalendarEventID != want.CalendarEventID {
		t.Fatalf("reservation mismatch:\nwant %#v\n got %#v", want, got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("created_at mismatch: want %v got %v", want.CreatedAt, got.CreatedAt)
	}
	switch {
	case want.UpdatedAt == nil && got.UpdatedAt != nil:
		t.Fatalf("expected nil updated_at, got %v", *got.UpdatedAt)
	case want.UpdatedAt != nil && (got.UpdatedAt == nil || !got.UpdatedAt.Equal(*want.UpdatedAt)):
		t.Fatalf("updated_at mismatch: want %v got %v", *want.UpdatedAt, got.UpdatedAt)
	}
}
