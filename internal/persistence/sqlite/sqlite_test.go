package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/testfixtures"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "reservations.db")
	storage, err := Open(dsn, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})

	if _, err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func TestStorageContract(t *testing.T) {
	testfixtures.RunStoreContract(t, func(t *testing.T) persistence.Store {
		return newTestStorage(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	storage := newTestStorage(t)

	applied, err := storage.Migrate(context.Background())
	if err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected no pending migrations, got %d", applied)
	}
}

func TestListSkipsMalformedRows(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	valid := testfixtures.NewReservationFixture(testfixtures.WithReservationSlot("2024-06-10", "10:00", "11:00")).Persistence()
	if err := storage.PutReservation(ctx, valid); err != nil {
		t.Fatalf("PutReservation failed: %v", err)
	}
	_, err := storage.pool.DB().ExecContext(ctx,
		`INSERT INTO reservations (id, name, email, date, start_time, end_time, duration_minutes, created_at)
		 VALUES ('broken', 'x', 'x@example.com', '2024-06-10', '12:00', '13:00', 60, 'yesterday')`)
	if err != nil {
		t.Fatalf("seed malformed row: %v", err)
	}

	got, err := storage.ListReservationsByDate(ctx, "2024-06-10")
	if err != nil {
		t.Fatalf("ListReservationsByDate failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != valid.ID {
		t.Fatalf("expected only the valid reservation, got %#v", got)
	}
	if _, err := storage.GetReservation(ctx, "broken"); !errors.Is(err, persistence.ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestClosedStorageIsUnavailable(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	_ = storage.Close()

	if _, err := storage.ListReservationsByDate(ctx, ""); !errors.Is(err, persistence.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := storage.PutReservation(ctx, testfixtures.NewReservationFixture().Persistence()); !errors.Is(err, persistence.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on write, got %v", err)
	}
}
