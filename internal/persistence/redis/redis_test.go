package redis_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/redis"
	"github.com/example/room-reservations/internal/testfixtures"
)

func newTestStorage(t *testing.T) (*redis.Storage, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	storage := redis.New(client, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	t.Cleanup(func() {
		_ = storage.Close()
	})
	return storage, server
}

func TestStorageContract(t *testing.T) {
	testfixtures.RunStoreContract(t, func(t *testing.T) persistence.Store {
		storage, _ := newTestStorage(t)
		return storage
	})
}

func TestStorageKeyLayout(t *testing.T) {
	ctx := context.Background()
	storage, server := newTestStorage(t)

	reservation := testfixtures.NewReservationFixture(testfixtures.WithReservationID("abc")).Persistence()
	if err := storage.PutReservation(ctx, reservation); err != nil {
		t.Fatalf("PutReservation failed: %v", err)
	}
	if err := storage.SetLatestIdentity(ctx, "owner@example.com"); err != nil {
		t.Fatalf("SetLatestIdentity failed: %v", err)
	}

	if !server.Exists("reservation:abc") {
		t.Fatalf("expected reservation:abc key, have %v", server.Keys())
	}
	latest, err := server.Get("latest_user")
	if err != nil || latest != "owner@example.com" {
		t.Fatalf("expected latest_user to hold the email, got %q (%v)", latest, err)
	}
}

func TestListSkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	storage, server := newTestStorage(t)

	valid := testfixtures.NewReservationFixture(testfixtures.WithReservationSlot("2024-06-10", "10:00", "11:00")).Persistence()
	if err := storage.PutReservation(ctx, valid); err != nil {
		t.Fatalf("PutReservation failed: %v", err)
	}
	if err := server.Set("reservation:broken", "{not json"); err != nil {
		t.Fatalf("seed malformed record: %v", err)
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

func TestUnreachableServerIsUnavailable(t *testing.T) {
	ctx := context.Background()
	storage, server := newTestStorage(t)
	server.Close()

	if err := storage.Ping(ctx); !errors.Is(err, persistence.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from ping, got %v", err)
	}
	if _, err := storage.ListReservationsByDate(ctx, ""); !errors.Is(err, persistence.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from list, got %v", err)
	}
	reservation := testfixtures.NewReservationFixture().Persistence()
	if err := storage.PutReservation(ctx, reservation); !errors.Is(err, persistence.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from put, got %v", err)
	}
}
