package fallback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/memory"
	"github.com/example/room-reservations/internal/testfixtures"
)

// flakyStore wraps the memory store and fails every call while down is set.
type flakyStore struct {
	*memory.Storage
	down atomic.Bool
}

func (f *flakyStore) Name() string { return "flaky" }

func (f *flakyStore) fail(op string) error {
	if f.down.Load() {
		return fmt.Errorf("flaky: %s: %w", op, persistence.ErrUnavailable)
	}
	return nil
}

func (f *flakyStore) Ping(ctx context.Context) error {
	return f.fail("ping")
}

func (f *flakyStore) ListReservationsByDate(ctx context.Context, date string) ([]persistence.Reservation, error) {
	if err := f.fail("list"); err != nil {
		return nil, err
	}
	return f.Storage.ListReservationsByDate(ctx, date)
}

func (f *flakyStore) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if err := f.fail("get"); err != nil {
		return persistence.Reservation{}, err
	}
	return f.Storage.GetReservation(ctx, id)
}

func (f *flakyStore) PutReservation(ctx context.Context, r persistence.Reservation) error {
	if err := f.fail("put"); err != nil {
		return err
	}
	return f.Storage.PutReservation(ctx, r)
}

// syncBuffer guards a bytes.Buffer for use as a log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), substr)
}

func newTestChain() (*Chain, *flakyStore, *memory.Storage, *syncBuffer) {
	logs := &syncBuffer{}
	primary := &flakyStore{Storage: memory.New()}
	volatile := memory.New()
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	return New(primary, volatile, logger), primary, volatile, logs
}

func TestChainContractWithoutPrimary(t *testing.T) {
	testfixtures.RunStoreContract(t, func(t *testing.T) persistence.Store {
		return New(nil, memory.New(), nil)
	})
}

func TestChainContractWithHealthyPrimary(t *testing.T) {
	testfixtures.RunStoreContract(t, func(t *testing.T) persistence.Store {
		chain, _, _, _ := newTestChain()
		return chain
	})
}

func TestChainWritesGoOnlyToPrimary(t *testing.T) {
	ctx := context.Background()
	chain, primary, volatile, _ := newTestChain()

	reservation := testfixtures.NewReservationFixture().Persistence()
	if err := chain.PutReservation(ctx, reservation); err != nil {
		t.Fatalf("PutReservation failed: %v", err)
	}
	if _, err := primary.Storage.GetReservation(ctx, reservation.ID); err != nil {
		t.Fatalf("expected reservation in primary: %v", err)
	}
	if _, err := volatile.GetReservation(ctx, reservation.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected reservation absent from volatile store, got %v", err)
	}
}

func TestChainFailedWriteIsNotRedirected(t *testing.T) {
	ctx := context.Background()
	chain, primary, volatile, _ := newTestChain()
	primary.down.Store(true)

	reservation := testfixtures.NewReservationFixture().Persistence()
	if err := chain.PutReservation(ctx, reservation); !errors.Is(err, persistence.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	listed, err := volatile.ListReservationsByDate(ctx, "")
	if err != nil {
		t.Fatalf("volatile list failed: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("write leaked into volatile store: %#v", listed)
	}
	if !chain.Degraded() {
		t.Fatalf("expected chain to report degraded")
	}
}

func TestChainDegradedReadsWarnOnce(t *testing.T) {
	ctx := context.Background()
	chain, primary, volatile, logs := newTestChain()

	cached := testfixtures.NewReservationFixture().Persistence()
	if err := volatile.PutReservation(ctx, cached); err != nil {
		t.Fatalf("seed volatile store: %v", err)
	}

	primary.down.Store(true)
	for i := 0; i < 5; i++ {
		got, err := chain.ListReservationsByDate(ctx, cached.Date)
		if err != nil {
			t.Fatalf("degraded list failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != cached.ID {
			t.Fatalf("expected volatile contents, got %#v", got)
		}
	}
	if n := logs.count("primary store unavailable"); n != 1 {
		t.Fatalf("expected exactly one degradation warning, got %d", n)
	}

	primary.down.Store(false)
	chain.Probe(ctx)
	if chain.Degraded() {
		t.Fatalf("expected chain to recover after probe")
	}
	if n := logs.count("primary store recovered"); n != 1 {
		t.Fatalf("expected one recovery log, got %d", n)
	}

	got, err := chain.ListReservationsByDate(ctx, cached.Date)
	if err != nil {
		t.Fatalf("list after recovery failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected primary contents after recovery, got %#v", got)
	}

	primary.down.Store(true)
	_, _ = chain.GetReservation(ctx, cached.ID)
	if n := logs.count("primary store unavailable"); n != 2 {
		t.Fatalf("expected a fresh warning after a new outage, got %d", n)
	}
}

func TestChainNotFoundDoesNotDegrade(t *testing.T) {
	ctx := context.Background()
	chain, _, _, _ := newTestChain()

	if _, err := chain.GetReservation(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if chain.Degraded() {
		t.Fatalf("not found must not mark the chain degraded")
	}
}

func TestChainName(t *testing.T) {
	chain, _, _, _ := newTestChain()
	if chain.Name() != "flaky+memory" {
		t.Fatalf("unexpected name %q", chain.Name())
	}
	if New(nil, memory.New(), nil).Name() != "memory" {
		t.Fatalf("expected bare volatile name")
	}
}

func TestChainLookupDuringOutageStaysUnavailable(t *testing.T) {
	ctx := context.Background()
	chain, primary, volatile, _ := newTestChain()

	stored := testfixtures.NewReservationFixture().Persistence()
	if err := chain.PutReservation(ctx, stored); err != nil {
		t.Fatalf("PutReservation failed: %v", err)
	}

	primary.down.Store(true)
	_, err := chain.GetReservation(ctx, stored.ID)
	if !errors.Is(err, persistence.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for a record only the primary holds, got %v", err)
	}
	if errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("outage must not read as a missing record: %v", err)
	}

	cached := testfixtures.NewReservationFixture(testfixtures.WithReservationID("cached")).Persistence()
	if err := volatile.PutReservation(ctx, cached); err != nil {
		t.Fatalf("seed volatile store: %v", err)
	}
	got, err := chain.GetReservation(ctx, cached.ID)
	if err != nil || got.ID != cached.ID {
		t.Fatalf("expected volatile hit during outage, got %+v (%v)", got, err)
	}
}
