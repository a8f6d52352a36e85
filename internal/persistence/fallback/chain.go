// Package fallback composes a durable primary store with a volatile
// secondary. Reads that cannot reach the primary are served from the
// secondary for that call only; writes never move to the secondary, so a
// reservation is never stored in two places and nothing is accepted without
// durability. A lookup the secondary cannot answer keeps the primary's
// unavailable error rather than reporting the record missing.
package fallback

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/example/room-reservations/internal/persistence"
)

// Chain implements persistence.Store over a primary and a volatile backend.
type Chain struct {
	primary  persistence.Store
	volatile persistence.Store
	logger   *slog.Logger
	degraded atomic.Bool
}

var _ persistence.Store = (*Chain)(nil)

// New builds a chain. A nil primary means no durable backend was configured
// and every call goes straight to volatile.
func New(primary, volatile persistence.Store, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		primary:  primary,
		volatile: volatile,
		logger:   logger.With("component", "store_chain"),
	}
}

// Name reports the backends in priority order.
func (c *Chain) Name() string {
	if c.primary == nil {
		return c.volatile.Name()
	}
	return c.primary.Name() + "+" + c.volatile.Name()
}

// Degraded reports whether the last primary call failed as unavailable.
func (c *Chain) Degraded() bool {
	return c.degraded.Load()
}

// Ping checks the primary, or the volatile store when none is configured.
func (c *Chain) Ping(ctx context.Context) error {
	if c.primary == nil {
		return c.volatile.Ping(ctx)
	}
	err := c.primary.Ping(ctx)
	c.observe("ping", err)
	return err
}

// Probe pings the primary so recovery is noticed without traffic.
func (c *Chain) Probe(ctx context.Context) {
	if c.primary == nil {
		return
	}
	_ = c.Ping(ctx)
}

// Close closes both backends.
func (c *Chain) Close() error {
	var errs []error
	if c.primary != nil {
		errs = append(errs, c.primary.Close())
	}
	errs = append(errs, c.volatile.Close())
	return errors.Join(errs...)
}

// GetReservation implements persistence.ReservationRepository.
func (c *Chain) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return read(c, "get reservation", func(s persistence.Store) (persistence.Reservation, error) {
		return s.GetReservation(ctx, id)
	})
}

// ListReservationsByDate implements persistence.ReservationRepository.
func (c *Chain) ListReservationsByDate(ctx context.Context, date string) ([]persistence.Reservation, error) {
	return read(c, "list reservations", func(s persistence.Store) ([]persistence.Reservation, error) {
		return s.ListReservationsByDate(ctx, date)
	})
}

// PutReservation implements persistence.ReservationRepository.
func (c *Chain) PutReservation(ctx context.Context, reservation persistence.Reservation) error {
	return c.write("put reservation", func(s persistence.Store) error {
		return s.PutReservation(ctx, reservation)
	})
}

// DeleteReservation implements persistence.ReservationRepository.
func (c *Chain) DeleteReservation(ctx context.Context, id string) error {
	return c.write("delete reservation", func(s persistence.Store) error {
		return s.DeleteReservation(ctx, id)
	})
}

// GetCredential implements persistence.CredentialRepository.
func (c *Chain) GetCredential(ctx context.Context, email string) (persistence.Credential, error) {
	return read(c, "get credential", func(s persistence.Store) (persistence.Credential, error) {
		return s.GetCredential(ctx, email)
	})
}

// PutCredential implements persistence.CredentialRepository.
func (c *Chain) PutCredential(ctx context.Context, credential persistence.Credential) error {
	return c.write("put credential", func(s persistence.Store) error {
		return s.PutCredential(ctx, credential)
	})
}

// GetLatestIdentity implements persistence.IdentityPointer.
func (c *Chain) GetLatestIdentity(ctx context.Context) (string, error) {
	return read(c, "get latest identity", func(s persistence.Store) (string, error) {
		return s.GetLatestIdentity(ctx)
	})
}

// SetLatestIdentity implements persistence.IdentityPointer.
func (c *Chain) SetLatestIdentity(ctx context.Context, email string) error {
	return c.write("set latest identity", func(s persistence.Store) error {
		return s.SetLatestIdentity(ctx, email)
	})
}

// ClearLatestIdentity implements persistence.IdentityPointer.
func (c *Chain) ClearLatestIdentity(ctx context.Context) error {
	return c.write("clear latest identity", func(s persistence.Store) error {
		return s.ClearLatestIdentity(ctx)
	})
}

func read[T any](c *Chain, op string, call func(persistence.Store) (T, error)) (T, error) {
	if c.primary == nil {
		return call(c.volatile)
	}
	value, err := call(c.primary)
	c.observe(op, err)
	if !errors.Is(err, persistence.ErrUnavailable) {
		return value, err
	}
	// A volatile miss says nothing about the primary's contents.
	fallbackValue, fallbackErr := call(c.volatile)
	if errors.Is(fallbackErr, persistence.ErrNotFound) {
		return value, err
	}
	return fallbackValue, fallbackErr
}

func (c *Chain) write(op string, call func(persistence.Store) error) error {
	if c.primary == nil {
		return call(c.volatile)
	}
	err := call(c.primary)
	c.observe(op, err)
	return err
}

// observe logs the first unavailable error after a healthy period and the
// first success after a degraded one.
func (c *Chain) observe(op string, err error) {
	if errors.Is(err, persistence.ErrUnavailable) {
		if c.degraded.CompareAndSwap(false, true) {
			c.logger.Warn("primary store unavailable, serving reads from volatile store",
				slog.String("primary", c.primary.Name()),
				slog.String("operation", op),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if c.degraded.CompareAndSwap(true, false) {
		c.logger.Info("primary store recovered",
			slog.String("primary", c.primary.Name()),
			slog.String("operation", op),
		)
	}
}
