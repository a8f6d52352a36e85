// Package redis stores reservations and credentials as JSON values in Redis.
//
// Key layout:
//
//	reservation:<id>  reservation record
//	user:<email>      credential record
//	latest_user       email of the latest authenticated identity
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/example/room-reservations/internal/persistence"
)

const (
	reservationPrefix = "reservation:"
	credentialPrefix  = "user:"
	latestIdentityKey = "latest_user"

	scanBatch = 100
)

// Storage implements persistence.Store on top of a Redis client.
type Storage struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open parses a redis:// or rediss:// URL and connects lazily.
func Open(url string, logger *slog.Logger) (*Storage, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return New(goredis.NewClient(opts), logger), nil
}

// New wraps an existing client.
func New(client goredis.UniversalClient, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{client: client, logger: logger.With("store", "redis")}
}

// Name implements persistence.Store.
func (s *Storage) Name() string { return "redis" }

// Ping implements persistence.Store.
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the client connection pool.
func (s *Storage) Close() error {
	return s.client.Close()
}

// GetReservation retrieves a reservation by id.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	if err := s.getJSON(ctx, reservationPrefix+id, &reservation); err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}

// ListReservationsByDate scans every reservation key and filters by date.
// Records that fail to decode are logged and skipped.
func (s *Storage) ListReservationsByDate(ctx context.Context, date string) ([]persistence.Reservation, error) {
	keys, err := s.scanKeys(ctx, reservationPrefix+"*")
	if err != nil {
		return nil, err
	}

	result := make([]persistence.Reservation, 0)
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		values, err := s.client.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, unavailable("mget reservations", err)
		}
		for i, value := range values {
			raw, ok := value.(string)
			if !ok {
				// Deleted between SCAN and MGET.
				continue
			}
			var reservation persistence.Reservation
			if err := json.Unmarshal([]byte(raw), &reservation); err != nil {
				s.logger.Warn("skipping malformed reservation record",
					slog.String("key", keys[start+i]),
					slog.String("error", err.Error()),
				)
				continue
			}
			if date != "" && reservation.Date != date {
				continue
			}
			result = append(result, reservation)
		}
	}
	return result, nil
}

// PutReservation inserts or replaces a reservation.
func (s *Storage) PutReservation(ctx context.Context, reservation persistence.Reservation) error {
	return s.setJSON(ctx, reservationPrefix+reservation.ID, reservation)
}

// DeleteReservation removes a reservation by id.
func (s *Storage) DeleteReservation(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, reservationPrefix+id).Result()
	if err != nil {
		return unavailable("delete reservation", err)
	}
	if removed == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetCredential retrieves the credential for email.
func (s *Storage) GetCredential(ctx context.Context, email string) (persistence.Credential, error) {
	var credential persistence.Credential
	if err := s.getJSON(ctx, credentialPrefix+email, &credential); err != nil {
		return persistence.Credential{}, err
	}
	return credential, nil
}

// PutCredential inserts or replaces the credential for its email.
func (s *Storage) PutCredential(ctx context.Context, credential persistence.Credential) error {
	return s.setJSON(ctx, credentialPrefix+credential.Email, credential)
}

// GetLatestIdentity returns the email stored under latest_user.
func (s *Storage) GetLatestIdentity(ctx context.Context) (string, error) {
	email, err := s.client.Get(ctx, latestIdentityKey).Result()
	if errors.Is(err, goredis.Nil) {
		return "", persistence.ErrNotFound
	}
	if err != nil {
		return "", unavailable("get latest identity", err)
	}
	return email, nil
}

// SetLatestIdentity records email under latest_user.
func (s *Storage) SetLatestIdentity(ctx context.Context, email string) error {
	if err := s.client.Set(ctx, latestIdentityKey, email, 0).Err(); err != nil {
		return unavailable("set latest identity", err)
	}
	return nil
}

// ClearLatestIdentity deletes latest_user.
func (s *Storage) ClearLatestIdentity(ctx context.Context) error {
	if err := s.client.Del(ctx, latestIdentityKey).Err(); err != nil {
		return unavailable("clear latest identity", err)
	}
	return nil
}

func (s *Storage) getJSON(ctx context.Context, key string, dest any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return persistence.ErrNotFound
	}
	if err != nil {
		return unavailable("get "+key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("redis: decode %s: %w", key, errors.Join(persistence.ErrCorruptRecord, err))
	}
	return nil
}

func (s *Storage) setJSON(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return unavailable("set "+key, err)
	}
	return nil
}

func (s *Storage) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, unavailable("scan "+pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis: %s: %w", op, errors.Join(persistence.ErrUnavailable, err))
}
