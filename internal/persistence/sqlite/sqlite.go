// Package sqlite is the embedded durable backend built on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const timestampLayout = time.RFC3339Nano

// Storage implements persistence.Store on SQLite.
type Storage struct {
	pool   *ConnectionPool
	mapper ErrorMapper
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open opens dsn. Call Migrate before first use.
func Open(dsn string, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{pool: pool, logger: logger.With("store", "sqlite")}, nil
}

// Migrate applies pending embedded migrations and returns how many ran.
func (s *Storage) Migrate(ctx context.Context) (int, error) {
	migrations, err := migration.Scan(migrationFiles, "migrations")
	if err != nil {
		return 0, err
	}
	manager := migration.NewManager(migration.NewExecutor(s.pool.DB()), migrations, s.logger)
	return manager.Run(ctx)
}

// Name implements persistence.Store.
func (s *Storage) Name() string { return "sqlite" }

// Ping implements persistence.Store.
func (s *Storage) Ping(ctx context.Context) error {
	return s.mapper.MapError("ping", s.pool.Ping(ctx))
}

// Close implements persistence.Store.
func (s *Storage) Close() error {
	return s.pool.Close()
}

const reservationColumns = `id, name, email, date, start_time, end_time, duration_minutes, purpose, calendar_event_id, created_at, updated_at`

// GetReservation retrieves a reservation by id.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	row := s.pool.DB().QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	reservation, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, s.mapper.MapError("get reservation", err)
	}
	return reservation, nil
}

// ListReservationsByDate returns reservations on date, or all when date is
// empty. Rows with unreadable timestamps are logged and skipped.
func (s *Storage) ListReservationsByDate(ctx context.Context, date string) ([]persistence.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	var args []any
	if date != "" {
		query += ` WHERE date = ?`
		args = append(args, date)
	}

	rows, err := s.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError("list reservations", err)
	}
	defer rows.Close()

	result := make([]persistence.Reservation, 0)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if errors.Is(err, persistence.ErrCorruptRecord) {
			s.logger.Warn("skipping malformed reservation row", slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			return nil, s.mapper.MapError("scan reservation", err)
		}
		result = append(result, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError("iterate reservations", err)
	}
	return result, nil
}

// PutReservation inserts or replaces a reservation.
func (s *Storage) PutReservation(ctx context.Context, r persistence.Reservation) error {
	const stmt = `INSERT INTO reservations (` + reservationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration_minutes = excluded.duration_minutes,
			purpose = excluded.purpose,
			calendar_event_id = excluded.calendar_event_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`

	var updated sql.NullString
	if r.UpdatedAt != nil {
		updated = sql.NullString{String: r.UpdatedAt.UTC().Format(timestampLayout), Valid: true}
	}
	_, err := s.pool.DB().ExecContext(ctx, stmt,
		r.ID, r.Name, r.Email, r.Date, r.StartTime, r.EndTime, r.DurationMinutes,
		r.Purpose, r.CalendarEventID, r.CreatedAt.UTC().Format(timestampLayout), updated,
	)
	return s.mapper.MapError("put reservation", err)
}

// DeleteReservation removes a reservation by id.
func (s *Storage) DeleteReservation(ctx context.Context, id string) error {
	res, err := s.pool.DB().ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return s.mapper.MapError("delete reservation", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return s.mapper.MapError("delete reservation", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetCredential retrieves the credential for email.
func (s *Storage) GetCredential(ctx context.Context, email string) (persistence.Credential, error) {
	var (
		credential persistence.Credential
		created    string
		updated    string
	)
	err := s.pool.DB().QueryRowContext(ctx,
		`SELECT email, name, token, created_at, updated_at FROM credentials WHERE email = ?`, email,
	).Scan(&credential.Email, &credential.Name, &credential.Token, &created, &updated)
	if err != nil {
		return persistence.Credential{}, s.mapper.MapError("get credential", err)
	}
	if credential.CreatedAt, err = parseTimestamp(created); err != nil {
		return persistence.Credential{}, err
	}
	if credential.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return persistence.Credential{}, err
	}
	return credential, nil
}

// PutCredential inserts or replaces the credential for its email.
func (s *Storage) PutCredential(ctx context.Context, c persistence.Credential) error {
	const stmt = `INSERT INTO credentials (email, name, token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			token = excluded.token,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`
	_, err := s.pool.DB().ExecContext(ctx, stmt,
		c.Email, c.Name, c.Token,
		c.CreatedAt.UTC().Format(timestampLayout), c.UpdatedAt.UTC().Format(timestampLayout),
	)
	return s.mapper.MapError("put credential", err)
}

// GetLatestIdentity returns the email in the latest_identity row.
func (s *Storage) GetLatestIdentity(ctx context.Context) (string, error) {
	var email string
	err := s.pool.DB().QueryRowContext(ctx, `SELECT email FROM latest_identity WHERE slot = 1`).Scan(&email)
	if err != nil {
		return "", s.mapper.MapError("get latest identity", err)
	}
	return email, nil
}

// SetLatestIdentity replaces the latest_identity row.
func (s *Storage) SetLatestIdentity(ctx context.Context, email string) error {
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM latest_identity`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO latest_identity (slot, email) VALUES (1, ?)`, email)
		return err
	})
	return s.mapper.MapError("set latest identity", err)
}

// ClearLatestIdentity removes the latest_identity row.
func (s *Storage) ClearLatestIdentity(ctx context.Context) error {
	_, err := s.pool.DB().ExecContext(ctx, `DELETE FROM latest_identity`)
	return s.mapper.MapError("clear latest identity", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		r       persistence.Reservation
		created string
		updated sql.NullString
	)
	if err := row.Scan(
		&r.ID, &r.Name, &r.Email, &r.Date, &r.StartTime, &r.EndTime, &r.DurationMinutes,
		&r.Purpose, &r.CalendarEventID, &created, &updated,
	); err != nil {
		return persistence.Reservation{}, err
	}

	var err error
	if r.CreatedAt, err = parseTimestamp(created); err != nil {
		return persistence.Reservation{}, fmt.Errorf("reservation %s: %w", r.ID, err)
	}
	if updated.Valid {
		t, err := parseTimestamp(updated.String)
		if err != nil {
			return persistence.Reservation{}, fmt.Errorf("reservation %s: %w", r.ID, err)
		}
		r.UpdatedAt = &t
	}
	return r, nil
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", persistence.ErrCorruptRecord, value)
	}
	return t, nil
}
