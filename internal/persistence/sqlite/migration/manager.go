package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager brings a database up to the latest migration.
type Manager struct {
	executor   *Executor
	migrations []Migration
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager creates a manager for the supplied, version-ordered migrations.
func NewManager(executor *Executor, migrations []Migration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		executor:   executor,
		migrations: migrations,
		logger:     logger.With("component", "migration"),
		now:        time.Now,
	}
}

// Status reports applied and pending migrations. An applied migration whose
// checksum no longer matches its file fails with ErrChecksumMismatch.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	checksums := make(map[string]string, len(applied))
	for _, row := range applied {
		checksums[row.Version] = row.Checksum
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, mig := range m.migrations {
		sum, ok := checksums[mig.Version]
		if !ok {
			status.Pending = append(status.Pending, mig)
			continue
		}
		if sum != mig.Checksum {
			return Status{}, newMigrationError(mig.Version, mig.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}

// Run applies every pending migration in order and returns how many ran.
func (m *Manager) Run(ctx context.Context) (int, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if len(status.Pending) == 0 {
		m.logger.Debug("schema up to date", slog.String("version", status.CurrentVersion))
		return 0, nil
	}

	for i, mig := range status.Pending {
		m.logger.Info("applying migration",
			slog.String("version", mig.Version),
			slog.String("description", mig.Description),
			slog.Int("position", i+1),
			slog.Int("pending", len(status.Pending)),
		)
		if err := m.executor.Apply(ctx, mig, m.now()); err != nil {
			return i, fmt.Errorf("apply migration %s: %w", mig.Version, err)
		}
	}
	m.logger.Info("migrations complete",
		slog.Int("applied", len(status.Pending)),
		slog.String("version", status.Pending[len(status.Pending)-1].Version),
	)
	return len(status.Pending), nil
}
