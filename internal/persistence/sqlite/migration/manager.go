package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Manager applies pending migrations from an fs.FS.
type Manager struct {
	fsys     fs.FS
	executor *executor
	logger   *slog.Logger
}

// NewManager constructs a Manager. A nil logger falls back to slog.Default.
func NewManager(db *sql.DB, fsys fs.FS, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		fsys:     fsys,
		executor: &executor{db: db, now: time.Now},
		logger:   logger.With("component", "migration"),
	}
}

// Run applies every pending migration in version order. Each migration runs in
// its own transaction; the first failure stops the run.
func (m *Manager) Run(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "from_version", status.CurrentVersion, "pending", len(status.Pending))
	for _, migration := range status.Pending {
		elapsed, err := m.executor.apply(ctx, migration)
		if err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "name", migration.Name, "error", err)
			return newMigrationError(migration, "execute", fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", elapsed,
		)
	}
	return nil
}

// Status compares the files in the manager's fs.FS with schema_migrations.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.initVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := Scan(m.fsys)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.applied(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	status := Status{Applied: applied}
	for _, a := range applied {
		appliedByVersion[a.Version] = a
		if a.Version > status.CurrentVersion {
			status.CurrentVersion = a.Version
		}
	}
	for _, migration := range available {
		if _, done := appliedByVersion[migration.Version]; !done {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

// validateSequence rejects gaps, applied versions without a file, and files
// edited after they were applied.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		if want := i + 1; migration.Version != want {
			return fmt.Errorf("%w: expected version %03d, found %03d", ErrVersionConflict, want, migration.Version)
		}
		byVersion[migration.Version] = migration
	}

	for _, a := range applied {
		migration, ok := byVersion[a.Version]
		if !ok {
			return fmt.Errorf("%w: applied version %03d has no migration file", ErrVersionConflict, a.Version)
		}
		if a.Checksum != migration.Checksum {
			return newMigrationError(migration, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
