package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/example/workshop-scheduler/internal/persistence"
	"github.com/example/workshop-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationsFS returns the embedded schema migrations.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(fmt.Sprintf("sqlite: embedded migrations: %v", err))
	}
	return sub
}

// Storage is the SQLite implementation of persistence.Storage.
type Storage struct {
	*WorkshopRepository
	*EnrollmentRepository
	*LinkRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Storage = (*Storage)(nil)

// Open opens a file-backed database at path with DefaultSQLiteConfig.
func Open(path string) (*Storage, error) {
	return OpenWithConfig(context.Background(), migration.DefaultSQLiteConfig(path), nil)
}

// OpenWithConfig opens a database with explicit settings.
func OpenWithConfig(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := migration.Open(ctx, config)
	if err != nil {
		return nil, err
	}

	pool := NewConnectionPool(db)
	return &Storage{
		WorkshopRepository:   NewWorkshopRepository(pool),
		EnrollmentRepository: NewEnrollmentRepository(pool),
		LinkRepository:       NewLinkRepository(pool),
		pool:                 pool,
		logger:               logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	return migration.NewManager(s.pool.DB(), MigrationsFS(), s.logger).Run(ctx)
}

// MigrationStatus reports the applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return migration.NewManager(s.pool.DB(), MigrationsFS(), s.logger).Status(ctx)
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
