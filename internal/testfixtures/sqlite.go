package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/workshop-scheduler/internal/persistence"
	"github.com/example/workshop-scheduler/internal/persistence/memory"
	"github.com/example/workshop-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides a migrated SQLite storage in a temporary directory.
type SQLiteHarness struct {
	Storage *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a temporary database. Close is also
// registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "workshops.db")

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// Backend is a named persistence.Storage implementation.
type Backend struct {
	Name    string
	Storage persistence.Storage
}

// Backends returns a fresh instance of every storage backend so contract tests
// can run the same assertions against each of them.
func Backends(tb testing.TB) []Backend {
	tb.Helper()
	return []Backend{
		{Name: "memory", Storage: memory.New()},
		{Name: "sqlite", Storage: NewSQLiteHarness(tb).Storage},
	}
}
