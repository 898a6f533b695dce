package migration

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), InMemoryTestSQLiteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testFiles() fstest.MapFS {
	return fstest.MapFS{
		"001_create_things.sql": {Data: []byte("-- Description: things table\nCREATE TABLE things (id TEXT PRIMARY KEY);\n")},
		"002_add_index.sql":     {Data: []byte("CREATE INDEX idx_things_id ON things(id);\nINSERT INTO things (id) VALUES ('a');\n")},
		"README.md":             {Data: []byte("ignored")},
	}
}

func TestManager_RunAppliesPendingOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	manager := NewManager(db, testFiles(), nil)

	require.NoError(t, manager.Run(ctx))
	require.NoError(t, manager.Run(ctx))

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentVersion)
	assert.Empty(t, status.Pending)
	assert.Len(t, status.Applied, 2)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM things").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestManager_FailedMigrationRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := testFiles()
	files["003_broken.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE extra (id TEXT);\nINSERT INTO missing_table VALUES (1);\n")}

	err := NewManager(db, files, nil).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMigrationFailed))

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='extra'").Scan(&name)
	assert.True(t, errors.Is(err, sql.ErrNoRows), "partial migration was committed")

	status, err := NewManager(db, testFiles(), nil).Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentVersion)
}

func TestManager_DetectsEditedMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, NewManager(db, testFiles(), nil).Run(ctx))

	edited := testFiles()
	edited["002_add_index.sql"] = &fstest.MapFile{Data: []byte("CREATE INDEX idx_other ON things(id);")}

	_, err := NewManager(db, edited, nil).Status(ctx)
	assert.True(t, errors.Is(err, ErrChecksumMismatch), "got %v", err)
}

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("orders by version and reads descriptions", func(t *testing.T) {
		t.Parallel()
		migrations, err := Scan(testFiles())
		require.NoError(t, err)
		require.Len(t, migrations, 2)
		assert.Equal(t, 1, migrations[0].Version)
		assert.Equal(t, "things table", migrations[0].Description)
		assert.Equal(t, "add index", migrations[1].Description)
		assert.NotEmpty(t, migrations[0].Checksum)
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		t.Parallel()
		files := testFiles()
		files["002_other.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
		_, err := Scan(files)
		assert.True(t, errors.Is(err, ErrDuplicateVersion))
	})

	t.Run("rejects bad file names", func(t *testing.T) {
		t.Parallel()
		_, err := Scan(fstest.MapFS{"create.sql": {Data: []byte("SELECT 1;")}})
		assert.True(t, errors.Is(err, ErrInvalidMigrationFile))
	})

	t.Run("rejects empty files", func(t *testing.T) {
		t.Parallel()
		_, err := Scan(fstest.MapFS{"001_empty.sql": {Data: []byte("-- nothing here\n")}})
		assert.True(t, errors.Is(err, ErrInvalidMigrationFile))
	})

	t.Run("rejects gaps", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		_, err := NewManager(db, fstest.MapFS{"002_late.sql": {Data: []byte("SELECT 1;")}}, nil).Status(context.Background())
		assert.True(t, errors.Is(err, ErrVersionConflict))
	})
}

func TestSQLiteConfig_DSN(t *testing.T) {
	t.Parallel()

	dsn := DefaultSQLiteConfig("/tmp/workshops.db").DSN()
	assert.Contains(t, dsn, "/tmp/workshops.db?")
	assert.Contains(t, dsn, "foreign_keys%281%29")
	assert.Contains(t, dsn, "journal_mode%28WAL%29")

	assert.Error(t, SQLiteConfig{Path: "x.db", JournalMode: "BOGUS"}.Validate())
	assert.Error(t, SQLiteConfig{}.Validate())
}
