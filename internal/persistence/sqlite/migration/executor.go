package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const createVersionTableSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		execution_time_ms INTEGER NOT NULL DEFAULT 0
	)`

// executor runs migrations against a database.
type executor struct {
	db  *sql.DB
	now func() time.Time
}

func (e *executor) initVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, createVersionTableSQL); err != nil {
		return newDatabaseError(0, createVersionTableSQL, "create schema_migrations", err)
	}
	return nil
}

func (e *executor) applied(ctx context.Context) ([]AppliedMigration, error) {
	const query = `SELECT version, checksum, applied_at, execution_time_ms FROM schema_migrations ORDER BY version`

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, newDatabaseError(0, query, "list applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			row       AppliedMigration
			appliedAt string
			elapsedMS int64
		)
		if err := rows.Scan(&row.Version, &row.Checksum, &appliedAt, &elapsedMS); err != nil {
			return nil, newDatabaseError(0, query, "scan applied version", err)
		}
		row.AppliedAt, _ = time.Parse(time.RFC3339Nano, appliedAt)
		row.ExecutionTime = time.Duration(elapsedMS) * time.Millisecond
		applied = append(applied, row)
	}
	if err := rows.Err(); err != nil {
		return nil, newDatabaseError(0, query, "iterate applied versions", err)
	}
	return applied, nil
}

// apply executes every statement of m and records the version in one transaction.
func (e *executor) apply(ctx context.Context, m Migration) (time.Duration, error) {
	started := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, newDatabaseError(m.Version, "", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(m.SQL) {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return 0, newDatabaseError(m.Version, stmt, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	elapsed := e.now().Sub(started)
	const record = `INSERT INTO schema_migrations (version, checksum, applied_at, execution_time_ms) VALUES (?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, record, m.Version, m.Checksum, e.now().UTC().Format(time.RFC3339Nano), elapsed.Milliseconds()); err != nil {
		return 0, newDatabaseError(m.Version, record, "record migration", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, newDatabaseError(m.Version, "", "commit transaction", err)
	}
	return elapsed, nil
}
