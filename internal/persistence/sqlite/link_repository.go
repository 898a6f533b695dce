package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/workshop-scheduler/internal/ledger"
	"github.com/example/workshop-scheduler/internal/persistence"
)

// LinkRepository implements ledger.Store on the session_links table.
type LinkRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

var _ ledger.Store = (*LinkRepository)(nil)

// NewLinkRepository creates a SQLite link ledger.
func NewLinkRepository(pool *ConnectionPool) *LinkRepository {
	return &LinkRepository{pool: pool, mapper: NewErrorMapper()}
}

// GetLink returns the ledger record of one session.
func (r *LinkRepository) GetLink(ctx context.Context, workshopID string, dayIndex int) (ledger.Record, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT workshop_id, day_index, link, scheduled_for, generated_at
		FROM session_links
		WHERE workshop_id = ? AND day_index = ?
	`, workshopID, dayIndex)

	record, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Record{}, r.mapper.MapError(err)
	}
	return record, nil
}

// InsertLink commits a record unless the session already has one. The
// conditional insert is a single statement, so concurrent writers cannot both
// succeed.
func (r *LinkRepository) InsertLink(ctx context.Context, record ledger.Record) error {
	const query = `
		INSERT INTO session_links (workshop_id, day_index, link, scheduled_for, generated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (workshop_id, day_index) DO NOTHING
	`

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			record.WorkshopID,
			record.DayIndex,
			record.Link,
			record.ScheduledFor.UTC().Format(timeLayout),
			record.GeneratedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			mapped := r.mapper.MapError(err)
			if errors.Is(mapped, persistence.ErrForeignKeyViolation) {
				return fmt.Errorf("workshop %s: %w", record.WorkshopID, persistence.ErrNotFound)
			}
			return mapped
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return ledger.ErrAlreadyExists
		}
		return nil
	})
}

// ListLinks returns every record of a workshop ordered by day.
func (r *LinkRepository) ListLinks(ctx context.Context, workshopID string) ([]ledger.Record, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT workshop_id, day_index, link, scheduled_for, generated_at
		FROM session_links
		WHERE workshop_id = ?
		ORDER BY day_index
	`, workshopID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	records := make([]ledger.Record, 0)
	for rows.Next() {
		record, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ClearLinks deletes every record of a workshop.
func (r *LinkRepository) ClearLinks(ctx context.Context, workshopID string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM session_links WHERE workshop_id = ?`, workshopID)
		return r.mapper.MapError(err)
	})
}

func scanLink(row rowScanner) (ledger.Record, error) {
	var (
		record                    ledger.Record
		scheduledFor, generatedAt string
	)
	if err := row.Scan(&record.WorkshopID, &record.DayIndex, &record.Link, &scheduledFor, &generatedAt); err != nil {
		return ledger.Record{}, err
	}

	var err error
	if record.ScheduledFor, err = time.Parse(timeLayout, scheduledFor); err != nil {
		return ledger.Record{}, fmt.Errorf("parse scheduled_for: %w", err)
	}
	if record.GeneratedAt, err = time.Parse(timeLayout, generatedAt); err != nil {
		return ledger.Record{}, fmt.Errorf("parse generated_at: %w", err)
	}
	return record, nil
}
