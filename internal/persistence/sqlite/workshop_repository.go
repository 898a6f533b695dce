package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/workshop-scheduler/internal/persistence"
)

// WorkshopRepository implements persistence.WorkshopRepository using SQLite.
type WorkshopRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewWorkshopRepository creates a SQLite workshop repository.
func NewWorkshopRepository(pool *ConnectionPool) *WorkshopRepository {
	return &WorkshopRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateWorkshop inserts a workshop and its schedule rows.
func (r *WorkshopRepository) CreateWorkshop(ctx context.Context, workshop persistence.Workshop) error {
	if workshop.ID == "" || workshop.NumberOfDays <= 0 {
		return persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO workshops (id, title, mentor_id, mentor_email, schedule_type, number_of_days, start_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			workshop.ID,
			workshop.Title,
			workshop.MentorID,
			workshop.MentorEmail,
			workshop.ScheduleType,
			workshop.NumberOfDays,
			nullableString(workshop.StartDate),
			workshop.CreatedAt.UTC().Format(timeLayout),
			workshop.UpdatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertScheduleRows(ctx, tx, workshop)
	})
}

// UpdateWorkshop replaces the workshop row and its schedule rows.
func (r *WorkshopRepository) UpdateWorkshop(ctx context.Context, workshop persistence.Workshop) error {
	if workshop.ID == "" || workshop.NumberOfDays <= 0 {
		return persistence.ErrConstraintViolation
	}

	const query = `
		UPDATE workshops
		SET title = ?, mentor_id = ?, mentor_email = ?, schedule_type = ?, number_of_days = ?, start_date = ?, updated_at = ?
		WHERE id = ?
	`

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			workshop.Title,
			workshop.MentorID,
			workshop.MentorEmail,
			workshop.ScheduleType,
			workshop.NumberOfDays,
			nullableString(workshop.StartDate),
			workshop.UpdatedAt.UTC().Format(timeLayout),
			workshop.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		for _, stmt := range []string{
			`DELETE FROM workshop_pattern_slots WHERE workshop_id = ?`,
			`DELETE FROM workshop_custom_sessions WHERE workshop_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, workshop.ID); err != nil {
				return r.mapper.MapError(err)
			}
		}
		return r.insertScheduleRows(ctx, tx, workshop)
	})
}

// GetWorkshop loads a workshop with its schedule rows.
func (r *WorkshopRepository) GetWorkshop(ctx context.Context, id string) (persistence.Workshop, error) {
	if id == "" {
		return persistence.Workshop{}, persistence.ErrNotFound
	}

	var workshop persistence.Workshop
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, title, mentor_id, mentor_email, schedule_type, number_of_days, start_date, created_at, updated_at
			FROM workshops
			WHERE id = ?
		`, id)

		var err error
		workshop, err = scanWorkshop(row)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.loadScheduleRows(ctx, tx, &workshop)
	})
	if err != nil {
		return persistence.Workshop{}, err
	}
	return workshop, nil
}

// ListWorkshops returns every workshop ordered by creation time.
func (r *WorkshopRepository) ListWorkshops(ctx context.Context) ([]persistence.Workshop, error) {
	var workshops []persistence.Workshop
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, title, mentor_id, mentor_email, schedule_type, number_of_days, start_date, created_at, updated_at
			FROM workshops
			ORDER BY created_at, id
		`)
		if err != nil {
			return r.mapper.MapError(err)
		}
		defer rows.Close()

		for rows.Next() {
			workshop, err := scanWorkshop(rows)
			if err != nil {
				return err
			}
			workshops = append(workshops, workshop)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		for i := range workshops {
			if err := r.loadScheduleRows(ctx, tx, &workshops[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return workshops, nil
}

// DeleteWorkshop removes a workshop; schedule rows, enrollments, and ledger rows cascade.
func (r *WorkshopRepository) DeleteWorkshop(ctx context.Context, id string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM workshops WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func (r *WorkshopRepository) insertScheduleRows(ctx context.Context, tx *sql.Tx, workshop persistence.Workshop) error {
	// Rows are numbered by slice order so positions stay unique whatever the caller set.
	for i, slot := range workshop.Slots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workshop_pattern_slots (workshop_id, position, weekday, time_of_day) VALUES (?, ?, ?, ?)`,
			workshop.ID, i+1, int(slot.Weekday), slot.TimeOfDay,
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	for i, session := range workshop.Sessions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workshop_custom_sessions (workshop_id, day_index, session_date, time_of_day) VALUES (?, ?, ?, ?)`,
			workshop.ID, i+1, session.Date, session.TimeOfDay,
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *WorkshopRepository) loadScheduleRows(ctx context.Context, tx *sql.Tx, workshop *persistence.Workshop) error {
	slotRows, err := tx.QueryContext(ctx,
		`SELECT position, weekday, time_of_day FROM workshop_pattern_slots WHERE workshop_id = ? ORDER BY position`,
		workshop.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer slotRows.Close()

	workshop.Slots = nil
	for slotRows.Next() {
		var (
			slot    persistence.PatternSlot
			weekday int
		)
		if err := slotRows.Scan(&slot.Position, &weekday, &slot.TimeOfDay); err != nil {
			return err
		}
		slot.Weekday = time.Weekday(weekday)
		workshop.Slots = append(workshop.Slots, slot)
	}
	if err := slotRows.Err(); err != nil {
		return err
	}

	sessionRows, err := tx.QueryContext(ctx,
		`SELECT day_index, session_date, time_of_day FROM workshop_custom_sessions WHERE workshop_id = ? ORDER BY day_index`,
		workshop.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer sessionRows.Close()

	workshop.Sessions = nil
	for sessionRows.Next() {
		var session persistence.CustomSession
		if err := sessionRows.Scan(&session.DayIndex, &session.Date, &session.TimeOfDay); err != nil {
			return err
		}
		workshop.Sessions = append(workshop.Sessions, session)
	}
	return sessionRows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkshop(row rowScanner) (persistence.Workshop, error) {
	var (
		workshop             persistence.Workshop
		startDate            sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&workshop.ID,
		&workshop.Title,
		&workshop.MentorID,
		&workshop.MentorEmail,
		&workshop.ScheduleType,
		&workshop.NumberOfDays,
		&startDate,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Workshop{}, persistence.ErrNotFound
		}
		return persistence.Workshop{}, err
	}

	workshop.StartDate = startDate.String
	var err error
	if workshop.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return persistence.Workshop{}, fmt.Errorf("parse created_at: %w", err)
	}
	if workshop.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return persistence.Workshop{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return workshop, nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
