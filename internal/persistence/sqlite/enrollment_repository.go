package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/workshop-scheduler/internal/persistence"
)

// EnrollmentRepository implements persistence.EnrollmentRepository using SQLite.
type EnrollmentRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewEnrollmentRepository creates a SQLite enrollment repository.
func NewEnrollmentRepository(pool *ConnectionPool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool, mapper: NewErrorMapper()}
}

// UpsertEnrollment creates an enrollment or updates its payment status.
// The original enrolled_at is preserved on update.
func (r *EnrollmentRepository) UpsertEnrollment(ctx context.Context, enrollment persistence.Enrollment) error {
	email := normalizeEmail(enrollment.StudentEmail)
	if enrollment.WorkshopID == "" || email == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO enrollments (workshop_id, student_email, payment_status, enrolled_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (workshop_id, student_email)
		DO UPDATE SET payment_status = excluded.payment_status, updated_at = excluded.updated_at
	`

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			enrollment.WorkshopID,
			email,
			enrollment.PaymentStatus,
			enrollment.EnrolledAt.UTC().Format(timeLayout),
			enrollment.UpdatedAt.UTC().Format(timeLayout),
		)
		return r.mapper.MapError(err)
	})
}

// GetEnrollment returns one student's enrollment.
func (r *EnrollmentRepository) GetEnrollment(ctx context.Context, workshopID, studentEmail string) (persistence.Enrollment, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT workshop_id, student_email, payment_status, enrolled_at, updated_at
		FROM enrollments
		WHERE workshop_id = ? AND student_email = ?
	`, workshopID, normalizeEmail(studentEmail))

	enrollment, err := scanEnrollment(row)
	if err != nil {
		return persistence.Enrollment{}, r.mapper.MapError(err)
	}
	return enrollment, nil
}

// ListEnrollments returns a workshop's enrollments ordered by email.
func (r *EnrollmentRepository) ListEnrollments(ctx context.Context, workshopID string) ([]persistence.Enrollment, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT workshop_id, student_email, payment_status, enrolled_at, updated_at
		FROM enrollments
		WHERE workshop_id = ?
		ORDER BY student_email
	`, workshopID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	enrollments := make([]persistence.Enrollment, 0)
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, enrollment)
	}
	return enrollments, rows.Err()
}

func scanEnrollment(row rowScanner) (persistence.Enrollment, error) {
	var (
		enrollment           persistence.Enrollment
		enrolledAt, updateAt string
	)
	if err := row.Scan(&enrollment.WorkshopID, &enrollment.StudentEmail, &enrollment.PaymentStatus, &enrolledAt, &updateAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Enrollment{}, persistence.ErrNotFound
		}
		return persistence.Enrollment{}, err
	}

	var err error
	if enrollment.EnrolledAt, err = time.Parse(timeLayout, enrolledAt); err != nil {
		return persistence.Enrollment{}, fmt.Errorf("parse enrolled_at: %w", err)
	}
	if enrollment.UpdatedAt, err = time.Parse(timeLayout, updateAt); err != nil {
		return persistence.Enrollment{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return enrollment, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
