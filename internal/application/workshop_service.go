package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/workshop-scheduler/internal/ledger"
	"github.com/example/workshop-scheduler/internal/persistence"
	"github.com/example/workshop-scheduler/internal/recurrence"
)

// WorkshopRepository captures the persistence interactions needed by the service.
type WorkshopRepository interface {
	WorkshopReader
	CreateWorkshop(ctx context.Context, workshop Workshop) (Workshop, error)
	UpdateWorkshop(ctx context.Context, workshop Workshop) (Workshop, error)
	DeleteWorkshop(ctx context.Context, id string) error
	ListWorkshops(ctx context.Context) ([]Workshop, error)
}

// EnrollmentRepository persists enrollments.
type EnrollmentRepository interface {
	EnrollmentReader
	UpsertEnrollment(ctx context.Context, enrollment Enrollment) (Enrollment, error)
	GetEnrollment(ctx context.Context, workshopID, studentEmail string) (Enrollment, error)
}

var emailValidator = validator.New()

// WorkshopService manages workshops, their schedules, and enrollments.
type WorkshopService struct {
	workshops   WorkshopRepository
	enrollments EnrollmentRepository
	links       ledger.Store
	notifier    LinkNotifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewWorkshopService wires dependencies for workshop operations.
func NewWorkshopService(workshops WorkshopRepository, enrollments EnrollmentRepository, links ledger.Store, idGenerator func() string, now func() time.Time) *WorkshopService {
	return NewWorkshopServiceWithLogger(workshops, enrollments, links, nil, idGenerator, now, nil)
}

// NewWorkshopServiceWithLogger wires dependencies, an optional notifier, and a logger.
func NewWorkshopServiceWithLogger(workshops WorkshopRepository, enrollments EnrollmentRepository, links ledger.Store, notifier LinkNotifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *WorkshopService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &WorkshopService{
		workshops:   workshops,
		enrollments: enrollments,
		links:       links,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *WorkshopService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "WorkshopService", operation, attrs...)
}

// CreateWorkshop validates and stores a new workshop. Mentors may only create
// workshops they run; admins may create any.
func (s *WorkshopService) CreateWorkshop(ctx context.Context, params CreateWorkshopParams) (workshop Workshop, err error) {
	if s == nil {
		err = fmt.Errorf("WorkshopService is nil")
		return
	}
	input := params.Input
	principal := params.Principal
	if strings.TrimSpace(input.MentorID) == "" {
		input.MentorID = principal.UserID
	}
	if strings.TrimSpace(input.MentorEmail) == "" && input.MentorID == principal.UserID {
		input.MentorEmail = principal.Email
	}

	logger := s.loggerWith(ctx, "CreateWorkshop", "mentor_id", input.MentorID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create workshop", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("workshop_id", workshop.ID, "schedule_type", workshop.ScheduleKind()).InfoContext(ctx, "workshop created")
	}()

	if input.MentorID != principal.UserID && !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	validateWorkshopInput(input, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.workshops == nil {
		err = fmt.Errorf("workshop repository not configured")
		return
	}

	createdAt := s.now()
	workshop = Workshop{
		ID:          s.idGenerator(),
		Title:       strings.TrimSpace(input.Title),
		MentorID:    strings.TrimSpace(input.MentorID),
		MentorEmail: normalizeEmail(input.MentorEmail),
		Schedule:    input.Schedule,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	workshop, err = s.workshops.CreateWorkshop(ctx, workshop)
	if err != nil {
		err = mapWorkshopRepoError(err)
	}
	return
}

// GetWorkshop returns a workshop by identifier.
func (s *WorkshopService) GetWorkshop(ctx context.Context, id string) (Workshop, error) {
	if s == nil {
		return Workshop{}, fmt.Errorf("WorkshopService is nil")
	}
	if s.workshops == nil {
		return Workshop{}, fmt.Errorf("workshop repository not configured")
	}
	if strings.TrimSpace(id) == "" {
		return Workshop{}, ErrNotFound
	}
	workshop, err := s.workshops.GetWorkshop(ctx, id)
	if err != nil {
		err = mapWorkshopRepoError(err)
		s.loggerWith(ctx, "GetWorkshop", "workshop_id", id).
			ErrorContext(ctx, "failed to load workshop", "error", err, "error_kind", ErrorKind(err))
		return Workshop{}, err
	}
	return workshop, nil
}

// ListWorkshops returns every workshop.
func (s *WorkshopService) ListWorkshops(ctx context.Context) ([]Workshop, error) {
	if s == nil {
		return nil, fmt.Errorf("WorkshopService is nil")
	}
	if s.workshops == nil {
		return nil, fmt.Errorf("workshop repository not configured")
	}
	workshops, err := s.workshops.ListWorkshops(ctx)
	if err != nil {
		return nil, mapWorkshopRepoError(err)
	}
	return workshops, nil
}

// UpdateSchedule replaces a workshop's schedule. Switching between recurring
// and custom schedules clears the link ledger, since day indexes then refer to
// different instants; attendees of discarded links are notified.
func (s *WorkshopService) UpdateSchedule(ctx context.Context, params UpdateScheduleParams) (result UpdateScheduleResult, err error) {
	if s == nil {
		err = fmt.Errorf("WorkshopService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSchedule", "workshop_id", params.WorkshopID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"schedule_type", result.Workshop.ScheduleKind(),
			"links_cleared", result.LinksCleared,
		).InfoContext(ctx, "schedule updated")
	}()

	var existing Workshop
	existing, err = s.GetWorkshop(ctx, params.WorkshopID)
	if err != nil {
		return
	}
	if !canManage(params.Principal, existing) {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	validateSchedule(params.Schedule, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	kindChanged := existing.ScheduleKind() != params.Schedule.Kind()

	updated := existing
	updated.Schedule = params.Schedule
	updated.UpdatedAt = s.now()
	if updated, err = s.workshops.UpdateWorkshop(ctx, updated); err != nil {
		err = mapWorkshopRepoError(err)
		return
	}

	// The ledger is only touched once the new schedule is stored.
	var discarded []ledger.Record
	if kindChanged {
		sessions := ledger.ForWorkshop(s.links, existing.ID)
		if discarded, err = sessions.All(ctx); err != nil {
			err = mapLedgerError(err)
			return
		}
		if len(discarded) > 0 {
			if err = sessions.Clear(ctx); err != nil {
				err = mapLedgerError(err)
				return
			}
		}
	}

	result = UpdateScheduleResult{Workshop: updated, LinksCleared: len(discarded)}
	if len(discarded) > 0 {
		s.notifyInvalidated(ctx, logger, updated, discarded)
	}
	return
}

// DeleteWorkshop removes a workshop along with its enrollments and links.
func (s *WorkshopService) DeleteWorkshop(ctx context.Context, principal Principal, id string) (err error) {
	if s == nil {
		return fmt.Errorf("WorkshopService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteWorkshop", "workshop_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete workshop", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "workshop deleted")
	}()

	var existing Workshop
	existing, err = s.GetWorkshop(ctx, id)
	if err != nil {
		return
	}
	if !canManage(principal, existing) {
		err = ErrUnauthorized
		return
	}

	if err = s.workshops.DeleteWorkshop(ctx, existing.ID); err != nil {
		err = mapWorkshopRepoError(err)
		return
	}
	// The ledger may live outside the workshop database.
	if s.links != nil {
		if err = ledger.ForWorkshop(s.links, existing.ID).Clear(ctx); err != nil {
			err = mapLedgerError(err)
		}
	}
	return
}

// Enroll registers a student with a pending payment. Students may enroll
// themselves; mentors and admins may enroll anyone.
func (s *WorkshopService) Enroll(ctx context.Context, params EnrollParams) (enrollment Enrollment, err error) {
	if s == nil {
		err = fmt.Errorf("WorkshopService is nil")
		return
	}
	email := normalizeEmail(params.StudentEmail)

	logger := s.loggerWith(ctx, "Enroll", "workshop_id", params.WorkshopID, "student_email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to enroll student", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("payment_status", enrollment.PaymentStatus).InfoContext(ctx, "student enrolled")
	}()

	vErr := &ValidationError{}
	validateEmail("student_email", email, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var workshop Workshop
	workshop, err = s.GetWorkshop(ctx, params.WorkshopID)
	if err != nil {
		return
	}
	if !canManage(params.Principal, workshop) && normalizeEmail(params.Principal.Email) != email {
		err = ErrUnauthorized
		return
	}
	if s.enrollments == nil {
		err = fmt.Errorf("enrollment repository not configured")
		return
	}

	existing, gErr := s.enrollments.GetEnrollment(ctx, workshop.ID, email)
	switch {
	case gErr == nil:
		enrollment = existing
		return
	case !errors.Is(mapWorkshopRepoError(gErr), ErrNotFound):
		err = mapWorkshopRepoError(gErr)
		return
	}

	now := s.now()
	enrollment, err = s.enrollments.UpsertEnrollment(ctx, Enrollment{
		WorkshopID:    workshop.ID,
		StudentEmail:  email,
		PaymentStatus: PaymentPending,
		EnrolledAt:    now,
		UpdatedAt:     now,
	})
	if err != nil {
		err = mapWorkshopRepoError(err)
	}
	return
}

// SetPaymentStatus records a payment change for an enrollment. Only the
// workshop's mentor or an admin may change it.
func (s *WorkshopService) SetPaymentStatus(ctx context.Context, params SetPaymentStatusParams) (enrollment Enrollment, err error) {
	if s == nil {
		err = fmt.Errorf("WorkshopService is nil")
		return
	}
	email := normalizeEmail(params.StudentEmail)

	logger := s.loggerWith(ctx, "SetPaymentStatus",
		"workshop_id", params.WorkshopID,
		"student_email", email,
		"payment_status", params.Status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set payment status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "payment status updated")
	}()

	if !params.Status.Valid() {
		vErr := &ValidationError{}
		vErr.add("payment_status", "payment status must be pending, confirmed, or refunded")
		err = vErr
		return
	}

	var workshop Workshop
	workshop, err = s.GetWorkshop(ctx, params.WorkshopID)
	if err != nil {
		return
	}
	if !canManage(params.Principal, workshop) {
		err = ErrUnauthorized
		return
	}
	if s.enrollments == nil {
		err = fmt.Errorf("enrollment repository not configured")
		return
	}

	enrollment, err = s.enrollments.GetEnrollment(ctx, workshop.ID, email)
	if err != nil {
		err = mapWorkshopRepoError(err)
		return
	}
	enrollment.PaymentStatus = params.Status
	enrollment.UpdatedAt = s.now()

	enrollment, err = s.enrollments.UpsertEnrollment(ctx, enrollment)
	if err != nil {
		err = mapWorkshopRepoError(err)
	}
	return
}

// ListEnrollments returns a workshop's enrollments to its mentor or an admin.
func (s *WorkshopService) ListEnrollments(ctx context.Context, principal Principal, workshopID string) ([]Enrollment, error) {
	if s == nil {
		return nil, fmt.Errorf("WorkshopService is nil")
	}
	workshop, err := s.GetWorkshop(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	if !canManage(principal, workshop) {
		return nil, ErrUnauthorized
	}
	if s.enrollments == nil {
		return nil, fmt.Errorf("enrollment repository not configured")
	}
	enrollments, err := s.enrollments.ListEnrollments(ctx, workshop.ID)
	if err != nil {
		return nil, mapWorkshopRepoError(err)
	}
	return enrollments, nil
}

func (s *WorkshopService) notifyInvalidated(ctx context.Context, logger *slog.Logger, workshop Workshop, records []ledger.Record) {
	if s.notifier == nil {
		return
	}
	attendees, err := collectAttendees(ctx, s.enrollments, workshop)
	if err != nil {
		logger.WarnContext(ctx, "invalidation notice skipped", "error", err)
		return
	}
	links := make([]SessionLink, 0, len(records))
	for _, record := range records {
		links = append(links, sessionLinkFromRecord(record, false, nil))
	}
	notice := LinksInvalidatedNotice{Workshop: workshop, Links: links, Attendees: attendees}
	if err := s.notifier.LinksInvalidated(ctx, notice); err != nil {
		logger.WarnContext(ctx, "invalidation notification failed", "error", err)
	}
}

func canManage(principal Principal, workshop Workshop) bool {
	if principal.IsAdmin {
		return true
	}
	return principal.UserID != "" && principal.UserID == workshop.MentorID
}

func validateWorkshopInput(input WorkshopInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if strings.TrimSpace(input.MentorID) == "" {
		vErr.add("mentor_id", "mentor is required")
	}
	validateEmail("mentor_email", input.MentorEmail, vErr)
	validateSchedule(input.Schedule, vErr)
}

func validateSchedule(schedule recurrence.Schedule, vErr *ValidationError) {
	if schedule == nil {
		vErr.add("schedule", "schedule is required")
		return
	}
	if err := schedule.Validate(); err != nil {
		vErr.add("schedule", strings.TrimPrefix(err.Error(), recurrence.ErrMalformedSchedule.Error()+": "))
	}
}

func validateEmail(field, email string, vErr *ValidationError) {
	email = strings.TrimSpace(email)
	if email == "" {
		vErr.add(field, "email is required")
		return
	}
	if err := emailValidator.Var(email, "email"); err != nil {
		vErr.add(field, "email is invalid")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapWorkshopRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedSchedule) {
		return err
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("workshop", "workshop violates a storage constraint")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("workshop_id", "related workshop is missing")
		return vErr
	}
	return err
}
