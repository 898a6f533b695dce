package persistence

import (
	"context"

	"github.com/example/workshop-scheduler/internal/ledger"
)

// WorkshopRepository exposes CRUD operations for workshops and their schedules.
type WorkshopRepository interface {
	CreateWorkshop(ctx context.Context, workshop Workshop) error
	UpdateWorkshop(ctx context.Context, workshop Workshop) error
	GetWorkshop(ctx context.Context, id string) (Workshop, error)
	ListWorkshops(ctx context.Context) ([]Workshop, error)
	DeleteWorkshop(ctx context.Context, id string) error
}

// EnrollmentRepository stores workshop enrollments.
type EnrollmentRepository interface {
	UpsertEnrollment(ctx context.Context, enrollment Enrollment) error
	GetEnrollment(ctx context.Context, workshopID, studentEmail string) (Enrollment, error)
	ListEnrollments(ctx context.Context, workshopID string) ([]Enrollment, error)
}

// Storage is the full set of repositories a backend provides.
type Storage interface {
	WorkshopRepository
	EnrollmentRepository
	ledger.Store
	Close() error
}
