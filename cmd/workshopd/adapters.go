package main

import (
	"context"

	"github.com/example/workshop-scheduler/internal/application"
	"github.com/example/workshop-scheduler/internal/persistence"
)

type workshopRepositoryAdapter struct {
	repo persistence.WorkshopRepository
}

func newWorkshopRepositoryAdapter(repo persistence.WorkshopRepository) *workshopRepositoryAdapter {
	return &workshopRepositoryAdapter{repo: repo}
}

func (a *workshopRepositoryAdapter) CreateWorkshop(ctx context.Context, workshop application.Workshop) (application.Workshop, error) {
	if err := a.repo.CreateWorkshop(ctx, toPersistenceWorkshop(workshop)); err != nil {
		return application.Workshop{}, err
	}
	return a.GetWorkshop(ctx, workshop.ID)
}

func (a *workshopRepositoryAdapter) GetWorkshop(ctx context.Context, id string) (application.Workshop, error) {
	stored, err := a.repo.GetWorkshop(ctx, id)
	if err != nil {
		return application.Workshop{}, err
	}
	return toApplicationWorkshop(stored)
}

func (a *workshopRepositoryAdapter) UpdateWorkshop(ctx context.Context, workshop application.Workshop) (application.Workshop, error) {
	if err := a.repo.UpdateWorkshop(ctx, toPersistenceWorkshop(workshop)); err != nil {
		return application.Workshop{}, err
	}
	return a.GetWorkshop(ctx, workshop.ID)
}

func (a *workshopRepositoryAdapter) DeleteWorkshop(ctx context.Context, id string) error {
	return a.repo.DeleteWorkshop(ctx, id)
}

func (a *workshopRepositoryAdapter) ListWorkshops(ctx context.Context) ([]application.Workshop, error) {
	models, err := a.repo.ListWorkshops(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	workshops := make([]application.Workshop, 0, len(models))
	for _, model := range models {
		workshop, err := toApplicationWorkshop(model)
		if err != nil {
			return nil, err
		}
		workshops = append(workshops, workshop)
	}
	return workshops, nil
}

type enrollmentRepositoryAdapter struct {
	repo persistence.EnrollmentRepository
}

func newEnrollmentRepositoryAdapter(repo persistence.EnrollmentRepository) *enrollmentRepositoryAdapter {
	return &enrollmentRepositoryAdapter{repo: repo}
}

func (a *enrollmentRepositoryAdapter) UpsertEnrollment(ctx context.Context, enrollment application.Enrollment) (application.Enrollment, error) {
	if err := a.repo.UpsertEnrollment(ctx, toPersistenceEnrollment(enrollment)); err != nil {
		return application.Enrollment{}, err
	}
	return a.GetEnrollment(ctx, enrollment.WorkshopID, enrollment.StudentEmail)
}

func (a *enrollmentRepositoryAdapter) GetEnrollment(ctx context.Context, workshopID, studentEmail string) (application.Enrollment, error) {
	stored, err := a.repo.GetEnrollment(ctx, workshopID, studentEmail)
	if err != nil {
		return application.Enrollment{}, err
	}
	return toApplicationEnrollment(stored), nil
}

func (a *enrollmentRepositoryAdapter) ListEnrollments(ctx context.Context, workshopID string) ([]application.Enrollment, error) {
	models, err := a.repo.ListEnrollments(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	enrollments := make([]application.Enrollment, 0, len(models))
	for _, model := range models {
		enrollments = append(enrollments, toApplicationEnrollment(model))
	}
	return enrollments, nil
}

func toApplicationWorkshop(model persistence.Workshop) (application.Workshop, error) {
	schedule, err := model.Schedule()
	if err != nil {
		return application.Workshop{}, err
	}
	return application.Workshop{
		ID:          model.ID,
		Title:       model.Title,
		MentorID:    model.MentorID,
		MentorEmail: model.MentorEmail,
		Schedule:    schedule,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}, nil
}

func toPersistenceWorkshop(workshop application.Workshop) persistence.Workshop {
	model := persistence.Workshop{
		ID:          workshop.ID,
		Title:       workshop.Title,
		MentorID:    workshop.MentorID,
		MentorEmail: workshop.MentorEmail,
		CreatedAt:   workshop.CreatedAt,
		UpdatedAt:   workshop.UpdatedAt,
	}
	model.SetSchedule(workshop.Schedule)
	return model
}

func toApplicationEnrollment(model persistence.Enrollment) application.Enrollment {
	return application.Enrollment{
		WorkshopID:    model.WorkshopID,
		StudentEmail:  model.StudentEmail,
		PaymentStatus: application.PaymentStatus(model.PaymentStatus),
		EnrolledAt:    model.EnrolledAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

func toPersistenceEnrollment(enrollment application.Enrollment) persistence.Enrollment {
	return persistence.Enrollment{
		WorkshopID:    enrollment.WorkshopID,
		StudentEmail:  enrollment.StudentEmail,
		PaymentStatus: string(enrollment.PaymentStatus),
		EnrolledAt:    enrollment.EnrolledAt,
		UpdatedAt:     enrollment.UpdatedAt,
	}
}
