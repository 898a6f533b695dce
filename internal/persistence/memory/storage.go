// Package memory provides a process-local persistence backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/example/workshop-scheduler/internal/ledger"
	"github.com/example/workshop-scheduler/internal/persistence"
)

// Storage keeps workshops and enrollments in maps and delegates the link
// ledger to ledger.MemoryStore.
type Storage struct {
	*ledger.MemoryStore

	mu          sync.RWMutex
	workshops   map[string]persistence.Workshop
	enrollments map[string]map[string]persistence.Enrollment
}

var _ persistence.Storage = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		MemoryStore: ledger.NewMemoryStore(),
		workshops:   make(map[string]persistence.Workshop),
		enrollments: make(map[string]map[string]persistence.Enrollment),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// CreateWorkshop stores a new workshop.
func (s *Storage) CreateWorkshop(_ context.Context, workshop persistence.Workshop) error {
	if workshop.ID == "" || workshop.NumberOfDays <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workshops[workshop.ID]; ok {
		return fmt.Errorf("memory: workshop %s: %w", workshop.ID, persistence.ErrDuplicate)
	}
	s.workshops[workshop.ID] = cloneWorkshop(workshop)
	return nil
}

// UpdateWorkshop replaces an existing workshop.
func (s *Storage) UpdateWorkshop(_ context.Context, workshop persistence.Workshop) error {
	if workshop.NumberOfDays <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workshops[workshop.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.workshops[workshop.ID] = cloneWorkshop(workshop)
	return nil
}

// GetWorkshop returns a workshop by id.
func (s *Storage) GetWorkshop(_ context.Context, id string) (persistence.Workshop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workshop, ok := s.workshops[id]
	if !ok {
		return persistence.Workshop{}, persistence.ErrNotFound
	}
	return cloneWorkshop(workshop), nil
}

// ListWorkshops returns every workshop ordered by creation time.
func (s *Storage) ListWorkshops(_ context.Context) ([]persistence.Workshop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workshops := make([]persistence.Workshop, 0, len(s.workshops))
	for _, workshop := range s.workshops {
		workshops = append(workshops, cloneWorkshop(workshop))
	}
	sort.Slice(workshops, func(i, j int) bool {
		if workshops[i].CreatedAt.Equal(workshops[j].CreatedAt) {
			return workshops[i].ID < workshops[j].ID
		}
		return workshops[i].CreatedAt.Before(workshops[j].CreatedAt)
	})
	return workshops, nil
}

// DeleteWorkshop removes a workshop with its enrollments and ledger.
func (s *Storage) DeleteWorkshop(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.workshops[id]; !ok {
		s.mu.Unlock()
		return persistence.ErrNotFound
	}
	delete(s.workshops, id)
	delete(s.enrollments, id)
	s.mu.Unlock()

	return s.ClearLinks(ctx, id)
}

// UpsertEnrollment creates or replaces the enrollment of a student.
func (s *Storage) UpsertEnrollment(_ context.Context, enrollment persistence.Enrollment) error {
	email := normalizeEmail(enrollment.StudentEmail)
	if email == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workshops[enrollment.WorkshopID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	byEmail, ok := s.enrollments[enrollment.WorkshopID]
	if !ok {
		byEmail = make(map[string]persistence.Enrollment)
		s.enrollments[enrollment.WorkshopID] = byEmail
	}
	if existing, ok := byEmail[email]; ok {
		enrollment.EnrolledAt = existing.EnrolledAt
	}
	enrollment.StudentEmail = email
	byEmail[email] = enrollment
	return nil
}

// GetEnrollment returns the enrollment of one student.
func (s *Storage) GetEnrollment(_ context.Context, workshopID, studentEmail string) (persistence.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enrollment, ok := s.enrollments[workshopID][normalizeEmail(studentEmail)]
	if !ok {
		return persistence.Enrollment{}, persistence.ErrNotFound
	}
	return enrollment, nil
}

// ListEnrollments returns the enrollments of a workshop ordered by email.
func (s *Storage) ListEnrollments(_ context.Context, workshopID string) ([]persistence.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enrollments := make([]persistence.Enrollment, 0, len(s.enrollments[workshopID]))
	for _, enrollment := range s.enrollments[workshopID] {
		enrollments = append(enrollments, enrollment)
	}
	sort.Slice(enrollments, func(i, j int) bool {
		return enrollments[i].StudentEmail < enrollments[j].StudentEmail
	})
	return enrollments, nil
}

func cloneWorkshop(workshop persistence.Workshop) persistence.Workshop {
	clone := workshop
	clone.Slots = append([]persistence.PatternSlot(nil), workshop.Slots...)
	clone.Sessions = append([]persistence.CustomSession(nil), workshop.Sessions...)
	return clone
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
