package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/workshop-scheduler/internal/recurrence"
)

var referenceStart = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

// recurringSchedule runs Mondays 10:00 and Wednesdays 14:00 from Monday 2024-03-04.
func recurringSchedule() recurrence.Recurring {
	return recurrence.Recurring{
		StartDate: recurrence.MustParseDate("2024-03-04"),
		Pattern: []recurrence.Slot{
			{Weekday: time.Monday, Time: recurrence.MustParseTimeOfDay("10:00")},
			{Weekday: time.Wednesday, Time: recurrence.MustParseTimeOfDay("14:00")},
		},
		NumberOfDays: 4,
	}
}

func testWorkshop() Workshop {
	return Workshop{
		ID:          "ws-1",
		Title:       "Go in Production",
		MentorID:    "mentor-1",
		MentorEmail: "mentor@example.com",
		Schedule:    recurringSchedule(),
	}
}

type workshopRepoStub struct {
	mu        sync.Mutex
	workshops map[string]Workshop
	err       error
	updateErr error
}

func newWorkshopRepoStub(workshops ...Workshop) *workshopRepoStub {
	stub := &workshopRepoStub{workshops: make(map[string]Workshop)}
	for _, w := range workshops {
		stub.workshops[w.ID] = w
	}
	return stub
}

func (s *workshopRepoStub) GetWorkshop(ctx context.Context, id string) (Workshop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Workshop{}, s.err
	}
	w, ok := s.workshops[id]
	if !ok {
		return Workshop{}, ErrNotFound
	}
	return w, nil
}

func (s *workshopRepoStub) CreateWorkshop(ctx context.Context, workshop Workshop) (Workshop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Workshop{}, s.err
	}
	if _, ok := s.workshops[workshop.ID]; ok {
		return Workshop{}, ErrAlreadyExists
	}
	s.workshops[workshop.ID] = workshop
	return workshop, nil
}

func (s *workshopRepoStub) UpdateWorkshop(ctx context.Context, workshop Workshop) (Workshop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Workshop{}, s.err
	}
	if s.updateErr != nil {
		return Workshop{}, s.updateErr
	}
	if _, ok := s.workshops[workshop.ID]; !ok {
		return Workshop{}, ErrNotFound
	}
	s.workshops[workshop.ID] = workshop
	return workshop, nil
}

func (s *workshopRepoStub) DeleteWorkshop(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workshops[id]; !ok {
		return ErrNotFound
	}
	delete(s.workshops, id)
	return nil
}

func (s *workshopRepoStub) ListWorkshops(ctx context.Context) ([]Workshop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Workshop, 0, len(s.workshops))
	for _, w := range s.workshops {
		out = append(out, w)
	}
	return out, nil
}

type enrollmentRepoStub struct {
	mu          sync.Mutex
	enrollments []Enrollment
}

func (s *enrollmentRepoStub) ListEnrollments(ctx context.Context, workshopID string) ([]Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Enrollment
	for _, e := range s.enrollments {
		if e.WorkshopID == workshopID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *enrollmentRepoStub) GetEnrollment(ctx context.Context, workshopID, email string) (Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.enrollments {
		if e.WorkshopID == workshopID && strings.EqualFold(e.StudentEmail, email) {
			return e, nil
		}
	}
	return Enrollment{}, ErrNotFound
}

func (s *enrollmentRepoStub) UpsertEnrollment(ctx context.Context, enrollment Enrollment) (Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.enrollments {
		if e.WorkshopID == enrollment.WorkshopID && strings.EqualFold(e.StudentEmail, enrollment.StudentEmail) {
			s.enrollments[i] = enrollment
			return enrollment, nil
		}
	}
	s.enrollments = append(s.enrollments, enrollment)
	return enrollment, nil
}

type generatorStub struct {
	calls    atomic.Int32
	delay    time.Duration
	err      error
	requests chan MeetingRequest
}

func (g *generatorStub) Create(ctx context.Context, request MeetingRequest) (Meeting, error) {
	n := g.calls.Add(1)
	if g.requests != nil {
		g.requests <- request
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.err != nil {
		return Meeting{}, g.err
	}
	return Meeting{
		Link:       fmt.Sprintf("https://meet.example/%s/%d/%d", request.WorkshopID, request.DayIndex, n),
		ProviderID: fmt.Sprintf("m-%d", n),
	}, nil
}

type notifierStub struct {
	mu          sync.Mutex
	issued      []LinkIssuedNotice
	invalidated []LinksInvalidatedNotice
	err         error
}

func (n *notifierStub) LinkIssued(ctx context.Context, notice LinkIssuedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, notice)
	return n.err
}

func (n *notifierStub) LinksInvalidated(ctx context.Context, notice LinksInvalidatedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invalidated = append(n.invalidated, notice)
	return n.err
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
