package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/workshop-scheduler/internal/ledger"
	"github.com/example/workshop-scheduler/internal/persistence"
	"github.com/example/workshop-scheduler/internal/recurrence"
)

var (
	workshopCounter   uint64
	enrollmentCounter uint64
)

// referenceTime is the Monday 2024-03-04 07:00 UTC, three hours before the
// first session of the default recurring fixture.
var referenceTime = time.Date(2024, time.March, 4, 7, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// DefaultRecurring is Monday 10:00 and Wednesday 14:00 from 2024-03-04 for four days.
func DefaultRecurring() recurrence.Recurring {
	return recurrence.Recurring{
		StartDate: recurrence.MustParseDate("2024-03-04"),
		Pattern: []recurrence.Slot{
			{Weekday: time.Monday, Time: recurrence.MustParseTimeOfDay("10:00")},
			{Weekday: time.Wednesday, Time: recurrence.MustParseTimeOfDay("14:00")},
		},
		NumberOfDays: 4,
	}
}

// ----------------------------- Workshop fixtures -----------------------------

// WorkshopFixture is a deterministic workshop that can be materialised for
// persistence tests.
type WorkshopFixture struct {
	ID          string
	Title       string
	MentorID    string
	MentorEmail string
	Schedule    recurrence.Schedule
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkshopOption configures the generated workshop fixture.
type WorkshopOption func(*WorkshopFixture)

// NewWorkshopFixture returns a workshop fixture on DefaultRecurring with optional overrides.
func NewWorkshopFixture(opts ...WorkshopOption) WorkshopFixture {
	idx := atomic.AddUint64(&workshopCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := WorkshopFixture{
		ID:          fmt.Sprintf("ws-%03d", idx),
		Title:       fmt.Sprintf("Workshop %03d", idx),
		MentorID:    fmt.Sprintf("mentor-%03d", idx),
		MentorEmail: fmt.Sprintf("mentor-%03d@example.com", idx),
		Schedule:    DefaultRecurring(),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithWorkshopID overrides the generated workshop ID.
func WithWorkshopID(id string) WorkshopOption {
	return func(f *WorkshopFixture) {
		f.ID = id
	}
}

// WithWorkshopTitle overrides the generated title.
func WithWorkshopTitle(title string) WorkshopOption {
	return func(f *WorkshopFixture) {
		f.Title = title
	}
}

// WithMentor sets the mentor identity.
func WithMentor(id, email string) WorkshopOption {
	return func(f *WorkshopFixture) {
		f.MentorID = id
		f.MentorEmail = email
	}
}

// WithSchedule replaces the schedule.
func WithSchedule(schedule recurrence.Schedule) WorkshopOption {
	return func(f *WorkshopFixture) {
		f.Schedule = schedule
	}
}

// WithCustomSessions replaces the schedule with a custom one built from
// "YYYY-MM-DD HH:MM" entries.
func WithCustomSessions(entries ...string) WorkshopOption {
	return func(f *WorkshopFixture) {
		sessions := make([]recurrence.Session, 0, len(entries))
		for _, entry := range entries {
			date, tod, _ := strings.Cut(entry, " ")
			sessions = append(sessions, recurrence.Session{
				Date: recurrence.MustParseDate(date),
				Time: recurrence.MustParseTimeOfDay(tod),
			})
		}
		f.Schedule = recurrence.NewCustom(sessions...)
	}
}

// WithWorkshopTimestamps sets both created and updated timestamps.
func WithWorkshopTimestamps(created, updated time.Time) WorkshopOption {
	return func(f *WorkshopFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence converts the fixture into a persistence model.
func (f WorkshopFixture) Persistence() persistence.Workshop {
	workshop := persistence.Workshop{
		ID:          f.ID,
		Title:       f.Title,
		MentorID:    f.MentorID,
		MentorEmail: f.MentorEmail,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	workshop.SetSchedule(f.Schedule)
	return workshop
}

// ---------------------------- Enrollment fixtures ----------------------------

// EnrollmentFixture is a deterministic enrollment.
type EnrollmentFixture struct {
	WorkshopID    string
	StudentEmail  string
	PaymentStatus string
	EnrolledAt    time.Time
	UpdatedAt     time.Time
}

// EnrollmentOption configures the generated enrollment fixture.
type EnrollmentOption func(*EnrollmentFixture)

// NewEnrollmentFixture returns a confirmed enrollment in workshopID.
func NewEnrollmentFixture(workshopID string, opts ...EnrollmentOption) EnrollmentFixture {
	idx := atomic.AddUint64(&enrollmentCounter, 1)
	enrolled := referenceTime.Add(-time.Duration(idx) * time.Minute)
	fixture := EnrollmentFixture{
		WorkshopID:    workshopID,
		StudentEmail:  fmt.Sprintf("student-%03d@example.com", idx),
		PaymentStatus: persistence.PaymentConfirmed,
		EnrolledAt:    enrolled,
		UpdatedAt:     enrolled,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithStudentEmail overrides the generated student address.
func WithStudentEmail(email string) EnrollmentOption {
	return func(f *EnrollmentFixture) {
		f.StudentEmail = email
	}
}

// WithPaymentStatus overrides the payment state.
func WithPaymentStatus(status string) EnrollmentOption {
	return func(f *EnrollmentFixture) {
		f.PaymentStatus = status
	}
}

// Persistence converts the fixture into a persistence model.
func (f EnrollmentFixture) Persistence() persistence.Enrollment {
	return persistence.Enrollment{
		WorkshopID:    f.WorkshopID,
		StudentEmail:  f.StudentEmail,
		PaymentStatus: f.PaymentStatus,
		EnrolledAt:    f.EnrolledAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// ------------------------------- Link fixtures -------------------------------

// NewLinkRecord returns a ledger record for workshopID/dayIndex generated at ReferenceTime.
func NewLinkRecord(workshopID string, dayIndex int, scheduledFor time.Time) ledger.Record {
	return ledger.Record{
		WorkshopID:   workshopID,
		DayIndex:     dayIndex,
		Link:         fmt.Sprintf("https://meet.example.com/%s-%d", workshopID, dayIndex),
		ScheduledFor: scheduledFor,
		GeneratedAt:  referenceTime,
	}
}
