package application

import (
	"time"

	"github.com/example/workshop-scheduler/internal/ledger"
	"github.com/example/workshop-scheduler/internal/recurrence"
)

// Principal represents the authenticated caller invoking a service operation.
type Principal struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// Workshop is a multi-day event run by one mentor.
type Workshop struct {
	ID          string
	Title       string
	MentorID    string
	MentorEmail string
	Schedule    recurrence.Schedule
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScheduleKind returns the kind of the workshop's schedule, or "" when unset.
func (w Workshop) ScheduleKind() recurrence.Kind {
	if w.Schedule == nil {
		return ""
	}
	return w.Schedule.Kind()
}

// WorkshopInput carries the mutable attributes of a workshop.
type WorkshopInput struct {
	Title       string
	MentorID    string
	MentorEmail string
	Schedule    recurrence.Schedule
}

// CreateWorkshopParams wraps a workshop creation request.
type CreateWorkshopParams struct {
	Principal Principal
	Input     WorkshopInput
}

// UpdateScheduleParams replaces the schedule of an existing workshop.
type UpdateScheduleParams struct {
	Principal  Principal
	WorkshopID string
	Schedule   recurrence.Schedule
}

// UpdateScheduleResult reports the updated workshop and any ledger entries discarded with it.
type UpdateScheduleResult struct {
	Workshop     Workshop
	LinksCleared int
}

// PaymentStatus tracks whether a student's seat is paid for.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Valid reports whether the status is one of the known values.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentConfirmed, PaymentRefunded:
		return true
	}
	return false
}

// Enrollment links a student to a workshop.
type Enrollment struct {
	WorkshopID    string
	StudentEmail  string
	PaymentStatus PaymentStatus
	EnrolledAt    time.Time
	UpdatedAt     time.Time
}

// EnrollParams registers a student for a workshop.
type EnrollParams struct {
	Principal    Principal
	WorkshopID   string
	StudentEmail string
}

// SetPaymentStatusParams changes the payment state of an enrollment.
type SetPaymentStatusParams struct {
	Principal    Principal
	WorkshopID   string
	StudentEmail string
	Status       PaymentStatus
}

// LinkStatus classifies a session's meeting link.
type LinkStatus string

const (
	// LinkStatusNoLink is the zero value; evaluations never return it.
	LinkStatusNoLink LinkStatus = ""
	// LinkStatusPending means the generation window has not opened yet.
	LinkStatusPending LinkStatus = "pending"
	// LinkStatusEligible means a link may be generated now.
	LinkStatusEligible LinkStatus = "eligible"
	// LinkStatusGenerated means the ledger already holds the session's link.
	LinkStatusGenerated LinkStatus = "generated"
)

// RequestLinkParams identifies the session a caller wants a meeting link for.
type RequestLinkParams struct {
	Principal     Principal
	WorkshopID    string
	DayIndex      int
	AllowOverride bool
}

// LinkPreview is the read-only evaluation of one session.
type LinkPreview struct {
	WorkshopID    string
	DayIndex      int
	Start         time.Time
	Status        LinkStatus
	Link          string
	GeneratedAt   time.Time
	OpensAt       time.Time
	WaitRemaining time.Duration
}

// SessionLink is the ledger entry returned by a successful link request.
type SessionLink struct {
	WorkshopID  string
	DayIndex    int
	Link        string
	Start       time.Time
	GeneratedAt time.Time
	// Created is true only for the call that committed the link.
	Created bool
}

// sessionLinkFromRecord converts a ledger record. Timestamps are reported in
// loc when it is set, so a link reads the same whichever backend stored it.
func sessionLinkFromRecord(record ledger.Record, created bool, loc *time.Location) SessionLink {
	link := SessionLink{
		WorkshopID:  record.WorkshopID,
		DayIndex:    record.DayIndex,
		Link:        record.Link,
		Start:       record.ScheduledFor,
		GeneratedAt: record.GeneratedAt,
		Created:     created,
	}
	if loc != nil {
		link.Start = link.Start.In(loc)
		link.GeneratedAt = link.GeneratedAt.In(loc)
	}
	return link
}

// MeetingRequest is what the external meeting provider receives.
type MeetingRequest struct {
	WorkshopID string
	DayIndex   int
	Title      string
	Start      time.Time
	Duration   time.Duration
	Attendees  []string
}

// Meeting is the provider's answer to a MeetingRequest.
type Meeting struct {
	Link       string
	ProviderID string
}

// LinkIssuedNotice is sent to attendees after a link has been committed.
type LinkIssuedNotice struct {
	Workshop  Workshop
	Link      SessionLink
	Attendees []string
}

// LinksInvalidatedNotice is sent when a schedule change discards committed links.
type LinksInvalidatedNotice struct {
	Workshop  Workshop
	Links     []SessionLink
	Attendees []string
}
