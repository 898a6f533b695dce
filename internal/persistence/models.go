package persistence

import "time"

// Schedule types stored in workshops.schedule_type.
const (
	ScheduleTypeRecurring = "recurring"
	ScheduleTypeCustom    = "custom"
)

// Payment states stored in enrollments.payment_status.
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentRefunded  = "refunded"
)

// Workshop is a mentor's multi-day workshop and its schedule definition.
//
// StartDate and Slots are set for recurring schedules; Sessions for custom
// ones. Dates are YYYY-MM-DD and times are 24-hour HH:MM.
type Workshop struct {
	ID           string
	Title        string
	MentorID     string
	MentorEmail  string
	ScheduleType string
	NumberOfDays int
	StartDate    string
	Slots        []PatternSlot
	Sessions     []CustomSession
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PatternSlot is one weekday/time entry of a recurring pattern, kept in author order.
type PatternSlot struct {
	Position  int
	Weekday   time.Weekday
	TimeOfDay string
}

// CustomSession is the explicit date and time of one day of a custom schedule.
type CustomSession struct {
	DayIndex  int
	Date      string
	TimeOfDay string
}

// Enrollment links a student to a workshop with a payment state.
type Enrollment struct {
	WorkshopID    string
	StudentEmail  string
	PaymentStatus string
	EnrolledAt    time.Time
	UpdatedAt     time.Time
}
