package recurrence

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrOutOfRange indicates a day index outside [1, numberOfDays].
	ErrOutOfRange = errors.New("recurrence: day index out of range")
	// ErrMalformedSchedule indicates a schedule payload that is empty, unparseable, or inconsistent.
	ErrMalformedSchedule = errors.New("recurrence: malformed schedule")
)

// Kind names the variant of a schedule.
type Kind string

const (
	// KindRecurring is a weekly pattern repeated from a start date.
	KindRecurring Kind = "recurring"
	// KindCustom is an explicit list of dated sessions.
	KindCustom Kind = "custom"
)

// ParseKind validates a persisted or user supplied schedule kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindRecurring, KindCustom:
		return Kind(value), nil
	default:
		return "", fmt.Errorf("%w: unknown schedule type %q", ErrMalformedSchedule, value)
	}
}

// Schedule is implemented by Recurring and Custom only.
type Schedule interface {
	Kind() Kind
	Days() int
	Validate() error
	isSchedule()
}

// Slot is one entry of a weekly pattern.
type Slot struct {
	Weekday time.Weekday
	Time    TimeOfDay
}

// Recurring repeats a weekly pattern from StartDate until NumberOfDays sessions exist.
type Recurring struct {
	StartDate    Date
	Pattern      []Slot
	NumberOfDays int
}

// Kind implements Schedule.
func (Recurring) Kind() Kind { return KindRecurring }

// Days implements Schedule.
func (r Recurring) Days() int { return r.NumberOfDays }

// Validate reports ErrMalformedSchedule for an unusable pattern.
func (r Recurring) Validate() error {
	if r.NumberOfDays <= 0 {
		return fmt.Errorf("%w: number of days must be positive", ErrMalformedSchedule)
	}
	if !r.StartDate.Valid() {
		return fmt.Errorf("%w: start date is missing or invalid", ErrMalformedSchedule)
	}
	if len(r.Pattern) == 0 {
		return fmt.Errorf("%w: recurring pattern is empty", ErrMalformedSchedule)
	}
	for i, slot := range r.Pattern {
		if slot.Weekday < time.Sunday || slot.Weekday > time.Saturday {
			return fmt.Errorf("%w: pattern entry %d has an invalid weekday", ErrMalformedSchedule, i+1)
		}
		if !slot.Time.Valid() {
			return fmt.Errorf("%w: pattern entry %d has an invalid time", ErrMalformedSchedule, i+1)
		}
	}
	return nil
}

func (Recurring) isSchedule() {}

// Session is one explicitly dated session of a custom schedule.
type Session struct {
	Date Date
	Time TimeOfDay
}

// Custom lists every session explicitly; Sessions[d-1] is day d.
type Custom struct {
	NumberOfDays int
	Sessions     []Session
}

// NewCustom builds a custom schedule whose day count matches its sessions.
func NewCustom(sessions ...Session) Custom {
	return Custom{NumberOfDays: len(sessions), Sessions: append([]Session(nil), sessions...)}
}

// Kind implements Schedule.
func (Custom) Kind() Kind { return KindCustom }

// Days implements Schedule.
func (c Custom) Days() int { return c.NumberOfDays }

// Validate reports ErrMalformedSchedule when sessions and day count disagree.
func (c Custom) Validate() error {
	if c.NumberOfDays <= 0 {
		return fmt.Errorf("%w: number of days must be positive", ErrMalformedSchedule)
	}
	if len(c.Sessions) != c.NumberOfDays {
		return fmt.Errorf("%w: %d sessions listed for %d days", ErrMalformedSchedule, len(c.Sessions), c.NumberOfDays)
	}
	for i, session := range c.Sessions {
		if !session.Date.Valid() {
			return fmt.Errorf("%w: session %d has an invalid date", ErrMalformedSchedule, i+1)
		}
		if !session.Time.Valid() {
			return fmt.Errorf("%w: session %d has an invalid time", ErrMalformedSchedule, i+1)
		}
	}
	return nil
}

func (Custom) isSchedule() {}
