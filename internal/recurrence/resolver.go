package recurrence

import (
	"fmt"
	"sort"
	"time"
)

// SessionInstant is the resolved start of one numbered workshop session.
type SessionInstant struct {
	DayIndex int
	Start    time.Time
}

// Resolver maps (schedule, day index) pairs to instants in one operating timezone.
type Resolver struct {
	location *time.Location
}

// NewResolver constructs a Resolver for loc. If loc is nil, UTC is used.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{location: loc}
}

// Location returns the operating timezone.
func (r *Resolver) Location() *time.Location {
	if r == nil || r.location == nil {
		return time.UTC
	}
	return r.location
}

// Resolve returns the start of session dayIndex (1-based).
//
// Custom schedules read Sessions[dayIndex-1]. Recurring schedules expand the
// weekly pattern into a cycle of first occurrences on or after the start date,
// sorted ascending, and step through it one week per full pass.
func (r *Resolver) Resolve(schedule Schedule, dayIndex int) (SessionInstant, error) {
	if schedule == nil {
		return SessionInstant{}, fmt.Errorf("%w: schedule is missing", ErrMalformedSchedule)
	}
	if err := schedule.Validate(); err != nil {
		return SessionInstant{}, err
	}
	if dayIndex < 1 || dayIndex > schedule.Days() {
		return SessionInstant{}, fmt.Errorf("%w: day %d of %d", ErrOutOfRange, dayIndex, schedule.Days())
	}

	loc := r.Location()
	switch s := schedule.(type) {
	case Custom:
		session := s.Sessions[dayIndex-1]
		return SessionInstant{DayIndex: dayIndex, Start: session.Date.At(session.Time, loc)}, nil
	case Recurring:
		cycle := firstOccurrences(s)
		patternIndex := (dayIndex - 1) % len(cycle)
		occurrence := (dayIndex - 1) / len(cycle)
		entry := cycle[patternIndex]
		start := entry.Date.AddDays(7 * occurrence).At(entry.Time, loc)
		return SessionInstant{DayIndex: dayIndex, Start: start}, nil
	default:
		return SessionInstant{}, fmt.Errorf("%w: unsupported schedule type %T", ErrMalformedSchedule, schedule)
	}
}

// ResolveAll returns every session of the schedule in day order.
func (r *Resolver) ResolveAll(schedule Schedule) ([]SessionInstant, error) {
	if schedule == nil {
		return nil, fmt.Errorf("%w: schedule is missing", ErrMalformedSchedule)
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	instants := make([]SessionInstant, 0, schedule.Days())
	for day := 1; day <= schedule.Days(); day++ {
		instant, err := r.Resolve(schedule, day)
		if err != nil {
			return nil, err
		}
		instants = append(instants, instant)
	}
	return instants, nil
}

// firstOccurrences computes, per pattern entry, the first matching date on or
// after the start date, ordered chronologically. Equal entries keep pattern order.
func firstOccurrences(s Recurring) []Session {
	startWeekday := s.StartDate.Weekday()
	cycle := make([]Session, 0, len(s.Pattern))
	for _, slot := range s.Pattern {
		delta := (int(slot.Weekday) - int(startWeekday) + 7) % 7
		cycle = append(cycle, Session{Date: s.StartDate.AddDays(delta), Time: slot.Time})
	}

	sort.SliceStable(cycle, func(i, j int) bool {
		a, b := cycle[i], cycle[j]
		if a.Date != b.Date {
			return a.Date.midnightUTC().Before(b.Date.midnightUTC())
		}
		return a.Time.before(b.Time)
	})
	return cycle
}
