package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var timeOfDayLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
	"15:04",
	"15:04:05",
}

// ParseTimeOfDay accepts 12-hour ("10:00 AM", "2PM") and 24-hour ("14:30") notations.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(value), " "))
	normalized = strings.ReplaceAll(normalized, ".", "")
	if normalized == "" {
		return TimeOfDay{}, fmt.Errorf("%w: time of day is empty", ErrMalformedSchedule)
	}

	for _, layout := range timeOfDayLayouts {
		parsed, err := time.Parse(layout, normalized)
		if err != nil {
			continue
		}
		if parsed.Second() != 0 {
			return TimeOfDay{}, fmt.Errorf("%w: time of day %q has seconds", ErrMalformedSchedule, value)
		}
		return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
	}

	return TimeOfDay{}, fmt.Errorf("%w: unrecognised time of day %q", ErrMalformedSchedule, value)
}

// MustParseTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustParseTimeOfDay(value string) TimeOfDay {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return t
}

// Valid reports whether the hour and minute are within a single day.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// String renders the canonical 24-hour form stored in persistence.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Display renders the 12-hour form shown to people.
func (t TimeOfDay) Display() string {
	return time.Date(2000, time.January, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("3:04 PM")
}

func (t TimeOfDay) before(other TimeOfDay) bool {
	if t.Hour != other.Hour {
		return t.Hour < other.Hour
	}
	return t.Minute < other.Minute
}

// Date is a calendar date without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(value string) (Date, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrMalformedSchedule, value)
	}
	return DateOf(parsed), nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Valid reports whether the date names a real calendar day.
func (d Date) Valid() bool {
	if d.IsZero() {
		return false
	}
	return DateOf(d.midnightUTC()) == d
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.midnightUTC().Format(dateLayout)
}

// Weekday returns the day of the week of the date.
func (d Date) Weekday() time.Weekday {
	return d.midnightUTC().Weekday()
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnightUTC().AddDate(0, 0, n))
}

// At combines the date with a wall-clock time in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts full or abbreviated English weekday names in any case.
func ParseWeekday(value string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return 0, fmt.Errorf("%w: unrecognised weekday %q", ErrMalformedSchedule, value)
	}
	return day, nil
}
