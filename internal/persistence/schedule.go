package persistence

import (
	"fmt"

	"github.com/example/workshop-scheduler/internal/recurrence"
)

// SetSchedule stores schedule into the workshop's schedule columns.
func (w *Workshop) SetSchedule(schedule recurrence.Schedule) {
	w.StartDate = ""
	w.Slots = nil
	w.Sessions = nil

	switch s := schedule.(type) {
	case recurrence.Recurring:
		w.ScheduleType = ScheduleTypeRecurring
		w.NumberOfDays = s.NumberOfDays
		w.StartDate = s.StartDate.String()
		for i, slot := range s.Pattern {
			w.Slots = append(w.Slots, PatternSlot{Position: i + 1, Weekday: slot.Weekday, TimeOfDay: slot.Time.String()})
		}
	case recurrence.Custom:
		w.ScheduleType = ScheduleTypeCustom
		w.NumberOfDays = s.NumberOfDays
		for i, session := range s.Sessions {
			w.Sessions = append(w.Sessions, CustomSession{DayIndex: i + 1, Date: session.Date.String(), TimeOfDay: session.Time.String()})
		}
	default:
		w.ScheduleType = ""
		w.NumberOfDays = 0
	}
}

// Schedule rebuilds the workshop's schedule. Rows that cannot be parsed
// report recurrence.ErrMalformedSchedule.
func (w Workshop) Schedule() (recurrence.Schedule, error) {
	switch w.ScheduleType {
	case ScheduleTypeRecurring:
		start, err := recurrence.ParseDate(w.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: workshop %s start date: %v", recurrence.ErrMalformedSchedule, w.ID, err)
		}
		pattern := make([]recurrence.Slot, 0, len(w.Slots))
		for _, slot := range w.Slots {
			tod, err := recurrence.ParseTimeOfDay(slot.TimeOfDay)
			if err != nil {
				return nil, fmt.Errorf("%w: workshop %s slot %d: %v", recurrence.ErrMalformedSchedule, w.ID, slot.Position, err)
			}
			pattern = append(pattern, recurrence.Slot{Weekday: slot.Weekday, Time: tod})
		}
		return recurrence.Recurring{StartDate: start, Pattern: pattern, NumberOfDays: w.NumberOfDays}, nil

	case ScheduleTypeCustom:
		sessions := make([]recurrence.Session, 0, len(w.Sessions))
		for _, session := range w.Sessions {
			date, err := recurrence.ParseDate(session.Date)
			if err != nil {
				return nil, fmt.Errorf("%w: workshop %s day %d date: %v", recurrence.ErrMalformedSchedule, w.ID, session.DayIndex, err)
			}
			tod, err := recurrence.ParseTimeOfDay(session.TimeOfDay)
			if err != nil {
				return nil, fmt.Errorf("%w: workshop %s day %d time: %v", recurrence.ErrMalformedSchedule, w.ID, session.DayIndex, err)
			}
			sessions = append(sessions, recurrence.Session{Date: date, Time: tod})
		}
		return recurrence.Custom{NumberOfDays: w.NumberOfDays, Sessions: sessions}, nil
	}

	return nil, fmt.Errorf("%w: workshop %s has schedule type %q", recurrence.ErrMalformedSchedule, w.ID, w.ScheduleType)
}
