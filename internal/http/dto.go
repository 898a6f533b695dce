package http

import (
	"fmt"
	"time"

	"github.com/example/workshop-scheduler/internal/application"
	"github.com/example/workshop-scheduler/internal/recurrence"
)

type slotDTO struct {
	Weekday string `json:"weekday" validate:"required"`
	Time    string `json:"time" validate:"required"`
}

type sessionDTO struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

type scheduleRequest struct {
	Type         string       `json:"type" validate:"required,oneof=recurring custom"`
	StartDate    string       `json:"start_date,omitempty" validate:"required_if=Type recurring"`
	NumberOfDays int          `json:"number_of_days,omitempty" validate:"gte=0"`
	Pattern      []slotDTO    `json:"pattern,omitempty" validate:"required_if=Type recurring,dive"`
	Sessions     []sessionDTO `json:"sessions,omitempty" validate:"required_if=Type custom,dive"`
}

// toSchedule parses the request into a schedule, returning field errors for
// values the validator cannot judge.
func (s scheduleRequest) toSchedule(prefix string) (recurrence.Schedule, map[string]string) {
	fields := make(map[string]string)

	switch recurrence.Kind(s.Type) {
	case recurrence.KindRecurring:
		start, err := recurrence.ParseDate(s.StartDate)
		if err != nil {
			fields[prefix+"start_date"] = "start_date must be YYYY-MM-DD"
		}
		if s.NumberOfDays <= 0 {
			fields[prefix+"number_of_days"] = "number_of_days must be greater than 0"
		}
		pattern := make([]recurrence.Slot, 0, len(s.Pattern))
		for i, slot := range s.Pattern {
			weekday, err := recurrence.ParseWeekday(slot.Weekday)
			if err != nil {
				fields[fmt.Sprintf("%spattern[%d].weekday", prefix, i)] = "weekday is not a day name"
			}
			tod, err := recurrence.ParseTimeOfDay(slot.Time)
			if err != nil {
				fields[fmt.Sprintf("%spattern[%d].time", prefix, i)] = "time must look like 15:00 or 3:00 PM"
			}
			pattern = append(pattern, recurrence.Slot{Weekday: weekday, Time: tod})
		}
		if len(fields) > 0 {
			return nil, fields
		}
		return recurrence.Recurring{StartDate: start, Pattern: pattern, NumberOfDays: s.NumberOfDays}, nil

	case recurrence.KindCustom:
		sessions := make([]recurrence.Session, 0, len(s.Sessions))
		for i, session := range s.Sessions {
			date, err := recurrence.ParseDate(session.Date)
			if err != nil {
				fields[fmt.Sprintf("%ssessions[%d].date", prefix, i)] = "date must be YYYY-MM-DD"
			}
			tod, err := recurrence.ParseTimeOfDay(session.Time)
			if err != nil {
				fields[fmt.Sprintf("%ssessions[%d].time", prefix, i)] = "time must look like 15:00 or 3:00 PM"
			}
			sessions = append(sessions, recurrence.Session{Date: date, Time: tod})
		}
		days := s.NumberOfDays
		if days == 0 {
			days = len(sessions)
		}
		if days != len(sessions) {
			fields[prefix+"number_of_days"] = "number_of_days must match the number of sessions"
		}
		if len(fields) > 0 {
			return nil, fields
		}
		return recurrence.Custom{NumberOfDays: days, Sessions: sessions}, nil
	}

	fields[prefix+"type"] = "type must be one of [recurring custom]"
	return nil, fields
}

type scheduleResponse struct {
	Type         string       `json:"type"`
	StartDate    string       `json:"start_date,omitempty"`
	NumberOfDays int          `json:"number_of_days"`
	Pattern      []slotDTO    `json:"pattern,omitempty"`
	Sessions     []sessionDTO `json:"sessions,omitempty"`
}

func newScheduleResponse(schedule recurrence.Schedule) scheduleResponse {
	switch s := schedule.(type) {
	case recurrence.Recurring:
		resp := scheduleResponse{Type: string(s.Kind()), StartDate: s.StartDate.String(), NumberOfDays: s.NumberOfDays}
		for _, slot := range s.Pattern {
			resp.Pattern = append(resp.Pattern, slotDTO{Weekday: slot.Weekday.String(), Time: slot.Time.String()})
		}
		return resp
	case recurrence.Custom:
		resp := scheduleResponse{Type: string(s.Kind()), NumberOfDays: s.NumberOfDays}
		for _, session := range s.Sessions {
			resp.Sessions = append(resp.Sessions, sessionDTO{Date: session.Date.String(), Time: session.Time.String()})
		}
		return resp
	}
	return scheduleResponse{}
}

type createWorkshopRequest struct {
	Title       string          `json:"title" validate:"required,notblank"`
	MentorID    string          `json:"mentor_id,omitempty"`
	MentorEmail string          `json:"mentor_email,omitempty" validate:"omitempty,email"`
	Schedule    scheduleRequest `json:"schedule"`
}

type workshopResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	MentorID    string           `json:"mentor_id"`
	MentorEmail string           `json:"mentor_email"`
	Schedule    scheduleResponse `json:"schedule"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func newWorkshopResponse(w application.Workshop) workshopResponse {
	return workshopResponse{
		ID:          w.ID,
		Title:       w.Title,
		MentorID:    w.MentorID,
		MentorEmail: w.MentorEmail,
		Schedule:    newScheduleResponse(w.Schedule),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

type updateScheduleResponse struct {
	Workshop     workshopResponse `json:"workshop"`
	LinksCleared int              `json:"links_cleared"`
}

type enrollRequest struct {
	StudentEmail string `json:"student_email" validate:"required,email"`
}

type paymentRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed refunded"`
}

type enrollmentResponse struct {
	WorkshopID    string    `json:"workshop_id"`
	StudentEmail  string    `json:"student_email"`
	PaymentStatus string    `json:"payment_status"`
	EnrolledAt    time.Time `json:"enrolled_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newEnrollmentResponse(e application.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		WorkshopID:    e.WorkshopID,
		StudentEmail:  e.StudentEmail,
		PaymentStatus: string(e.PaymentStatus),
		EnrolledAt:    e.EnrolledAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

type requestLinkRequest struct {
	Override bool `json:"override"`
}

type linkResponse struct {
	WorkshopID  string    `json:"workshop_id"`
	DayIndex    int       `json:"day_index"`
	Link        string    `json:"link"`
	Start       time.Time `json:"start"`
	GeneratedAt time.Time `json:"generated_at"`
	Created     bool      `json:"created"`
}

func newLinkResponse(l application.SessionLink) linkResponse {
	return linkResponse{
		WorkshopID:  l.WorkshopID,
		DayIndex:    l.DayIndex,
		Link:        l.Link,
		Start:       l.Start,
		GeneratedAt: l.GeneratedAt,
		Created:     l.Created,
	}
}

type sessionResponse struct {
	WorkshopID           string     `json:"workshop_id"`
	DayIndex             int        `json:"day_index"`
	Start                time.Time  `json:"start"`
	Status               string     `json:"status"`
	Link                 string     `json:"link,omitempty"`
	GeneratedAt          *time.Time `json:"generated_at,omitempty"`
	OpensAt              *time.Time `json:"opens_at,omitempty"`
	WaitRemainingSeconds int64      `json:"wait_remaining_seconds,omitempty"`
	WaitRemaining        string     `json:"wait_remaining,omitempty"`
}
