// Package seed loads workshops and enrollments from YAML for local setups.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/workshop-scheduler/internal/persistence"
	"github.com/example/workshop-scheduler/internal/recurrence"
)

// Target is the storage a seed file is written into.
type Target interface {
	persistence.WorkshopRepository
	persistence.EnrollmentRepository
}

// Result counts what Apply wrote.
type Result struct {
	Created     int
	Updated     int
	Enrollments int
}

// Loader reads a seed file from disk.
type Loader struct {
	filePath string
}

// NewLoader creates a loader for filePath.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the seed file.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return File{}, fmt.Errorf("failed to parse seed yaml: %w", err)
	}
	return file, nil
}

// Apply writes every workshop and enrollment of file into target. Existing
// workshops are updated in place and keep their creation time.
func Apply(ctx context.Context, target Target, file File, now time.Time, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var result Result

	for i, ws := range file.Workshops {
		model, err := ws.toPersistence(now)
		if err != nil {
			return result, fmt.Errorf("workshop %d (%s): %w", i+1, ws.ID, err)
		}

		existing, err := target.GetWorkshop(ctx, model.ID)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			if err := target.CreateWorkshop(ctx, model); err != nil {
				return result, fmt.Errorf("create workshop %s: %w", model.ID, err)
			}
			result.Created++
		case err != nil:
			return result, fmt.Errorf("load workshop %s: %w", model.ID, err)
		default:
			model.CreatedAt = existing.CreatedAt
			if err := target.UpdateWorkshop(ctx, model); err != nil {
				return result, fmt.Errorf("update workshop %s: %w", model.ID, err)
			}
			result.Updated++
		}

		for _, e := range ws.Enrollments {
			enrollment, err := e.toPersistence(model.ID, now)
			if err != nil {
				return result, fmt.Errorf("workshop %s: %w", model.ID, err)
			}
			if err := target.UpsertEnrollment(ctx, enrollment); err != nil {
				return result, fmt.Errorf("enroll %s in %s: %w", enrollment.StudentEmail, model.ID, err)
			}
			result.Enrollments++
		}

		logger.InfoContext(ctx, "seeded workshop",
			"workshop_id", model.ID,
			"schedule_type", model.ScheduleType,
			"number_of_days", model.NumberOfDays,
			"enrollments", len(ws.Enrollments),
		)
	}

	return result, nil
}

func (w Workshop) toPersistence(now time.Time) (persistence.Workshop, error) {
	if strings.TrimSpace(w.ID) == "" {
		return persistence.Workshop{}, errors.New("id is required")
	}
	if strings.TrimSpace(w.Title) == "" {
		return persistence.Workshop{}, errors.New("title is required")
	}
	schedule, err := w.Schedule.parse()
	if err != nil {
		return persistence.Workshop{}, err
	}
	if err := schedule.Validate(); err != nil {
		return persistence.Workshop{}, err
	}

	model := persistence.Workshop{
		ID:          strings.TrimSpace(w.ID),
		Title:       strings.TrimSpace(w.Title),
		MentorID:    strings.TrimSpace(w.MentorID),
		MentorEmail: strings.ToLower(strings.TrimSpace(w.MentorEmail)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	model.SetSchedule(schedule)
	return model, nil
}

func (s Schedule) parse() (recurrence.Schedule, error) {
	kind, err := recurrence.ParseKind(s.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case recurrence.KindRecurring:
		start, err := recurrence.ParseDate(s.StartDate)
		if err != nil {
			return nil, fmt.Errorf("start_date: %w", err)
		}
		pattern := make([]recurrence.Slot, 0, len(s.Pattern))
		for i, slot := range s.Pattern {
			weekday, err := recurrence.ParseWeekday(slot.Weekday)
			if err != nil {
				return nil, fmt.Errorf("pattern[%d].weekday: %w", i, err)
			}
			tod, err := recurrence.ParseTimeOfDay(slot.Time)
			if err != nil {
				return nil, fmt.Errorf("pattern[%d].time: %w", i, err)
			}
			pattern = append(pattern, recurrence.Slot{Weekday: weekday, Time: tod})
		}
		return recurrence.Recurring{StartDate: start, Pattern: pattern, NumberOfDays: s.NumberOfDays}, nil

	default:
		sessions := make([]recurrence.Session, 0, len(s.Sessions))
		for i, session := range s.Sessions {
			date, err := recurrence.ParseDate(session.Date)
			if err != nil {
				return nil, fmt.Errorf("sessions[%d].date: %w", i, err)
			}
			tod, err := recurrence.ParseTimeOfDay(session.Time)
			if err != nil {
				return nil, fmt.Errorf("sessions[%d].time: %w", i, err)
			}
			sessions = append(sessions, recurrence.Session{Date: date, Time: tod})
		}
		custom := recurrence.NewCustom(sessions...)
		if s.NumberOfDays != 0 {
			custom.NumberOfDays = s.NumberOfDays
		}
		return custom, nil
	}
}

func (e Enrollment) toPersistence(workshopID string, now time.Time) (persistence.Enrollment, error) {
	email := strings.ToLower(strings.TrimSpace(e.Email))
	if email == "" {
		return persistence.Enrollment{}, errors.New("enrollment email is required")
	}
	payment := strings.ToLower(strings.TrimSpace(e.Payment))
	switch payment {
	case "":
		payment = persistence.PaymentPending
	case persistence.PaymentPending, persistence.PaymentConfirmed, persistence.PaymentRefunded:
	default:
		return persistence.Enrollment{}, fmt.Errorf("enrollment %s: unknown payment status %q", email, e.Payment)
	}
	return persistence.Enrollment{
		WorkshopID:    workshopID,
		StudentEmail:  email,
		PaymentStatus: payment,
		EnrolledAt:    now,
		UpdatedAt:     now,
	}, nil
}
