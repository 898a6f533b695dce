package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/workshop-scheduler/internal/recurrence"
	"github.com/example/workshop-scheduler/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a resource with the same identity is already stored.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrOutOfRange is returned when a day index falls outside 1..NumberOfDays.
	ErrOutOfRange = recurrence.ErrOutOfRange
	// ErrMalformedSchedule is returned when a workshop's schedule cannot be resolved.
	ErrMalformedSchedule = recurrence.ErrMalformedSchedule
	// ErrWindowNotOpen is matched by every *WindowNotOpenError.
	ErrWindowNotOpen = errors.New("application: generation window not open")
	// ErrNoAttendees is returned when a session has nobody to invite.
	ErrNoAttendees = errors.New("application: no attendees")
	// ErrGenerationFailed is matched by every *GenerationError.
	ErrGenerationFailed = errors.New("application: meeting link generation failed")
)

// WindowNotOpenError reports how long a caller has to wait before a link may be generated.
type WindowNotOpenError struct {
	WaitRemaining time.Duration
	OpensAt       time.Time
}

// Error implements the error interface.
func (e *WindowNotOpenError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("link generation opens in %s", scheduler.FormatWait(e.WaitRemaining))
}

// Is reports whether target is ErrWindowNotOpen.
func (e *WindowNotOpenError) Is(target error) bool {
	return target == ErrWindowNotOpen
}

// GenerationError wraps a meeting provider failure.
type GenerationError struct {
	Err error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	if e == nil || e.Err == nil {
		return ErrGenerationFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrGenerationFailed.Error(), e.Err)
}

// Unwrap returns the provider error.
func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
