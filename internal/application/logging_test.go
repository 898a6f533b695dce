package application

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Same(t, custom, defaultLogger(custom))
	assert.Same(t, slog.Default(), defaultLogger(nil))
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                   nil,
		"unauthorized":       ErrUnauthorized,
		"not_found":          fmt.Errorf("load: %w", ErrNotFound),
		"already_exists":     ErrAlreadyExists,
		"out_of_range":       ErrOutOfRange,
		"malformed_schedule": ErrMalformedSchedule,
		"window_not_open":    &WindowNotOpenError{},
		"no_attendees":       ErrNoAttendees,
		"generation_failed":  &GenerationError{Err: errors.New("boom")},
		"validation":         &ValidationError{},
		"unexpected":         errors.New("disk full"),
	}
	for want, err := range cases {
		assert.Equal(t, want, ErrorKind(err), "error %v", err)
	}
}
