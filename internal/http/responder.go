package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/example/workshop-scheduler/internal/application"
	"github.com/example/workshop-scheduler/internal/scheduler"
)

var (
	errBadRequestBody  = errors.New("request body is not valid JSON")
	errInvalidDayIndex = errors.New("day must be a positive integer")
	errMissingIdentity = errors.New("identify yourself with X-User-ID or X-Admin-Key")
	errInvalidAdminKey = errors.New("admin key is invalid")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) writeValidation(ctx context.Context, w http.ResponseWriter, fields map[string]string) {
	r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
		ErrorCode: "VALIDATION_FAILED",
		Message:   statusMessage(http.StatusUnprocessableEntity),
		Errors:    fields,
	})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		windowErr *application.WindowNotOpenError
		vErr      *application.ValidationError
	)
	switch {
	case errors.As(err, &windowErr):
		r.writeJSON(ctx, w, http.StatusConflict, windowNotOpenResponse{
			errorResponse: errorResponse{
				ErrorCode: "WINDOW_NOT_OPEN",
				Message:   windowErr.Error(),
			},
			WaitRemainingSeconds: int64(math.Ceil(windowErr.WaitRemaining.Seconds())),
			WaitRemaining:        scheduler.FormatWait(windowErr.WaitRemaining),
			OpensAt:              windowErr.OpensAt.Format(time.RFC3339),
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "FORBIDDEN",
			Message:   statusMessage(http.StatusForbidden),
		})
	case errors.Is(err, application.ErrOutOfRange):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "DAY_OUT_OF_RANGE", Message: "the workshop has no session on that day"})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: statusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "the resource already exists"})
	case errors.Is(err, application.ErrMalformedSchedule):
		r.loggerFor(ctx).ErrorContext(ctx, "stored schedule cannot be resolved", "error", err)
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{ErrorCode: "MALFORMED_SCHEDULE", Message: err.Error()})
	case errors.Is(err, application.ErrNoAttendees):
		r.writeJSON(ctx, w, http.StatusPreconditionFailed, errorResponse{ErrorCode: "NO_ATTENDEES", Message: "enroll students before generating a link"})
	case errors.Is(err, application.ErrGenerationFailed):
		r.loggerFor(ctx).ErrorContext(ctx, "meeting provider failed", "error", err)
		r.writeJSON(ctx, w, http.StatusBadGateway, errorResponse{ErrorCode: "GENERATION_FAILED", Message: "the meeting provider could not create a meeting; try again"})
	case errors.As(err, &vErr):
		r.writeValidation(ctx, w, vErr.FieldErrors)
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: statusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusUnauthorized:
		return "authentication is required"
	case http.StatusForbidden:
		return "you are not allowed to perform this operation"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current state of the resource"
	case http.StatusUnprocessableEntity:
		return "the request contains invalid values"
	default:
		return "internal server error"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type windowNotOpenResponse struct {
	errorResponse
	WaitRemainingSeconds int64  `json:"wait_remaining_seconds"`
	WaitRemaining        string `json:"wait_remaining"`
	OpensAt              string `json:"opens_at"`
}
