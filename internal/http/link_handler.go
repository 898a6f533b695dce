package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/workshop-scheduler/internal/application"
	"github.com/example/workshop-scheduler/internal/scheduler"
)

type sessionLinkService interface {
	RequestLink(ctx context.Context, params application.RequestLinkParams) (application.SessionLink, error)
	PreviewLink(ctx context.Context, workshopID string, dayIndex int) (application.LinkPreview, error)
	ListSessions(ctx context.Context, workshopID string) ([]application.LinkPreview, error)
}

// LinkHandler serves the session listing and meeting link gate endpoints.
type LinkHandler struct {
	service sessionLinkService
	responder
}

// NewLinkHandler constructs a link handler with the default logger.
func NewLinkHandler(service sessionLinkService) *LinkHandler {
	return NewLinkHandlerWithLogger(service, nil)
}

// NewLinkHandlerWithLogger constructs a link handler with the provided logger.
func NewLinkHandlerWithLogger(service sessionLinkService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

// ListSessions handles GET /workshops/{workshopID}/sessions.
func (h *LinkHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "link handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	previews, err := h.service.ListSessions(ctx, chi.URLParam(r, "workshopID"))
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	resp := make([]sessionResponse, 0, len(previews))
	for _, preview := range previews {
		resp = append(resp, newSessionResponse(preview))
	}
	h.writeJSON(ctx, w, http.StatusOK, resp)
}

// Preview handles GET /workshops/{workshopID}/sessions/{day}/link.
func (h *LinkHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "link handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	day, err := dayParam(r)
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	preview, err := h.service.PreviewLink(ctx, chi.URLParam(r, "workshopID"), day)
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, newSessionResponse(preview))
}

// Request handles POST /workshops/{workshopID}/sessions/{day}/link. An empty
// body is accepted; {"override": true} asks an admin to bypass the window.
func (h *LinkHandler) Request(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "link handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, errMissingIdentity)
		return
	}

	day, err := dayParam(r)
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	var req requestLinkRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}
	if override, err := strconv.ParseBool(r.URL.Query().Get("override")); err == nil && override {
		req.Override = true
	}

	workshopID := chi.URLParam(r, "workshopID")
	link, err := h.service.RequestLink(ctx, application.RequestLinkParams{
		Principal:     principal,
		WorkshopID:    workshopID,
		DayIndex:      day,
		AllowOverride: req.Override,
	})
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if link.Created {
		status = http.StatusCreated
		handlerLogger(ctx, h.logger, "LinkHandler", "Request",
			"workshop_id", workshopID,
			"day_index", day,
			"override", req.Override,
		).InfoContext(ctx, "meeting link issued")
	}
	h.writeJSON(ctx, w, status, newLinkResponse(link))
}

func dayParam(r *http.Request) (int, error) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		return 0, errInvalidDayIndex
	}
	return day, nil
}

func newSessionResponse(p application.LinkPreview) sessionResponse {
	resp := sessionResponse{
		WorkshopID: p.WorkshopID,
		DayIndex:   p.DayIndex,
		Start:      p.Start,
		Status:     string(p.Status),
		Link:       p.Link,
	}
	if !p.GeneratedAt.IsZero() {
		generatedAt := p.GeneratedAt
		resp.GeneratedAt = &generatedAt
	}
	if p.Status == application.LinkStatusPending {
		opensAt := p.OpensAt
		resp.OpensAt = &opensAt
		resp.WaitRemainingSeconds = int64(math.Ceil(p.WaitRemaining.Seconds()))
		resp.WaitRemaining = scheduler.FormatWait(p.WaitRemaining)
	}
	return resp
}
