package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/example/workshop-scheduler/internal/application"
)

type workshopService interface {
	CreateWorkshop(ctx context.Context, params application.CreateWorkshopParams) (application.Workshop, error)
	GetWorkshop(ctx context.Context, id string) (application.Workshop, error)
	ListWorkshops(ctx context.Context) ([]application.Workshop, error)
	UpdateSchedule(ctx context.Context, params application.UpdateScheduleParams) (application.UpdateScheduleResult, error)
	DeleteWorkshop(ctx context.Context, principal application.Principal, id string) error
	Enroll(ctx context.Context, params application.EnrollParams) (application.Enrollment, error)
	SetPaymentStatus(ctx context.Context, params application.SetPaymentStatusParams) (application.Enrollment, error)
	ListEnrollments(ctx context.Context, principal application.Principal, workshopID string) ([]application.Enrollment, error)
}

// WorkshopHandler serves workshop and enrollment management endpoints.
type WorkshopHandler struct {
	service workshopService
	responder
}

// NewWorkshopHandler constructs a workshop handler with the default logger.
func NewWorkshopHandler(service workshopService) *WorkshopHandler {
	return NewWorkshopHandlerWithLogger(service, nil)
}

// NewWorkshopHandlerWithLogger constructs a workshop handler with the provided logger.
func NewWorkshopHandlerWithLogger(service workshopService, logger *slog.Logger) *WorkshopHandler {
	return &WorkshopHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

// Create handles POST /workshops.
func (h *WorkshopHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "workshop handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	var req createWorkshopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := validateStruct(req); fields != nil {
		h.writeValidation(ctx, w, fields)
		return
	}
	schedule, fields := req.Schedule.toSchedule("schedule.")
	if fields != nil {
		h.writeValidation(ctx, w, fields)
		return
	}

	workshop, err := h.service.CreateWorkshop(ctx, application.CreateWorkshopParams{
		Principal: principal,
		Input: application.WorkshopInput{
			Title:       req.Title,
			MentorID:    req.MentorID,
			MentorEmail: req.MentorEmail,
			Schedule:    schedule,
		},
	})
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	handlerLogger(ctx, h.logger, "WorkshopHandler", "Create", "workshop_id", workshop.ID).InfoContext(ctx, "workshop created")
	h.writeJSON(ctx, w, http.StatusCreated, newWorkshopResponse(workshop))
}

// List handles GET /workshops.
func (h *WorkshopHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "workshop handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	workshops, err := h.service.ListWorkshops(ctx)
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	resp := make([]workshopResponse, 0, len(workshops))
	for _, workshop := range workshops {
		resp = append(resp, newWorkshopResponse(workshop))
	}
	h.writeJSON(ctx, w, http.StatusOK, resp)
}

// Get handles GET /workshops/{workshopID}.
func (h *WorkshopHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "workshop handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	workshop, err := h.service.GetWorkshop(ctx, chi.URLParam(r, "workshopID"))
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, newWorkshopResponse(workshop))
}

// Delete handles DELETE /workshops/{workshopID}.
func (h *WorkshopHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "workshop handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	if err := h.service.DeleteWorkshop(ctx, principal, chi.URLParam(r, "workshopID")); err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusNoContent, nil)
}

// UpdateSchedule handles PUT /workshops/{workshopID}/schedule.
func (h *WorkshopHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "workshop handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := validateStruct(req); fields != nil {
		h.writeValidation(ctx, w, fields)
		return
	}
	schedule, fields := req.toSchedule("")
	if fields != nil {
		h.writeValidation(ctx, w, fields)
		return
	}

	result, err := h.service.UpdateSchedule(ctx, application.UpdateScheduleParams{
		Principal:  principal,
		WorkshopID: chi.URLParam(r, "workshopID"),
		Schedule:   schedule,
	})
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, updateScheduleResponse{
		Workshop:     newWorkshopResponse(result.Workshop),
		LinksCleared: result.LinksCleared,
	})
}

// Enroll handles POST /workshops/{workshopID}/enrollments.
func (h *WorkshopHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "workshop handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := validateStruct(req); fields != nil {
		h.writeValidation(ctx, w, fields)
		return
	}

	enrollment, err := h.service.Enroll(ctx, application.EnrollParams{
		Principal:    principal,
		WorkshopID:   chi.URLParam(r, "workshopID"),
		StudentEmail: req.StudentEmail,
	})
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusCreated, newEnrollmentResponse(enrollment))
}

// ListEnrollments handles GET /workshops/{workshopID}/enrollments.
func (h *WorkshopHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "workshop handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	enrollments, err := h.service.ListEnrollments(ctx, principal, chi.URLParam(r, "workshopID"))
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	resp := make([]enrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		resp = append(resp, newEnrollmentResponse(enrollment))
	}
	h.writeJSON(ctx, w, http.StatusOK, resp)
}

// SetPayment handles PUT /workshops/{workshopID}/enrollments/{email}/payment.
func (h *WorkshopHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "workshop handler is not configured", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, errors.New("email path segment is not valid"))
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := validateStruct(req); fields != nil {
		h.writeValidation(ctx, w, fields)
		return
	}

	enrollment, err := h.service.SetPaymentStatus(ctx, application.SetPaymentStatusParams{
		Principal:    principal,
		WorkshopID:   chi.URLParam(r, "workshopID"),
		StudentEmail: email,
		Status:       application.PaymentStatus(req.Status),
	})
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, newEnrollmentResponse(enrollment))
}

func (h *WorkshopHandler) principal(ctx context.Context, w http.ResponseWriter) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, errMissingIdentity)
		return application.Principal{}, false
	}
	return principal, true
}
