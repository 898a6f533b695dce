package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultRequestTimeout bounds a single request, including a meeting provider call.
const DefaultRequestTimeout = 20 * time.Second

// HealthChecker reports whether the backing stores are reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Workshops      *WorkshopHandler
	Links          *LinkHandler
	Health         HealthChecker
	AdminKeyHash   string
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(RequestLogger(logger))
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", healthHandler(cfg.Health, logger))

	r.Group(func(r chi.Router) {
		r.Use(Identify(cfg.AdminKeyHash, logger))

		r.Route("/workshops", func(r chi.Router) {
			if cfg.Workshops != nil {
				r.Get("/", cfg.Workshops.List)
				r.Post("/", cfg.Workshops.Create)
			}

			r.Route("/{workshopID}", func(r chi.Router) {
				if cfg.Workshops != nil {
					r.Get("/", cfg.Workshops.Get)
					r.Delete("/", cfg.Workshops.Delete)
					r.Put("/schedule", cfg.Workshops.UpdateSchedule)
					r.Get("/enrollments", cfg.Workshops.ListEnrollments)
					r.Post("/enrollments", cfg.Workshops.Enroll)
					r.Put("/enrollments/{email}/payment", cfg.Workshops.SetPayment)
				}
				if cfg.Links != nil {
					r.Get("/sessions", cfg.Links.ListSessions)
					r.Get("/sessions/{day}/link", cfg.Links.Preview)
					r.Post("/sessions/{day}/link", cfg.Links.Request)
				}
			})
		})
	})

	return r
}

func healthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	responder := newResponder(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if checker != nil {
			if err := checker.Ping(ctx); err != nil {
				responder.loggerFor(ctx).WarnContext(ctx, "health check failed", "error", err)
				responder.writeJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		responder.writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
