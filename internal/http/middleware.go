package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/workshop-scheduler/internal/application"
)

// Identity headers set by the gateway in front of workshopd.
const (
	HeaderUserID   = "X-User-ID"
	HeaderEmail    = "X-User-Email"
	HeaderAdminKey = "X-Admin-Key"
)

// Identify builds the request principal from identity headers. A request
// presenting X-Admin-Key must match adminKeyHash; requests with neither a
// user id nor an admin key are rejected with 401.
func Identify(adminKeyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := application.Principal{
				UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
				Email:  strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderEmail))),
			}

			if key := strings.TrimSpace(r.Header.Get(HeaderAdminKey)); key != "" {
				err := application.VerifyAdminKey(adminKeyHash, key)
				switch {
				case err == nil:
					principal.IsAdmin = true
					if principal.UserID == "" {
						principal.UserID = "admin"
					}
				case errors.Is(err, application.ErrUnauthorized):
					responder.writeError(r.Context(), w, http.StatusUnauthorized, errInvalidAdminKey)
					return
				default:
					responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
					return
				}
			}

			if principal.UserID == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingIdentity)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger and logs each request's outcome.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			if id == "" {
				id = "req-" + strconv.FormatUint(counter.Add(1), 10)
			}
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
