package http

import (
	"context"
	"log/slog"

	"github.com/example/workshop-scheduler/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger scopes a logger to one handler call. The caller identity is
// attached when Identify has run.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := []any{"handler", handlerName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if principal, ok := PrincipalFromContext(ctx); ok {
		pairs = append(pairs, "user_id", principal.UserID)
		if principal.IsAdmin {
			pairs = append(pairs, "admin", true)
		}
	}
	pairs = append(pairs, attrs...)
	return logging.FromContextOr(ctx, fallback).With(pairs...)
}
