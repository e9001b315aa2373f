// Package ctxlog carries the request-scoped logger through a context so log
// lines from any layer keep the request and user attributes.
package ctxlog

import (
	"context"
	"log/slog"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

type ctxKey struct{}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// With extends the logger in ctx with args.
func With(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(args...))
}

// WithSession tags the logger in ctx with the signed-in user. Unregistered
// subjects are logged without a role.
func WithSession(ctx context.Context, session domain.Session) context.Context {
	if session.Role == "" {
		return With(ctx, "user_id", session.UserID)
	}
	return With(ctx, "user_id", session.UserID, "role", string(session.Role))
}
