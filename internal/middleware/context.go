package middleware

import (
	"context"
)

// context keys are unexported to avoid collisions
type ctxKey string

const (
	ctxKeyHTMX    ctxKey = "htmx"
	ctxKeySession ctxKey = "session"
)

// WithHTMX stores parsed htmx request headers in ctx.
func WithHTMX(ctx context.Context, info HTMXInfo) context.Context {
	return context.WithValue(ctx, ctxKeyHTMX, info)
}

// IsHTMX returns whether this is an htmx request
func IsHTMX(ctx context.Context) bool {
	info, _ := htmxFromContext(ctx)
	return info.Request
}

func htmxFromContext(ctx context.Context) (HTMXInfo, bool) {
	info, ok := ctx.Value(ctxKeyHTMX).(HTMXInfo)
	return info, ok
}

// WithSession stores session data in context.
func WithSession(ctx context.Context, s *SessionData) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// SessionFromContext returns the session attached by Sessions.Middleware, or
// an empty unsaved session when none is present.
func SessionFromContext(ctx context.Context) *SessionData {
	if sd, ok := ctx.Value(ctxKeySession).(*SessionData); ok && sd != nil {
		return sd
	}
	return &SessionData{}
}
