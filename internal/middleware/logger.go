package middleware

import (
	"net/http"
	"time"

	chiMid "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/consultants-web/internal/observability"
)

// Logger emits one structured entry per request and hands a request-scoped
// logger to handlers through the context.
func Logger(base *zap.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rid := chiMid.GetReqID(r.Context())
			reqLogger := base
			if rid != "" {
				reqLogger = base.With(zap.String("request_id", rid))
			}
			ctx := observability.WithLogger(r.Context(), reqLogger)

			ww := chiMid.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("remote_ip", r.RemoteAddr),
				zap.Bool("htmx", ParseHTMX(r).Request),
			}
			switch {
			case status >= http.StatusInternalServerError:
				reqLogger.Error("request", fields...)
			case status >= http.StatusBadRequest:
				reqLogger.Warn("request", fields...)
			default:
				reqLogger.Info("request", fields...)
			}
		})
	}
}
