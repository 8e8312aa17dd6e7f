package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// type for context keys
type loggerKeyType struct{}

var LoggerKey = loggerKeyType{}

// RequestLogger creates a middleware that logs requests and injects a
// request-scoped logger into the context.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			ctx := context.WithValue(r.Context(), LoggerKey, reqLog)

			start := time.Now()
			next.ServeHTTP(w, r.WithContext(ctx))
			reqLog.Info("request completed", slog.Duration("elapsed", time.Since(start)))
		})
	}
}

// LoggerFrom returns the request-scoped logger, or the default one.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
