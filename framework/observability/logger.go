// Package observability provides the request-level observability of the
// framework: structured log helpers, OpenTelemetry metrics and tracing.
//
// Metrics and tracing are opt-in and have no-op implementations when
// disabled (TELEMETRY_ENABLED=false).
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger adds request context to a logger.
//
//	logger = observability.EnrichLogger(logger, req.ID(), "users.show")
//	logger.Info("loaded user") // includes request_id and route
func EnrichLogger(logger *slog.Logger, requestID, route string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("request_id", requestID),
		slog.String("route", route),
	)
}

// LogRequestComplete logs a served request at info, or at warn for
// client errors and error for server errors.
func LogRequestComplete(logger *slog.Logger, method, path string, status int, duration time.Duration) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
	)
}

// LogRequestError logs a failure while handling a request.
func LogRequestError(logger *slog.Logger, method, path string, err error) {
	if logger == nil {
		return
	}
	logger.Error("request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}
