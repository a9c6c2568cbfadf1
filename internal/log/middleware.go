package log

import (
	"context"
	"log/slog"
	"net/http"

	"weddingsync/internal/core"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// FromContext returns the request logger, or one over slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger logs the recurring events of the application with a
// fixed field set.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogChange records a committed workspace mutation.
func (sl *StructuredLogger) LogChange(ctx context.Context, profileID string, revision int64, reason string) {
	fields := NewFields().WithChange(profileID, revision, reason)
	sl.logger.WithComponent(ComponentWorkspace).InfoContext(ctx, "Workspace changed", fields.ToSlice()...)
}

// ProfileChanged lets the logger subscribe to the workspace service.
func (sl *StructuredLogger) ProfileChanged(ctx context.Context, ev core.ChangeEvent) error {
	sl.LogChange(ctx, ev.ProfileID, ev.Revision, ev.Reason)
	return nil
}

func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.WithError(err).WithOperation(operation)
	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
