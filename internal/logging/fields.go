package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (daemon_started, call_failed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCallID identifies a single RPC call end to end.
	FieldCallID = "call_id"
	// FieldMethod is the RPC method name.
	FieldMethod = "method"
	// FieldBackendMode is cold or warm.
	FieldBackendMode = "backend_mode"
	// FieldErrorKind is the taxonomy tag of a failed call.
	FieldErrorKind = "error_kind"
)

type callIDKey struct{}

// WithCallID attaches a call identifier to ctx.
func WithCallID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallIDFromContext returns the call identifier stored in ctx, if any.
func CallIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(callIDKey{}).(string)
	return id, ok && id != ""
}

// WithContext returns a logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if id, ok := CallIDFromContext(ctx); ok {
		return logger.With(String(FieldCallID, id))
	}
	return logger
}
