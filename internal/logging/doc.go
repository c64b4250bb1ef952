// Package logging assembles the structured slog loggers used by gmaild.
//
// It owns the console and JSON handlers, level and output plumbing, the
// standardized field keys (component, call_id, method, event_type), and log
// retention. Tests and wiring code that cannot fail use NewNop.
package logging
