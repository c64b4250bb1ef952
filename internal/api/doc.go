// Package api defines wire-format types and converters shared by the IPC and
// HTTP layers. It translates dispatch responses, journal rows and warm session
// state into transport-friendly DTOs so clients never depend on internal types.
//
// # Key Types
//
// CallRequest/CallResponse: one method invocation and its outcome. A failed call
// carries ErrorPayload{kind, message} and no result.
//
// HealthResponse: per-subsystem HealthStatus plus the aggregate verdict.
//
// StatusResponse: daemon runtime information including call counters and, in
// warm mode, the backend session.
//
// HistoryResponse: recent journaled calls and per-method aggregates.
//
// # Design Notes
//
// JSON tags are snake_case to match the FGP daemon protocol. Timestamps use
// RFC3339 with milliseconds. Durations are reported as float milliseconds.
package api
