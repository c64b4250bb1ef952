package api

import "gmaild/internal/service"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// MethodInfo documents one method.
type MethodInfo = service.MethodInfo

// ParamInfo documents one method parameter.
type ParamInfo = service.ParamInfo

// HealthStatus is the state of one subsystem.
type HealthStatus = service.HealthStatus

// ErrorPayload is the classified failure of a call.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CallRequest invokes one method.
type CallRequest struct {
	ID     string         `json:"id,omitempty"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// CallResponse carries either a result or an error, never both.
type CallResponse struct {
	ID     string        `json:"id"`
	OK     bool          `json:"ok"`
	Result any           `json:"result,omitempty"`
	Error  *ErrorPayload `json:"error,omitempty"`
}

// MethodsResponse lists the service's methods in declaration order.
type MethodsResponse struct {
	Service string       `json:"service"`
	Version string       `json:"version"`
	Methods []MethodInfo `json:"methods"`
}

// HealthResponse reports every subsystem at the time of the request.
type HealthResponse struct {
	Service string                  `json:"service"`
	Version string                  `json:"version"`
	OK      bool                    `json:"ok"`
	Checks  map[string]HealthStatus `json:"checks"`
}

// CallStats mirrors the dispatch counters.
type CallStats struct {
	Total    int64 `json:"total"`
	Failed   int64 `json:"failed"`
	InFlight int64 `json:"in_flight"`
	Queued   int64 `json:"queued"`
	Serial   bool  `json:"serial"`
}

// SessionStatus describes the warm backend session.
type SessionStatus struct {
	Alive     bool   `json:"alive"`
	PID       int    `json:"pid"`
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	Calls     int64  `json:"calls"`
	LastCall  string `json:"last_call,omitempty"`
	Busy      bool   `json:"busy"`
	LostError string `json:"lost_error,omitempty"`
}

// StatusResponse aggregates daemon runtime information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	Service     string         `json:"service"`
	Version     string         `json:"version"`
	Mode        string         `json:"mode"`
	StartedAt   string         `json:"started_at,omitempty"`
	UptimeSecs  float64        `json:"uptime_seconds"`
	SocketPath  string         `json:"socket_path"`
	LockPath    string         `json:"lock_path"`
	PIDPath     string         `json:"pid_path"`
	JournalPath string         `json:"journal_path,omitempty"`
	APIAddress  string         `json:"api_address,omitempty"`
	Calls       CallStats      `json:"calls"`
	Session     *SessionStatus `json:"session,omitempty"`
}

// HistoryRequest filters the call journal.
type HistoryRequest struct {
	Limit  int    `json:"limit"`
	Method string `json:"method,omitempty"`
}

// HistoryEntry is one journaled call.
type HistoryEntry struct {
	CallID       string  `json:"call_id"`
	Method       string  `json:"method"`
	Mode         string  `json:"mode"`
	StartedAt    string  `json:"started_at"`
	DurationMS   float64 `json:"duration_ms"`
	QueuedMS     float64 `json:"queued_ms"`
	OK           bool    `json:"ok"`
	ErrorKind    string  `json:"error_kind,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// MethodSummary aggregates journaled calls for one method.
type MethodSummary struct {
	Method       string  `json:"method"`
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	LastCalled   string  `json:"last_called,omitempty"`
}

// HistoryResponse wraps recent calls and per-method aggregates.
type HistoryResponse struct {
	Enabled bool            `json:"enabled"`
	Entries []HistoryEntry  `json:"entries"`
	Summary []MethodSummary `json:"summary,omitempty"`
}
