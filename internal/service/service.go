package service

import (
	"context"
	"time"

	"gmaild/internal/backend"
)

// Params is the argument map of a call.
type Params = backend.Params

// Service is a named collection of remote methods backed by one executor.
type Service interface {
	Name() string
	Version() string
	// Dispatch validates and runs one call. Failures are *backend.Error values.
	Dispatch(ctx context.Context, method string, params Params) (any, error)
	// MethodList returns the method table in declaration order.
	MethodList() []MethodInfo
	// OnStart runs once before the daemon accepts requests. A non-nil error
	// aborts startup.
	OnStart(ctx context.Context) error
	// HealthCheck reports per-subsystem status. It must stay bounded and must
	// not change service state.
	HealthCheck(ctx context.Context) map[string]HealthStatus
}

// ParamInfo documents one method parameter.
type ParamInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// MethodInfo documents one method.
type MethodInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamInfo `json:"params"`
}

func (m MethodInfo) clone() MethodInfo {
	out := m
	out.Params = append([]ParamInfo(nil), m.Params...)
	return out
}

// Required returns the names of the required parameters in declaration order.
func (m MethodInfo) Required() []string {
	var names []string
	for _, p := range m.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// HealthStatus is the state of one subsystem at the time of the check.
type HealthStatus struct {
	OK        bool     `json:"ok"`
	LatencyMS *float64 `json:"latency_ms,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// Probe times fn and converts its outcome to a HealthStatus. okMessage is
// used when fn succeeds without a message of its own.
func Probe(fn func() (string, error), okMessage string) HealthStatus {
	started := time.Now()
	msg, err := fn()
	latency := float64(time.Since(started).Microseconds()) / 1000
	if err != nil {
		return HealthStatus{OK: false, LatencyMS: &latency, Message: err.Error()}
	}
	if msg == "" {
		msg = okMessage
	}
	return HealthStatus{OK: true, LatencyMS: &latency, Message: msg}
}

// Healthy reports whether every status is OK.
func Healthy(statuses map[string]HealthStatus) bool {
	for _, st := range statuses {
		if !st.OK {
			return false
		}
	}
	return true
}
