package ipc

import "gmaild/internal/api"

// CallRequest invokes one service method.
type CallRequest = api.CallRequest

// CallResponse carries a result or a classified error.
type CallResponse = api.CallResponse

// ErrorPayload is the classified failure of a call.
type ErrorPayload = api.ErrorPayload

// MethodsRequest fetches the method catalog.
type MethodsRequest struct{}

// MethodsResponse lists methods in declaration order.
type MethodsResponse = api.MethodsResponse

// ParamInfo describes one method parameter.
type ParamInfo = api.ParamInfo

// HealthRequest runs the health checks.
type HealthRequest struct{}

// HealthResponse reports per-subsystem status.
type HealthResponse = api.HealthResponse

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse = api.StatusResponse

// HistoryRequest filters the call journal.
type HistoryRequest = api.HistoryRequest

// HistoryResponse contains recent calls.
type HistoryResponse = api.HistoryResponse

// StopRequest shuts the daemon down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
