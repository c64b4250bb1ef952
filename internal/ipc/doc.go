// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Call
// payloads reuse the api package types so the IPC and HTTP surfaces describe
// calls, health and history the same way. A failed method call is reported in
// CallResponse.Error; the RPC itself only fails for transport problems.
package ipc
