// Package daemon coordinates the long-running gmaild process.
//
// It wires configuration, the backend executor, the Gmail service, the
// dispatch core and the call journal into a single lifecycle with flock-based
// locking to prevent multiple instances. Start fails fast: if preflight, the
// executor or the service's OnStart fails, everything built so far is torn down
// and the lock is released.
//
// Keep orchestration logic here. Call semantics live in internal/dispatch and
// internal/service; the daemon only builds them, reports on them and shuts
// them down in order.
package daemon
