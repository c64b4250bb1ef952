// Package service defines the contract every gmaild service implements and the
// method registry that validates calls before they reach a backend.
//
// A Registry owns an immutable, ordered table of MethodInfo descriptors. Its
// Dispatch rejects unknown methods and calls missing a required parameter
// without touching the backend, fills declared defaults, and forwards the call
// to an Executor, returning the executor's result or error unchanged.
package service
