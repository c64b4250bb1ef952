// Package backend executes gmaild method calls against the external Python
// Gmail backend.
//
// Two strategies implement Executor. Cold spawns the backend CLI once per call
// and classifies the outcome from its exit status and stdout. Warm owns a
// single long-lived host process, created at daemon startup, and forwards every
// call to it over newline-delimited JSON frames with at most one call in flight.
//
// All failures surface as *Error values tagged with a Kind from the shared
// taxonomy so the dispatch layer and the wire protocol can report them verbatim.
package backend
