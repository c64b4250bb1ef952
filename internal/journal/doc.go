// Package journal persists a bounded history of dispatched calls in SQLite.
//
// Every call the dispatch core finishes is written as one row: method, backend
// mode, timing and the classified error when the call failed. Rows beyond the
// configured limit are pruned oldest-first. The journal never stores call
// parameters or results.
package journal
