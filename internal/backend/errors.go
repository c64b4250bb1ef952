package backend

import (
	"errors"
	"fmt"
)

// Kind tags a failed call with its taxonomy entry.
type Kind string

const (
	KindUnknownMethod        Kind = "unknown_method"
	KindMissingRequiredParam Kind = "missing_required_param"
	KindProcessFailed        Kind = "backend_process_failed"
	KindNonzeroExit          Kind = "backend_nonzero_exit"
	KindOutputUnparseable    Kind = "backend_output_unparseable"
	KindUnavailable          Kind = "backend_unavailable"
	KindInternal             Kind = "backend_internal_error"
)

// ErrSessionFault marks an unrecoverable failure of the warm session.
var ErrSessionFault = errors.New("backend session fault")

// Error is the failure value returned by executors and the dispatch layer.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that keeps err in the chain.
func Wrap(kind Kind, err error, message string) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// AsError converts any error into an *Error. Errors that are not already
// classified become backend_internal_error with their text preserved.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return Wrap(KindInternal, err, "")
}

// KindOf returns the taxonomy tag for err, or "" when err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}
