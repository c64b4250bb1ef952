package backend

import (
	"context"
	"maps"
)

const (
	ModeCold = "cold"
	ModeWarm = "warm"
)

// Params holds the JSON-shaped arguments of a call. Values are nil, bool,
// float64 (or any Go integer), string, []any or map[string]any.
type Params map[string]any

// Clone returns a shallow copy of p; nil becomes an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	return out
}

// Executor runs one validated call against the backend.
type Executor interface {
	Invoke(ctx context.Context, method string, params Params) (any, error)
	// Mode reports ModeCold or ModeWarm.
	Mode() string
	// Exclusive reports whether calls must never overlap.
	Exclusive() bool
	Close() error
}
