package backend

import "encoding/json"

// PingMethod is answered by the session host itself without reaching the module.
const PingMethod = "__ping__"

// Frames exchanged with the warm session host, one JSON object per line.

type readyFrame struct {
	Ready   bool        `json:"ready"`
	Name    string      `json:"name,omitempty"`
	Version string      `json:"version,omitempty"`
	Error   *frameError `json:"error,omitempty"`
}

type requestFrame struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params Params `json:"params"`
}

type responseFrame struct {
	ID     uint64          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *frameError     `json:"error,omitempty"`
}

type frameError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Fatal   bool   `json:"fatal,omitempty"`
}

func (e *frameError) text() string {
	if e == nil {
		return "unknown backend error"
	}
	if e.Type != "" && e.Message != "" {
		return e.Type + ": " + e.Message
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Type != "" {
		return e.Type
	}
	return "unknown backend error"
}
