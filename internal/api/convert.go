package api

import (
	"time"

	"gmaild/internal/backend"
	"gmaild/internal/dispatch"
	"gmaild/internal/journal"
)

// FromError converts a classified backend error.
func FromError(err *backend.Error) *ErrorPayload {
	if err == nil {
		return nil
	}
	return &ErrorPayload{Kind: string(err.Kind), Message: err.Message}
}

// FromResponse converts a dispatch response.
func FromResponse(resp dispatch.Response) CallResponse {
	out := CallResponse{ID: resp.ID, Error: FromError(resp.Error)}
	if resp.Error == nil {
		out.OK = true
		out.Result = resp.Result
	}
	return out
}

// ToRequest converts a transport request into a dispatch request.
func ToRequest(req CallRequest) dispatch.Request {
	var params backend.Params
	if req.Params != nil {
		params = backend.Params(req.Params)
	}
	return dispatch.Request{ID: req.ID, Method: req.Method, Params: params}
}

// FromStats converts dispatch counters.
func FromStats(stats dispatch.Stats) CallStats {
	return CallStats{
		Total:    stats.Total,
		Failed:   stats.Failed,
		InFlight: stats.InFlight,
		Queued:   stats.Queued,
		Serial:   stats.Serial,
	}
}

// FromWarmState converts a warm executor snapshot.
func FromWarmState(state backend.WarmState) *SessionStatus {
	return &SessionStatus{
		Alive:     state.Alive,
		PID:       state.Info.PID,
		Name:      state.Info.Name,
		Version:   state.Info.Version,
		StartedAt: formatTime(state.Info.StartedAt),
		Calls:     state.Calls,
		LastCall:  formatTime(state.LastCall),
		Busy:      state.Busy,
		LostError: state.LostError,
	}
}

// FromJournalEntries converts journal rows, preserving order.
func FromJournalEntries(entries []journal.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{
			CallID:       e.CallID,
			Method:       e.Method,
			Mode:         e.Mode,
			StartedAt:    formatTime(e.StartedAt),
			DurationMS:   millis(e.Duration),
			QueuedMS:     millis(e.Queued),
			OK:           e.OK,
			ErrorKind:    e.ErrorKind,
			ErrorMessage: e.ErrorMessage,
		})
	}
	return out
}

// FromJournalSummary converts per-method aggregates.
func FromJournalSummary(summary []journal.MethodSummary) []MethodSummary {
	if len(summary) == 0 {
		return nil
	}
	out := make([]MethodSummary, 0, len(summary))
	for _, m := range summary {
		out = append(out, MethodSummary{
			Method:       m.Method,
			Calls:        m.Calls,
			Failures:     m.Failures,
			AvgLatencyMS: millis(m.AvgLatency),
			LastCalled:   formatTime(m.LastCalled),
		})
	}
	return out
}

// ParseTime parses a payload timestamp. Invalid values yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
