package backend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gmaild/internal/logging"
)

// Warm forwards calls to one persistent Session. The session is created once,
// before the daemon accepts requests, and is never replaced: after a session
// fault every later call fails with backend_unavailable.
type Warm struct {
	mu      sync.Mutex
	session Session
	lost    atomic.Pointer[error]
	faults  chan error
	logger  *slog.Logger

	inFlight  bool
	lastCall  time.Time
	callCount int64
}

// NewWarm wraps an already started session.
func NewWarm(session Session, logger *slog.Logger) *Warm {
	return &Warm{
		session: session,
		faults:  make(chan error, 1),
		logger:  logging.NewComponentLogger(logger, "warm-executor"),
	}
}

// StartWarm starts the host process described by cfg. Any failure is reported
// as backend_unavailable so the daemon can refuse to start.
func StartWarm(ctx context.Context, cfg SessionConfig, logger *slog.Logger) (*Warm, error) {
	session, err := StartSession(ctx, cfg, logger)
	if err != nil {
		return nil, Wrap(KindUnavailable, err, "warm session: "+err.Error())
	}
	return NewWarm(session, logger), nil
}

func (w *Warm) Mode() string { return ModeWarm }

func (w *Warm) Exclusive() bool { return true }

// Invoke runs method on the session. Calls never overlap: the executor lock is
// held for the full round trip.
func (w *Warm) Invoke(ctx context.Context, method string, params Params) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if lost := w.lostErr(); lost != nil {
		return nil, Wrap(KindUnavailable, lost, "warm session lost; restart gmaild: "+lost.Error())
	}

	w.inFlight = true
	result, err := w.session.Call(ctx, method, params)
	w.inFlight = false
	w.lastCall = time.Now()
	w.callCount++

	if err == nil {
		return result, nil
	}
	if errors.Is(err, ErrSessionFault) {
		w.markLost(err)
		logging.ErrorWithContext(logging.WithContext(ctx, w.logger), "warm session fault", "session_fault",
			logging.String(logging.FieldMethod, method),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the backend module and restart gmaild"),
		)
		select {
		case w.faults <- err:
		default:
		}
		return nil, Wrap(KindInternal, err, "")
	}
	return nil, err
}

// Ping round-trips the reserved ping method through the session host.
func (w *Warm) Ping(ctx context.Context) error {
	_, err := w.Invoke(ctx, PingMethod, nil)
	return err
}

// Faults delivers the first session fault. It is never closed.
func (w *Warm) Faults() <-chan error { return w.faults }

// WarmState is a point-in-time view of the session that never waits on an
// in-flight call.
type WarmState struct {
	Info      SessionInfo
	Alive     bool
	LostError string
	Calls     int64
	LastCall  time.Time
	Busy      bool
}

// State reports the session status. It uses TryLock so health checks stay
// bounded while a call is running; the lost marker is read without the lock.
func (w *Warm) State() WarmState {
	var state WarmState
	if w.mu.TryLock() {
		state = WarmState{Calls: w.callCount, LastCall: w.lastCall, Busy: w.inFlight}
		w.mu.Unlock()
	} else {
		state.Busy = true
	}
	state.Info = w.session.Info()
	state.Alive = true
	if lost := w.lostErr(); lost != nil {
		state.Alive = false
		state.LostError = lost.Error()
	}
	return state
}

// Close shuts the session down, waiting for any in-flight call to finish first.
func (w *Warm) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.markLost(errors.New("session closed"))
	return w.session.Close()
}

// markLost records the first reason the session became unusable.
func (w *Warm) markLost(err error) {
	w.lost.CompareAndSwap(nil, &err)
}

func (w *Warm) lostErr() error {
	if p := w.lost.Load(); p != nil {
		return *p
	}
	return nil
}
