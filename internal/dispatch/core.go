// Package dispatch routes validated requests to the service and owns the
// concurrency discipline for the backend.
//
// When the executor is exclusive (warm mode) every call is handed to a single
// worker goroutine through a channel, so calls run one at a time in the order
// they arrived and none is dropped. Otherwise calls run on the caller's
// goroutine and may overlap freely.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"gmaild/internal/backend"
	"gmaild/internal/logging"
	"gmaild/internal/service"
)

// ErrClosed is returned for requests that arrive after Close.
var ErrClosed = errors.New("dispatch core closed")

// Request is one call as delivered by the transport.
type Request struct {
	ID     string
	Method string
	Params service.Params
}

// Response carries either a result or a classified error.
type Response struct {
	ID     string
	Result any
	Error  *backend.Error
}

// Record describes a finished call.
type Record struct {
	ID        string
	Method    string
	Mode      string
	StartedAt time.Time
	Duration  time.Duration
	Queued    time.Duration
	Err       *backend.Error
}

// Recorder persists call records. Record must not block for long; failures
// are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Stats is a snapshot of call counters.
type Stats struct {
	Total    int64 `json:"total"`
	Failed   int64 `json:"failed"`
	InFlight int64 `json:"in_flight"`
	Queued   int64 `json:"queued"`
	Serial   bool  `json:"serial"`
}

// Option configures a Core.
type Option func(*Core)

// WithSerial forces one-at-a-time FIFO execution.
func WithSerial(serial bool) Option {
	return func(c *Core) { c.serial = serial }
}

// WithRecorder attaches a call recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Core) { c.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) { c.logger = logger }
}

// WithMode labels records with the backend mode.
func WithMode(mode string) Option {
	return func(c *Core) { c.mode = mode }
}

type job struct {
	ctx      context.Context
	req      Request
	enqueued time.Time
	done     chan Response
}

// Core is the dispatch core.
type Core struct {
	svc      service.Service
	serial   bool
	mode     string
	recorder Recorder
	logger   *slog.Logger

	jobs     chan *job
	mu       sync.RWMutex
	closed   bool
	workerWG sync.WaitGroup

	total    atomic.Int64
	failed   atomic.Int64
	inFlight atomic.Int64
	queued   atomic.Int64
}

// New creates a core for svc. In serial mode a worker goroutine is started;
// call Close to stop it.
func New(svc service.Service, opts ...Option) *Core {
	c := &Core{svc: svc}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "dispatch")
	if c.serial {
		c.jobs = make(chan *job)
		c.workerWG.Add(1)
		go c.worker()
	}
	return c
}

// Serial reports whether calls are serialized.
func (c *Core) Serial() bool { return c.serial }

// Service returns the dispatched service.
func (c *Core) Service() service.Service { return c.svc }

// Handle runs req exactly once and returns its outcome. In serial mode it
// blocks until every earlier request has finished.
func (c *Core) Handle(ctx context.Context, req Request) Response {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if !c.serial {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return Response{ID: req.ID, Error: backend.Wrap(backend.KindUnavailable, ErrClosed, "")}
		}
		return c.run(ctx, req, time.Now())
	}

	j := &job{ctx: ctx, req: req, enqueued: time.Now(), done: make(chan Response, 1)}
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return Response{ID: req.ID, Error: backend.Wrap(backend.KindUnavailable, ErrClosed, "")}
	}
	c.queued.Add(1)
	c.jobs <- j
	c.mu.RUnlock()
	return <-j.done
}

func (c *Core) worker() {
	defer c.workerWG.Done()
	for j := range c.jobs {
		c.queued.Add(-1)
		j.done <- c.run(j.ctx, j.req, j.enqueued)
	}
}

func (c *Core) run(ctx context.Context, req Request, enqueued time.Time) Response {
	ctx = logging.WithCallID(ctx, req.ID)
	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldMethod, req.Method))

	c.inFlight.Add(1)
	started := time.Now()
	result, err := c.svc.Dispatch(ctx, req.Method, req.Params)
	duration := time.Since(started)
	c.inFlight.Add(-1)
	c.total.Add(1)

	resp := Response{ID: req.ID, Result: result}
	if err != nil {
		resp.Result = nil
		resp.Error = backend.AsError(err)
		c.failed.Add(1)
		logger.Info("call failed",
			logging.String(logging.FieldErrorKind, string(resp.Error.Kind)),
			logging.String("error_message", resp.Error.Message),
			logging.Duration("duration", duration),
			logging.String(logging.FieldEventType, "call_failed"),
		)
	} else {
		logger.Info("call finished",
			logging.Duration("duration", duration),
			logging.String(logging.FieldEventType, "call_finished"),
		)
	}

	if c.recorder != nil {
		rec := Record{
			ID:        req.ID,
			Method:    req.Method,
			Mode:      c.mode,
			StartedAt: started,
			Duration:  duration,
			Queued:    started.Sub(enqueued),
			Err:       resp.Error,
		}
		if rerr := c.recorder.Record(context.WithoutCancel(ctx), rec); rerr != nil {
			logging.WarnWithContext(logger, "call journal write failed", "journal_write_failed",
				logging.Error(rerr),
				logging.String(logging.FieldImpact, "call missing from history"),
				logging.String(logging.FieldErrorHint, "check journal.db permissions and disk space"),
			)
		}
	}
	return resp
}

// Stats returns the current counters.
func (c *Core) Stats() Stats {
	return Stats{
		Total:    c.total.Load(),
		Failed:   c.failed.Load(),
		InFlight: c.inFlight.Load(),
		Queued:   c.queued.Load(),
		Serial:   c.serial,
	}
}

// Close stops accepting requests and waits for queued calls to finish.
func (c *Core) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.serial {
		close(c.jobs)
	}
	c.mu.Unlock()
	c.workerWG.Wait()
}
