package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"gmaild/internal/api"
	"gmaild/internal/backend"
	"gmaild/internal/config"
	"gmaild/internal/dispatch"
	"gmaild/internal/gmail"
	"gmaild/internal/journal"
	"gmaild/internal/logging"
	"gmaild/internal/preflight"
	"gmaild/internal/service"
)

const journalProbeTimeout = 2 * time.Second

var (
	// ErrNotRunning is returned by queries made before Start or after Stop.
	ErrNotRunning = errors.New("daemon not running")
	// ErrStopped is returned when Start is called on a daemon that has already stopped.
	ErrStopped = errors.New("daemon already stopped")
)

type faultSource interface {
	Faults() <-chan error
}

type stateReporter interface {
	State() backend.WarmState
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithExecutorFactory replaces the executor construction used by Start.
func WithExecutorFactory(factory ExecutorFactory) Option {
	return func(d *Daemon) {
		if factory != nil {
			d.factory = factory
		}
	}
}

// Daemon owns one backend executor and the service built on it. A Daemon runs
// at most once: after Stop it cannot be started again.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	factory ExecutorFactory

	lockPath string
	lock     *flock.Flock

	mu        sync.RWMutex
	running   atomic.Bool
	stopped   bool
	startedAt time.Time
	runCtx    context.Context
	cancel    context.CancelFunc
	exec      backend.Executor
	svc       *gmail.Service
	core      *dispatch.Core
	journal   *journal.Store
	api       *apiServer

	done     chan struct{}
	faults   chan error
	stopOnce sync.Once
}

// New constructs a daemon. Nothing is started until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		factory:  NewExecutor,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		done:     make(chan struct{}),
		faults:   make(chan error, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, builds the executor and service, runs the
// service startup check and opens the journal and HTTP API. Any failure undoes
// the work done so far.
func (d *Daemon) Start(ctx context.Context) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gmaild instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	var (
		exec  backend.Executor
		store *journal.Store
		core  *dispatch.Core
		srv   *apiServer
	)
	defer func() {
		if err == nil {
			return
		}
		srv.stop()
		if core != nil {
			core.Close()
		}
		if exec != nil {
			_ = exec.Close()
		}
		if store != nil {
			_ = store.Close()
		}
		cancel()
		_ = d.lock.Unlock()
	}()

	if err = preflight.FirstFailure(preflight.RunAll(d.cfg)); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	d.logger.Info("starting backend",
		logging.String(logging.FieldBackendMode, d.cfg.Backend.Mode),
		logging.String(logging.FieldEventType, "backend_starting"),
	)
	exec, err = d.factory(runCtx, d.cfg, d.logger)
	if err != nil {
		return fmt.Errorf("start backend: %w", err)
	}

	svc, err := gmail.New(exec, gmail.Options{
		Python:     d.cfg.Backend.Python,
		CLIScript:  d.cfg.Backend.CLIScript,
		ModulePath: d.cfg.Backend.ModulePath,
		RuntimeDir: d.cfg.Paths.RuntimeDir,
	}, d.logger)
	if err != nil {
		return err
	}
	if err = svc.OnStart(runCtx); err != nil {
		return fmt.Errorf("service %s startup: %w", svc.Name(), err)
	}

	coreOpts := []dispatch.Option{
		dispatch.WithSerial(exec.Exclusive()),
		dispatch.WithLogger(d.logger),
		dispatch.WithMode(exec.Mode()),
	}
	if d.cfg.Journal.Enabled {
		store, err = journal.Open(d.cfg.JournalPath(), d.cfg.Journal.MaxEntries)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		coreOpts = append(coreOpts, dispatch.WithRecorder(store))
	}
	core = dispatch.New(svc, coreOpts...)

	if d.cfg.API.Bind != "" {
		srv = newAPIServer(d.cfg.API.Bind, d.cfg.API.Token, d, d.logger)
		if err = srv.start(runCtx); err != nil {
			return err
		}
	}

	d.exec = exec
	d.svc = svc
	d.core = core
	d.journal = store
	d.api = srv
	d.runCtx = runCtx
	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)

	if fs, ok := exec.(faultSource); ok {
		go d.watchFaults(runCtx, fs.Faults())
	}

	d.logger.Info("gmaild started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldBackendMode, exec.Mode()),
		logging.Bool("serial_dispatch", core.Serial()),
		logging.Int("methods", len(svc.MethodList())),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) watchFaults(ctx context.Context, faults <-chan error) {
	select {
	case <-ctx.Done():
		return
	case fault := <-faults:
		if !d.cfg.Backend.ExitOnSessionFault {
			logging.ErrorWithContext(d.logger, "backend session lost", "session_fault",
				logging.Error(fault),
				logging.String(logging.FieldImpact, "every later call fails with backend_unavailable"),
				logging.String(logging.FieldErrorHint, "restart gmaild to start a new session"),
			)
			return
		}
		logging.ErrorWithContext(d.logger, "backend session lost, shutting down", "session_fault",
			logging.Error(fault),
			logging.String(logging.FieldImpact, "daemon exits so a supervisor can restart it"),
			logging.String(logging.FieldErrorHint, "check the backend module logs and OAuth credentials"),
		)
		select {
		case d.faults <- fault:
		default:
		}
	}
}

// Faults delivers the session fault that should terminate the process. It is
// never closed.
func (d *Daemon) Faults() <-chan error { return d.faults }

// Done is closed once Stop has finished.
func (d *Daemon) Done() <-chan struct{} { return d.done }

// Running reports whether the daemon accepts calls.
func (d *Daemon) Running() bool { return d.running.Load() }

// Stop drains the dispatch core, closes the backend, the journal and the HTTP
// API, and releases the lock. It is safe to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		wasRunning := d.running.Load()
		d.running.Store(false)
		d.stopped = true
		core, exec, store, srv, cancel := d.core, d.exec, d.journal, d.api, d.cancel
		d.mu.Unlock()

		if wasRunning {
			srv.stop()
			// Cancel first so in-flight backend work ends before the drain.
			if cancel != nil {
				cancel()
			}
			if core != nil {
				core.Close()
			}
			if exec != nil {
				if err := exec.Close(); err != nil {
					d.logger.Warn("backend close failed",
						logging.Error(err),
						logging.String(logging.FieldEventType, "backend_close_failed"),
						logging.String(logging.FieldImpact, "backend process may linger"),
						logging.String(logging.FieldErrorHint, "check for orphaned python processes"),
					)
				}
			}
			if store != nil {
				_ = store.Close()
			}
			if err := d.lock.Unlock(); err != nil {
				d.logger.Warn("failed to release daemon lock",
					logging.Error(err),
					logging.String(logging.FieldEventType, "lock_release_failed"),
					logging.String(logging.FieldImpact, "next start may report another instance"),
					logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no gmaild is running"),
				)
			}
			d.logger.Info("gmaild stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
		}
		close(d.done)
	})
}

// Close is Stop for use in defers.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Call dispatches one request. Failures are reported in the response, never
// as a transport error. Stop cancels calls still running.
func (d *Daemon) Call(ctx context.Context, req api.CallRequest) api.CallResponse {
	d.mu.RLock()
	core, runCtx := d.core, d.runCtx
	d.mu.RUnlock()
	if core == nil || !d.running.Load() {
		return api.CallResponse{
			ID:    req.ID,
			Error: api.FromError(backend.Wrap(backend.KindUnavailable, ErrNotRunning, "")),
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(runCtx, cancel)
	defer stopWatch()
	return api.FromResponse(core.Handle(ctx, api.ToRequest(req)))
}

// Methods returns the method catalog.
func (d *Daemon) Methods() (api.MethodsResponse, error) {
	d.mu.RLock()
	svc := d.svc
	d.mu.RUnlock()
	if svc == nil {
		return api.MethodsResponse{}, ErrNotRunning
	}
	return api.MethodsResponse{Service: svc.Name(), Version: svc.Version(), Methods: svc.MethodList()}, nil
}

// Health merges the service's health checks with the journal's.
func (d *Daemon) Health(ctx context.Context) (api.HealthResponse, error) {
	d.mu.RLock()
	svc, store := d.svc, d.journal
	d.mu.RUnlock()
	if svc == nil || !d.running.Load() {
		return api.HealthResponse{}, ErrNotRunning
	}
	checks := svc.HealthCheck(ctx)
	if store != nil {
		checks["journal"] = service.Probe(func() (string, error) {
			probeCtx, cancel := context.WithTimeout(ctx, journalProbeTimeout)
			defer cancel()
			return "", store.Ping(probeCtx)
		}, "journal reachable")
	}
	return api.HealthResponse{
		Service: svc.Name(),
		Version: svc.Version(),
		OK:      service.Healthy(checks),
		Checks:  checks,
	}, nil
}

// Status reports runtime information. It is answered even when the daemon is
// not running.
func (d *Daemon) Status(context.Context) api.StatusResponse {
	d.mu.RLock()
	defer d.mu.RUnlock()
	status := api.StatusResponse{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		Service:    gmail.ServiceName,
		Version:    gmail.ServiceVersion,
		Mode:       d.cfg.Backend.Mode,
		SocketPath: d.cfg.SocketPath(),
		LockPath:   d.lockPath,
		PIDPath:    d.cfg.PIDPath(),
	}
	if !d.startedAt.IsZero() {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
		if status.Running {
			status.UptimeSecs = time.Since(d.startedAt).Seconds()
		}
	}
	if d.journal != nil {
		status.JournalPath = d.journal.Path()
	}
	if d.api != nil {
		status.APIAddress = d.api.addr()
	}
	if d.core != nil {
		status.Calls = api.FromStats(d.core.Stats())
	}
	if sr, ok := d.exec.(stateReporter); ok {
		status.Session = api.FromWarmState(sr.State())
	}
	return status
}

// History returns recent journaled calls and per-method aggregates.
func (d *Daemon) History(ctx context.Context, req api.HistoryRequest) (api.HistoryResponse, error) {
	d.mu.RLock()
	store := d.journal
	d.mu.RUnlock()
	if store == nil {
		return api.HistoryResponse{Enabled: false, Entries: []api.HistoryEntry{}}, nil
	}
	entries, err := store.Recent(ctx, journal.Query{Limit: req.Limit, Method: req.Method})
	if err != nil {
		return api.HistoryResponse{}, err
	}
	summary, err := store.Summary(ctx)
	if err != nil {
		return api.HistoryResponse{}, err
	}
	return api.HistoryResponse{
		Enabled: true,
		Entries: api.FromJournalEntries(entries),
		Summary: api.FromJournalSummary(summary),
	}, nil
}
