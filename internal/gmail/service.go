// Package gmail is the Gmail service: its method table, the cold command
// bindings for gmail-cli, startup checks and health reporting.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gmaild/internal/backend"
	"gmaild/internal/deps"
	"gmaild/internal/logging"
	"gmaild/internal/preflight"
	"gmaild/internal/service"
)

const (
	ServiceName    = "gmail"
	ServiceVersion = "1.0.0"

	defaultProbeTimeout = 10 * time.Second
)

// Options carries the paths the startup and health checks inspect.
type Options struct {
	Python       string
	CLIScript    string
	ModulePath   string
	RuntimeDir   string
	ProbeTimeout time.Duration
}

type pinger interface {
	Ping(ctx context.Context) error
}

type stateReporter interface {
	State() backend.WarmState
}

// Service exposes the Gmail methods over one backend executor.
type Service struct {
	registry *service.Registry
	exec     backend.Executor
	opts     Options
	logger   *slog.Logger
}

var _ service.Service = (*Service)(nil)

// New builds the Gmail service around exec.
func New(exec backend.Executor, opts Options, logger *slog.Logger) (*Service, error) {
	if exec == nil {
		return nil, errors.New("gmail service: executor is required")
	}
	registry, err := service.NewRegistry(Methods()...)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	return &Service{
		registry: registry,
		exec:     exec,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "gmail"),
	}, nil
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) Version() string { return ServiceVersion }

func (s *Service) MethodList() []service.MethodInfo { return s.registry.MethodList() }

// Executor returns the backend executor the service dispatches to.
func (s *Service) Executor() backend.Executor { return s.exec }

func (s *Service) Dispatch(ctx context.Context, method string, params service.Params) (any, error) {
	return s.registry.Dispatch(ctx, s.exec, method, params)
}

// OnStart confirms the backend can serve calls. Warm sessions must answer a
// ping; cold mode needs the interpreter to run and the CLI script to be readable.
func (s *Service) OnStart(ctx context.Context) error {
	if p, ok := s.exec.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return backend.Wrap(backend.KindUnavailable, err, "warm session ping failed: "+err.Error())
		}
		s.logger.Info("backend session answered ping", logging.String(logging.FieldEventType, "backend_ready"))
		return nil
	}

	if missing := deps.Missing(deps.CheckBinaries([]deps.Requirement{{Name: "Python", Command: s.opts.Python}})); len(missing) > 0 {
		return backend.Errorf(backend.KindUnavailable, "python interpreter unavailable: %s", missing[0].Detail)
	}
	if err := preflight.CheckReadableFile("gmail-cli script", s.opts.CLIScript).Err(); err != nil {
		return backend.Wrap(backend.KindUnavailable, err, "")
	}
	version, err := deps.ProbeVersion(ctx, s.opts.ProbeTimeout, s.opts.Python, "--version")
	if err != nil {
		return backend.Wrap(backend.KindUnavailable, err, "python interpreter not invocable: "+err.Error())
	}
	s.logger.Info("backend runtime available",
		logging.String("python_version", version),
		logging.String("cli_script", s.opts.CLIScript),
		logging.String(logging.FieldEventType, "backend_ready"),
	)
	return nil
}

// HealthCheck reports the backend and runtime directory. It never waits on an
// in-flight backend call.
func (s *Service) HealthCheck(context.Context) map[string]service.HealthStatus {
	checks := map[string]service.HealthStatus{
		"gmail_service": s.backendHealth(),
	}
	if s.opts.RuntimeDir != "" {
		checks["runtime_dir"] = service.Probe(func() (string, error) {
			r := preflight.CheckDirectoryAccess("runtime dir", s.opts.RuntimeDir)
			return r.Detail, r.Err()
		}, "")
	}
	return checks
}

func (s *Service) backendHealth() service.HealthStatus {
	if sr, ok := s.exec.(stateReporter); ok {
		return service.Probe(func() (string, error) {
			st := sr.State()
			if !st.Alive {
				return "", fmt.Errorf("warm session lost: %s", st.LostError)
			}
			msg := fmt.Sprintf("warm session pid %d (%s %s)", st.Info.PID, st.Info.Name, st.Info.Version)
			if st.Busy {
				msg += ", call in progress"
			}
			return msg, nil
		}, "")
	}
	return service.Probe(func() (string, error) {
		if missing := deps.Missing(deps.CheckBinaries([]deps.Requirement{{Name: "Python", Command: s.opts.Python}})); len(missing) > 0 {
			return "", errors.New(missing[0].Detail)
		}
		if err := preflight.CheckReadableFile("gmail-cli script", s.opts.CLIScript).Err(); err != nil {
			return "", err
		}
		return "cold backend runnable (" + s.opts.CLIScript + ")", nil
	}, "")
}
