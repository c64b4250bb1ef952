package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"gmaild/internal/backend"
	"gmaild/internal/config"
	"gmaild/internal/gmail"
)

// ExecutorFactory builds the backend executor for a daemon run. ctx bounds the
// lifetime of any persistent backend process.
type ExecutorFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend.Executor, error)

// NewExecutor builds the executor selected by cfg.Backend.Mode. Warm mode
// installs the session host script into the runtime directory and blocks until
// the backend reports ready.
func NewExecutor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend.Executor, error) {
	switch cfg.Backend.Mode {
	case config.BackendModeCold:
		cold, err := backend.NewCold(backend.ColdConfig{
			Command:  []string{cfg.Backend.Python, cfg.Backend.CLIScript},
			Commands: gmail.Commands(),
			Dir:      filepath.Dir(cfg.Backend.CLIScript),
		}, logger)
		if err != nil {
			return nil, err
		}
		return cold, nil
	case config.BackendModeWarm:
		hostPath := cfg.WarmHostPath()
		if err := backend.InstallHost(hostPath); err != nil {
			return nil, backend.Wrap(backend.KindUnavailable, err, "install warm host: "+err.Error())
		}
		warm, err := backend.StartWarm(ctx, backend.SessionConfig{
			Command:        backend.HostCommand(cfg.Backend.Python, hostPath, cfg.Backend.ModulePath, cfg.Backend.ModuleClass),
			Dir:            filepath.Dir(cfg.Backend.ModulePath),
			StartupTimeout: cfg.StartupTimeout(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return warm, nil
	default:
		return nil, fmt.Errorf("unsupported backend mode %q", cfg.Backend.Mode)
	}
}
