// Package daemonrun hosts the daemon process: logging setup, the pid file, the
// daemon itself and its IPC server, until a signal, a Stop request or a
// backend session fault ends the run.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gmaild/internal/backend"
	"gmaild/internal/config"
	"gmaild/internal/daemon"
	"gmaild/internal/ipc"
	"gmaild/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// DaemonOptions are passed to daemon.New.
	DaemonOptions []daemon.Option
}

// Run starts the gmaild daemon and blocks until it should exit. A backend
// session fault ends the run with an error so the process exits non-zero.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("gmaild-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update gmaild.log link: %v\n", err)
	}
	logging.PruneLogs(logger, cfg.Paths.LogDir, "gmaild-*.log", cfg.Logging.RetentionDays, logPath)
	logDependencySnapshot(logger, cfg)

	d, err := daemon.New(cfg, logger, opts.DaemonOptions...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Stop()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(backend.KindOf(err))),
			logging.String(logging.FieldErrorHint, "check the backend configuration and run the module once by hand"),
			logging.String(logging.FieldImpact, "no requests will be served"),
		)
		return err
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("gmaild ready",
		logging.String("socket", cfg.SocketPath()),
		logging.String("log_file", logPath),
		logging.String(logging.FieldEventType, "daemon_ready"),
	)

	select {
	case <-signalCtx.Done():
		logger.Info("gmaild shutting down", logging.String("reason", "signal"))
	case <-d.Done():
		logger.Info("gmaild shutting down", logging.String("reason", "stop requested"))
	case fault := <-d.Faults():
		logger.Info("gmaild shutting down", logging.String("reason", "backend session fault"))
		return errors.Join(backend.ErrSessionFault, fault)
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "gmaild.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	python := cfg.Backend.Python
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String(logging.FieldBackendMode, cfg.Backend.Mode),
		logging.String("python_binary", python),
		logging.Bool("python_available", binaryAvailable(python)),
		logging.Bool("journal_enabled", cfg.Journal.Enabled),
		logging.Bool("api_enabled", cfg.API.Bind != ""),
	}
	if cfg.IsWarm() {
		attrs = append(attrs,
			logging.String("module_path", cfg.Backend.ModulePath),
			logging.Bool("module_present", fileExists(cfg.Backend.ModulePath)),
			logging.String("module_class", cfg.Backend.ModuleClass),
		)
	} else {
		attrs = append(attrs,
			logging.String("cli_script", cfg.Backend.CLIScript),
			logging.Bool("cli_script_present", fileExists(cfg.Backend.CLIScript)),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
