package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"gmaild/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a cold-mode config seeded with unique temp directories
// per test. It applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RuntimeDir = filepath.Join(base, "run")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Backend.Mode = config.BackendModeCold
	cfgVal.Backend.CLIScript = filepath.Join(base, "scripts", "gmail-cli.py")
	cfgVal.Backend.ModulePath = filepath.Join(base, "module", "gmail.py")
	cfgVal.Backend.StartupTimeoutSeconds = 10

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithBackendMode overrides the backend mode.
func WithBackendMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.Mode = mode
	}
}

// WithJournal toggles the call journal.
func WithJournal(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = enabled
	}
}

// WithAPIBind enables the HTTP API on the given address.
func WithAPIBind(bind string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Bind = bind
	}
}

// WithStubbedPython writes a python3 stub that answers --version and runs
// any script argument with /bin/sh, then points the config at it.
func WithStubbedPython() ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "bin", "python3")
		WriteExecutable(b.t, path, `if [ "$1" = "--version" ]; then echo "Python 3.12.3"; exit 0; fi
exec /bin/sh "$@"`)
		b.cfg.Backend.Python = path
	}
}

// WithCLIScript writes body as the gmail-cli script. With WithStubbedPython the
// script runs under /bin/sh and receives the verb and arguments as $@.
func WithCLIScript(body string) ConfigOption {
	return func(b *configBuilder) {
		WriteExecutable(b.t, b.cfg.Backend.CLIScript, body)
	}
}

// WithModuleFile writes a placeholder backend module so warm-mode preflight
// passes.
func WithModuleFile() ConfigOption {
	return func(b *configBuilder) {
		if err := os.MkdirAll(filepath.Dir(b.cfg.Backend.ModulePath), 0o755); err != nil {
			b.t.Fatalf("mkdir module dir: %v", err)
		}
		if err := os.WriteFile(b.cfg.Backend.ModulePath, []byte("class GmailModule:\n    pass\n"), 0o644); err != nil {
			b.t.Fatalf("write module: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RuntimeDir)
}
