package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gmaild/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if result.Err() != nil {
		t.Fatalf("expected nil Err for passing result")
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckReadableFile(t *testing.T) {
	dir := t.TempDir()
	module := filepath.Join(dir, "gmail.py")
	if err := os.WriteFile(module, []byte("class GmailModule: pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckReadableFile("module", module); !r.Passed {
		t.Fatalf("expected readable module, got %s", r.Detail)
	}
	if r := CheckReadableFile("module", dir); r.Passed {
		t.Fatal("expected directory to fail file check")
	}
	if r := CheckReadableFile("module", ""); r.Passed || r.Detail != "not configured" {
		t.Fatalf("unexpected result for empty path: %+v", r)
	}
}

func TestRunAllSelectsBackendCheck(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RuntimeDir = base
	cfg.Paths.LogDir = base
	cfg.Backend.ModulePath = filepath.Join(base, "missing.py")
	cfg.Backend.CLIScript = filepath.Join(base, "cli.py")
	if err := os.WriteFile(cfg.Backend.CLIScript, []byte("print('{}')\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	warm := RunAll(&cfg)
	if len(warm) != 3 || warm[2].Name != "Backend module" {
		t.Fatalf("unexpected warm checks %+v", warm)
	}
	if err := FirstFailure(warm); err == nil || !strings.Contains(err.Error(), "Backend module") {
		t.Fatalf("expected missing module failure, got %v", err)
	}

	cfg.Backend.Mode = config.BackendModeCold
	cold := RunAll(&cfg)
	if cold[2].Name != "Backend CLI script" {
		t.Fatalf("unexpected cold checks %+v", cold)
	}
	if err := FirstFailure(cold); err != nil {
		t.Fatalf("expected cold checks to pass, got %v", err)
	}
}
