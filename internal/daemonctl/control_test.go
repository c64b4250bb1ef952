package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"gmaild/internal/daemonctl"
	"gmaild/internal/daemonrun"
	"gmaild/internal/ipc"
	"gmaild/internal/testsupport"
)

func TestStopWhenNotRunning(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "daemon.sock")
	if _, err := daemonctl.StopAndTerminate(socket, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	running, pid, err := daemonctl.ProcessInfo(socket)
	if running || pid != 0 || err != nil {
		t.Fatalf("unexpected process info running=%v pid=%d err=%v", running, pid, err)
	}
	if err := daemonctl.WaitForShutdown(socket, time.Second); err != nil {
		t.Fatalf("WaitForShutdown on missing socket: %v", err)
	}
}

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "gmaild.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	_, err := daemonctl.ForceKillProcess(pidPath, "", 0)
	if err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal, got %v", err)
	}
}

func TestForceKillWithoutPID(t *testing.T) {
	_, err := daemonctl.ForceKillProcess(filepath.Join(t.TempDir(), "missing.pid"), "", 0)
	if err == nil || !strings.Contains(err.Error(), "unable to determine daemon pid") {
		t.Fatalf("expected missing pid error, got %v", err)
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if _, err := daemonctl.Launch("  ", daemonctl.LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}

func TestWaitForClientReportsEarlyExit(t *testing.T) {
	exited := make(chan error, 1)
	exited <- errors.New("exit status 1")
	_, err := daemonctl.WaitForClient(filepath.Join(t.TempDir(), "daemon.sock"), 5*time.Second, exited)
	if err == nil || !strings.Contains(err.Error(), "exited during startup") {
		t.Fatalf("expected early exit error, got %v", err)
	}
}

func TestEnsureStartedAndStopAgainstRunningDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedPython(),
		testsupport.WithCLIScript(`echo '{}'`),
	)
	cfg.Logging.Level = "error"
	errs := make(chan error, 1)
	go func() { errs <- daemonrun.Run(context.Background(), cfg, daemonrun.Options{}) }()

	client, err := daemonctl.WaitForClient(cfg.SocketPath(), 5*time.Second, nil)
	if err != nil {
		t.Fatalf("WaitForClient: %v", err)
	}
	client.Close()

	result, err := daemonctl.EnsureStarted(cfg.SocketPath(), "/nonexistent/gmaild", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning || result.Launched || result.PID != os.Getpid() {
		t.Fatalf("unexpected start result %+v", result)
	}

	stop, err := daemonctl.StopAndTerminate(cfg.SocketPath(), 5*time.Second)
	if err != nil {
		t.Fatalf("StopAndTerminate: %v", err)
	}
	if !stop.StopAcknowledged || stop.ForcedKill {
		t.Fatalf("unexpected stop result %+v", stop)
	}
	select {
	case err := <-errs:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit")
	}
	if _, err := ipc.Dial(cfg.SocketPath()); err == nil {
		t.Fatal("socket still reachable after stop")
	}
}
