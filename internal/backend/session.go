package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"gmaild/internal/logging"
)

const (
	defaultStartupTimeout = 60 * time.Second
	defaultStopTimeout    = 5 * time.Second
	stderrTailBytes       = 16 * 1024
)

// Session is a live connection to one backend runtime. Implementations are
// not required to be safe for concurrent use; Warm serializes access.
type Session interface {
	// Call runs one method. Errors wrapping ErrSessionFault mean the session
	// can no longer be used.
	Call(ctx context.Context, method string, params Params) (any, error)
	Info() SessionInfo
	Close() error
}

// SessionInfo describes the running session.
type SessionInfo struct {
	Name      string
	Version   string
	PID       int
	StartedAt time.Time
}

// SessionConfig configures the warm host process.
type SessionConfig struct {
	// Command is the host program plus arguments.
	Command        []string
	Env            []string
	Dir            string
	StartupTimeout time.Duration
	StopTimeout    time.Duration
}

type processSession struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *os.File
	reader  *bufio.Reader
	stderr  *tailBuffer
	info    SessionInfo
	nextID  uint64
	stopTTL time.Duration
	logger  *slog.Logger

	exited  chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

// StartSession launches the host process and waits for its ready frame.
// The process lives until Close or until ctx is cancelled.
func StartSession(ctx context.Context, cfg SessionConfig, logger *slog.Logger) (Session, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("session command is required")
	}
	startup := cfg.StartupTimeout
	if startup <= 0 {
		startup = defaultStartupTimeout
	}
	stop := cfg.StopTimeout
	if stop <= 0 {
		stop = defaultStopTimeout
	}

	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	cmd.Env = cfg.Env
	cmd.Dir = cfg.Dir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("session stdin: %w", err)
	}
	// A caller-owned pipe keeps buffered frames readable after the host exits;
	// StdoutPipe would be closed by Wait.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("session stdout: %w", err)
	}
	cmd.Stdout = stdoutW
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("start session host %s: %w", cfg.Command[0], err)
	}
	_ = stdoutW.Close()

	s := &processSession{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		reader:  bufio.NewReader(stdout),
		stderr:  stderr,
		stopTTL: stop,
		logger:  logging.NewComponentLogger(logger, "warm-session"),
		exited:  make(chan struct{}),
	}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	ready, err := s.awaitReady(ctx, startup)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.info = SessionInfo{
		Name:      ready.Name,
		Version:   ready.Version,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
	}
	s.logger.Info("warm session ready",
		logging.String("backend_name", ready.Name),
		logging.String("backend_version", ready.Version),
		logging.Int("pid", s.info.PID),
		logging.String(logging.FieldEventType, "session_ready"),
	)
	return s, nil
}

func (s *processSession) awaitReady(ctx context.Context, timeout time.Duration) (readyFrame, error) {
	type result struct {
		line []byte
		err  error
	}
	lines := make(chan result, 1)
	go func() {
		line, err := s.reader.ReadBytes('\n')
		lines <- result{line: line, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-lines:
		if res.err != nil {
			<-s.exitedOrTimeout(time.Second)
			return readyFrame{}, fmt.Errorf("session host exited before ready: %w%s", res.err, s.stderrSuffix())
		}
		var frame readyFrame
		if err := json.Unmarshal(bytes.TrimSpace(res.line), &frame); err != nil {
			return readyFrame{}, fmt.Errorf("decode ready frame: %w (%s)", err, snippet(res.line, 200))
		}
		if !frame.Ready {
			return readyFrame{}, fmt.Errorf("backend failed to start: %s%s", frame.Error.text(), s.stderrSuffix())
		}
		return frame, nil
	case <-timer.C:
		return readyFrame{}, fmt.Errorf("session host not ready after %s%s", timeout, s.stderrSuffix())
	case <-ctx.Done():
		return readyFrame{}, fmt.Errorf("session startup cancelled: %w", ctx.Err())
	}
}

func (s *processSession) Info() SessionInfo { return s.info }

func (s *processSession) Call(ctx context.Context, method string, params Params) (any, error) {
	select {
	case <-s.exited:
		return nil, fmt.Errorf("%w: host process exited: %v%s", ErrSessionFault, s.waitErr, s.stderrSuffix())
	default:
	}
	if params == nil {
		params = Params{}
	}

	s.nextID++
	id := s.nextID
	payload, err := json.Marshal(requestFrame{ID: id, Method: method, Params: params})
	if err != nil {
		// The session is untouched; only this call is rejected.
		return nil, Wrap(KindInternal, err, fmt.Sprintf("encode params: %v", err))
	}
	payload = append(payload, '\n')
	if _, err := s.stdin.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: write request: %v%s", ErrSessionFault, err, s.stderrSuffix())
	}

	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v%s", ErrSessionFault, err, s.stderrSuffix())
	}
	var frame responseFrame
	if err := json.Unmarshal(bytes.TrimSpace(line), &frame); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v (%s)", ErrSessionFault, err, snippet(line, 200))
	}
	if frame.ID != id {
		return nil, fmt.Errorf("%w: response id %d does not match request id %d", ErrSessionFault, frame.ID, id)
	}
	if !frame.OK {
		if frame.Error != nil && frame.Error.Fatal {
			return nil, fmt.Errorf("%w: %s", ErrSessionFault, frame.Error.text())
		}
		return nil, &Error{Kind: KindInternal, Message: frame.Error.text()}
	}
	if len(frame.Result) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(frame.Result, &result); err != nil {
		return nil, Wrap(KindOutputUnparseable, err, fmt.Sprintf("decode result: %v", err))
	}
	return result, nil
}

// Close ends the session: stdin is closed so the host can run its shutdown
// hook, then the process is killed if it has not exited within the stop timeout.
func (s *processSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		select {
		case <-s.exited:
		case <-time.After(s.stopTTL):
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
			<-s.exited
			s.closeErr = fmt.Errorf("session host killed after %s", s.stopTTL)
		}
		_ = s.stdout.Close()
	})
	return s.closeErr
}

func (s *processSession) exitedOrTimeout(d time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-s.exited:
		case <-time.After(d):
		}
	}()
	return done
}

func (s *processSession) stderrSuffix() string {
	if text := strings.TrimSpace(s.stderr.String()); text != "" {
		return "; stderr: " + truncate(lastLines(text, 5), 2048)
	}
	return ""
}

func lastLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
