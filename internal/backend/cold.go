package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"gmaild/internal/logging"
)

// maxMessageBytes caps backend output copied into error messages.
const maxMessageBytes = 64 * 1024

// Arg binds one parameter to the backend command line. An empty Flag makes the
// value positional; otherwise "Flag value" is emitted when the parameter is present.
type Arg struct {
	Param string
	Flag  string
}

// Command is the fixed verb and argument binding for one method. Unsupported
// names parameters the command line cannot carry; a call that sets one fails
// with backend_unavailable instead of passing an option the CLI rejects.
type Command struct {
	Verb        string
	Args        []Arg
	Unsupported []string
}

// CommandTable maps method names to their command bindings.
type CommandTable map[string]Command

// Argv renders the verb followed by its arguments for params.
func (c Command) Argv(params Params) ([]string, error) {
	for _, name := range c.Unsupported {
		if !IsBlank(params[name]) && !isEmptyCollection(params[name]) {
			return nil, Errorf(KindUnavailable, "%s is not supported by the %s command; use warm mode", name, c.Verb)
		}
	}
	argv := make([]string, 0, 1+2*len(c.Args))
	argv = append(argv, c.Verb)
	var flags []string
	for _, arg := range c.Args {
		value, ok := params[arg.Param]
		if arg.Flag == "" {
			text, err := FormatArg(value)
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", arg.Param, err)
			}
			argv = append(argv, text)
			continue
		}
		if !ok || value == nil {
			continue
		}
		text, err := FormatArg(value)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", arg.Param, err)
		}
		flags = append(flags, arg.Flag, text)
	}
	return append(argv, flags...), nil
}

func isEmptyCollection(value any) bool {
	switch v := value.(type) {
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

// ColdConfig configures spawn-per-call execution.
type ColdConfig struct {
	// Command is the program plus leading arguments, e.g. python3 gmail-cli.py.
	Command  []string
	Commands CommandTable
	Env      []string
	Dir      string
}

// Cold spawns one backend process per call.
type Cold struct {
	cfg    ColdConfig
	logger *slog.Logger
}

// NewCold validates cfg and returns a cold executor.
func NewCold(cfg ColdConfig, logger *slog.Logger) (*Cold, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, errors.New("cold executor: command is required")
	}
	if len(cfg.Commands) == 0 {
		return nil, errors.New("cold executor: command table is empty")
	}
	return &Cold{cfg: cfg, logger: logging.NewComponentLogger(logger, "cold-executor")}, nil
}

func (c *Cold) Mode() string { return ModeCold }

func (c *Cold) Exclusive() bool { return false }

func (c *Cold) Close() error { return nil }

// Invoke runs the bound command for method and classifies its outcome.
func (c *Cold) Invoke(ctx context.Context, method string, params Params) (any, error) {
	binding, ok := c.cfg.Commands[method]
	if !ok {
		return nil, Errorf(KindUnavailable, "%s has no cold command; it requires warm mode", method)
	}
	tail, err := binding.Argv(params)
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			return nil, be
		}
		return nil, Wrap(KindInternal, err, "")
	}
	args := append(append([]string(nil), c.cfg.Command[1:]...), tail...)

	cmd := exec.CommandContext(ctx, c.cfg.Command[0], args...)
	cmd.Env = c.cfg.Env
	cmd.Dir = c.cfg.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, Wrap(KindProcessFailed, err, fmt.Sprintf("start %s: %v", c.cfg.Command[0], err))
	}
	waitErr := cmd.Wait()
	logger.Debug("backend process exited",
		logging.String(logging.FieldMethod, method),
		logging.String("verb", binding.Verb),
		logging.Int("exit_code", cmd.ProcessState.ExitCode()),
		logging.Duration("duration", time.Since(started)),
		logging.Int("stdout_bytes", stdout.Len()),
		logging.Int("stderr_bytes", stderr.Len()),
	)

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, Wrap(KindProcessFailed, waitErr, fmt.Sprintf("wait for %s: %v", binding.Verb, waitErr))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, Wrap(KindProcessFailed, ctxErr, fmt.Sprintf("%s interrupted: %v", binding.Verb, ctxErr))
		}
		return nil, &Error{Kind: KindNonzeroExit, Message: exitMessage(stdout.Bytes(), stderr.Bytes(), exitErr), Err: exitErr}
	}

	result, err := decodeOutput(stdout.Bytes())
	if err != nil {
		return nil, Wrap(KindOutputUnparseable, err, fmt.Sprintf("%s produced non-JSON output: %s", binding.Verb, snippet(stdout.Bytes(), 200)))
	}
	return result, nil
}

// exitMessage prefers a JSON {"error": ...} payload on stdout, then stderr.
func exitMessage(stdout, stderr []byte, exitErr *exec.ExitError) string {
	if payload, err := decodeOutput(stdout); err == nil {
		if obj, ok := payload.(map[string]any); ok {
			if msg := errorText(obj["error"]); msg != "" {
				return msg
			}
		}
	}
	if text := strings.TrimSpace(string(stderr)); text != "" {
		return truncate(text, maxMessageBytes)
	}
	return exitErr.Error()
}

func errorText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

func decodeOutput(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty output")
	}
	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func snippet(data []byte, limit int) string {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "(empty)"
	}
	return truncate(text, limit)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
