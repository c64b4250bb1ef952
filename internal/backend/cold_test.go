package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gmaild/internal/logging"
)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gmail-cli")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func newTestCold(t *testing.T, program string) *Cold {
	t.Helper()
	cold, err := NewCold(ColdConfig{
		Command: []string{program},
		Commands: CommandTable{
			"gmail.inbox":  {Verb: "inbox", Args: []Arg{{Param: "limit", Flag: "--limit"}}},
			"gmail.search": {Verb: "search", Args: []Arg{{Param: "query"}, {Param: "limit", Flag: "--limit"}}},
		},
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewCold: %v", err)
	}
	return cold
}

func TestColdReturnsParsedStdout(t *testing.T) {
	cold := newTestCold(t, writeStub(t, `echo '{"ok":true}'`))

	result, err := cold.Invoke(context.Background(), "gmail.inbox", Params{"limit": float64(10)})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	want := map[string]any{"ok": true}
	if !reflect.DeepEqual(result, want) {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestColdNonzeroExitUsesStdoutErrorPayload(t *testing.T) {
	cold := newTestCold(t, writeStub(t, `echo '{"error":"boom"}'; echo 'traceback noise' >&2; exit 1`))

	_, err := cold.Invoke(context.Background(), "gmail.inbox", Params{})
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if be.Kind != KindNonzeroExit || be.Message != "boom" {
		t.Fatalf("expected backend_nonzero_exit boom, got %v", be)
	}
}

func TestColdNonzeroExitFallsBackToStderr(t *testing.T) {
	cold := newTestCold(t, writeStub(t, `echo 'token expired' >&2; exit 2`))

	_, err := cold.Invoke(context.Background(), "gmail.inbox", Params{})
	if KindOf(err) != KindNonzeroExit {
		t.Fatalf("expected backend_nonzero_exit, got %v", err)
	}
	if !strings.Contains(err.Error(), "token expired") {
		t.Fatalf("expected stderr text in error, got %v", err)
	}
}

func TestColdUnparseableOutput(t *testing.T) {
	cold := newTestCold(t, writeStub(t, `echo 'Fetching inbox...'`))

	_, err := cold.Invoke(context.Background(), "gmail.inbox", Params{})
	if KindOf(err) != KindOutputUnparseable {
		t.Fatalf("expected backend_output_unparseable, got %v", err)
	}
}

func TestColdEmptyOutputIsUnparseable(t *testing.T) {
	cold := newTestCold(t, writeStub(t, `exit 0`))

	_, err := cold.Invoke(context.Background(), "gmail.inbox", Params{})
	if KindOf(err) != KindOutputUnparseable {
		t.Fatalf("expected backend_output_unparseable, got %v", err)
	}
}

func TestColdStartFailure(t *testing.T) {
	cold := newTestCold(t, filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := cold.Invoke(context.Background(), "gmail.inbox", Params{})
	if KindOf(err) != KindProcessFailed {
		t.Fatalf("expected backend_process_failed, got %v", err)
	}
}

func TestColdUnboundMethod(t *testing.T) {
	cold := newTestCold(t, writeStub(t, `echo '{}'`))

	_, err := cold.Invoke(context.Background(), "gmail.thread", Params{})
	if KindOf(err) != KindUnavailable {
		t.Fatalf("expected backend_unavailable, got %v", err)
	}
}

func TestColdBuildsPositionalAndFlagArguments(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	stub := writeStub(t, `printf '%s\n' "$@" > `+argsFile+`; echo '[]'`)
	cold := newTestCold(t, stub)

	if _, err := cold.Invoke(context.Background(), "gmail.search", Params{"query": "from:billing invoices", "limit": float64(10)}); err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	got := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{"search", "from:billing invoices", "--limit", "10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected argv %q, want %q", got, want)
	}
}

func TestCommandArgvSkipsAbsentFlags(t *testing.T) {
	cmd := Command{Verb: "send", Args: []Arg{
		{Param: "to"}, {Param: "subject"}, {Param: "body"},
		{Param: "cc", Flag: "--cc"},
		{Param: "attachments", Flag: "--attachments"},
	}}
	argv, err := cmd.Argv(Params{
		"to":          "a@example.com",
		"subject":     "Hi",
		"body":        "Hello",
		"attachments": []any{map[string]any{"path": "/tmp/a.pdf"}},
	})
	if err != nil {
		t.Fatalf("Argv returned error: %v", err)
	}
	want := []string{"send", "a@example.com", "Hi", "Hello", "--attachments", `[{"path":"/tmp/a.pdf"}]`}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("unexpected argv %q", argv)
	}
}

func TestColdConcurrentCallsRunIndependently(t *testing.T) {
	cold := newTestCold(t, writeStub(t, `sleep 0.2; echo '{"ok":true}'`))
	if cold.Exclusive() {
		t.Fatal("cold executor must not require exclusivity")
	}

	errs := make(chan error, 4)
	for range 4 {
		go func() {
			_, err := cold.Invoke(context.Background(), "gmail.inbox", Params{})
			errs <- err
		}()
	}
	for range 4 {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent Invoke failed: %v", err)
		}
	}
}

func TestNewColdRequiresCommand(t *testing.T) {
	if _, err := NewCold(ColdConfig{Commands: CommandTable{"x": {Verb: "x"}}}, nil); err == nil {
		t.Fatal("expected error for empty command")
	}
	if _, err := NewCold(ColdConfig{Command: []string{"python3"}}, nil); err == nil {
		t.Fatal("expected error for empty command table")
	}
}

func TestCommandArgvRejectsUnsupportedParams(t *testing.T) {
	cmd := Command{
		Verb:        "send",
		Args:        []Arg{{Param: "to"}, {Param: "subject"}, {Param: "body"}},
		Unsupported: []string{"cc", "attachments"},
	}
	base := Params{"to": "a@example.com", "subject": "Hi", "body": "Hello"}

	argv, err := cmd.Argv(Params{"to": "a@example.com", "subject": "Hi", "body": "Hello", "cc": nil, "attachments": []any{}})
	if err != nil {
		t.Fatalf("absent or empty unsupported params must pass: %v", err)
	}
	if want := []string{"send", "a@example.com", "Hi", "Hello"}; !reflect.DeepEqual(argv, want) {
		t.Fatalf("unexpected argv %q", argv)
	}

	withCC := base.Clone()
	withCC["cc"] = "c@example.com"
	if _, err := cmd.Argv(withCC); KindOf(err) != KindUnavailable || !strings.Contains(err.Error(), "cc") {
		t.Fatalf("expected backend_unavailable naming cc, got %v", err)
	}
}

func TestColdUnsupportedParamNeverSpawns(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	cold, err := NewCold(ColdConfig{
		Command: []string{writeStub(t, `touch `+marker+`; echo '{}'`)},
		Commands: CommandTable{
			"gmail.send": {Verb: "send", Args: []Arg{{Param: "to"}}, Unsupported: []string{"bcc"}},
		},
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewCold: %v", err)
	}
	_, err = cold.Invoke(context.Background(), "gmail.send", Params{"to": "a@example.com", "bcc": "b@example.com"})
	if KindOf(err) != KindUnavailable {
		t.Fatalf("expected backend_unavailable, got %v", err)
	}
	if _, statErr := os.Stat(marker); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("backend process ran for an unsupported parameter")
	}
}
