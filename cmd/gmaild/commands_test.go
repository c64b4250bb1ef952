package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"gmaild/internal/ipc"
	"gmaild/internal/testsupport"
)

func TestCallPrintsResult(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"call", "gmail.search", "-p", `{"query":"invoices","limit":3}`}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("call output is not JSON: %v\n%s", err, out)
	}
	if result["verb"] != "search" {
		t.Fatalf("unexpected result %v", result)
	}
}

func TestCallSetOverridesParams(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"call", "gmail.search", "--set", "query=invoices", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	var resp ipc.CallResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.ID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCallReportsClassifiedErrors(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"call", "gmail.search"}, env.socketPath, env.configPath)
	if err == nil || err.Error() != "missing_required_param: query" {
		t.Fatalf("expected missing_required_param, got %v", err)
	}

	_, _, err = runCLI(t, []string{"call", "gmail.thread", "--set", "thread_id=t1"}, env.socketPath, env.configPath)
	if err == nil || err.Error() != "backend_nonzero_exit: message not found" {
		t.Fatalf("expected backend failure, got %v", err)
	}

	_, _, err = runCLI(t, []string{"call", "gmail.archive"}, env.socketPath, env.configPath)
	if err == nil || !strings.HasPrefix(err.Error(), "unknown_method") {
		t.Fatalf("expected unknown_method, got %v", err)
	}
}

func TestStatusRendersDaemonState(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIBind("127.0.0.1:0"))

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[INFO] Cold")
	requireContains(t, out, env.cfg.JournalPath())
	requireContains(t, out, "HTTP API")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status ipc.StatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Service != "gmail" || status.Mode != "cold" || status.Session != nil || status.APIAddress == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestMethodsAndHealth(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"methods"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("methods: %v", err)
	}
	requireContains(t, out, "gmail 1.0.0")
	requireContains(t, out, "gmail.download_attachment")
	requireContains(t, out, "query*, limit=10")

	out, _, err = runCLI(t, []string{"health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("health: %v\n%s", err, out)
	}
	requireContains(t, out, "Gmail Service")
	requireContains(t, out, "Runtime Dir")
	requireContains(t, out, "Journal")
}

func TestHistoryListsCalls(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"call", "gmail.inbox"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("call: %v", err)
	}
	_, _, _ = runCLI(t, []string{"call", "gmail.thread", "--set", "thread_id=t1"}, env.socketPath, env.configPath)

	out, _, err := runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "gmail.inbox")
	requireContains(t, out, "backend_nonzero_exit: message not found")

	out, _, err = runCLI(t, []string{"history", "--method", "gmail.thread", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var resp ipc.HistoryResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if !resp.Enabled || len(resp.Entries) != 1 || resp.Entries[0].OK {
		t.Fatalf("unexpected history %+v", resp)
	}

	out, _, err = runCLI(t, []string{"history", "--summary"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history --summary: %v", err)
	}
	requireContains(t, out, "FAILURES")

	store := testsupport.MustOpenJournal(t, env.cfg)
	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("journal count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 journaled calls, got %d", count)
	}
}

func TestCommandsWithoutDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	socket := filepath.Join(t.TempDir(), "missing.sock")
	configPath := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, []string{"stop"}, socket, configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")

	_, _, err = runCLI(t, []string{"status"}, socket, configPath)
	if err == nil || !strings.Contains(err.Error(), "gmaild start") {
		t.Fatalf("expected start hint, got %v", err)
	}
}

func TestBuildCallParams(t *testing.T) {
	params, err := buildCallParams(`{"limit":5,"query":"a"}`, []string{"query=b", "cc= x@example.com"})
	if err != nil {
		t.Fatalf("buildCallParams: %v", err)
	}
	if params["limit"] != float64(5) || params["query"] != "b" || params["cc"] != " x@example.com" {
		t.Fatalf("unexpected params %#v", params)
	}

	if params, err := buildCallParams("", nil); err != nil || params != nil {
		t.Fatalf("expected nil params, got %#v %v", params, err)
	}
	if _, err := buildCallParams("[1,2]", nil); err == nil {
		t.Fatal("expected array params to be rejected")
	}
	if _, err := buildCallParams("", []string{"novalue"}); err == nil {
		t.Fatal("expected malformed --set to be rejected")
	}
}

func TestDisplayLabel(t *testing.T) {
	cases := map[string]string{
		"gmail_service": "Gmail Service",
		"warm":          "Warm",
		"runtime_dir":   "Runtime Dir",
		"":              "-",
	}
	for in, want := range cases {
		if got := displayLabel(in); got != want {
			t.Fatalf("displayLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
