package journal_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gmaild/internal/backend"
	"gmaild/internal/dispatch"
	"gmaild/internal/journal"
)

func openStore(t *testing.T, maxEntries int) *journal.Store {
	t.Helper()
	store, err := journal.Open(filepath.Join(t.TempDir(), "state", "journal.db"), maxEntries)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t, 0)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []dispatch.Record{
		{ID: "a", Method: "gmail.inbox", Mode: backend.ModeWarm, StartedAt: base, Duration: 120 * time.Millisecond},
		{ID: "b", Method: "gmail.read", Mode: backend.ModeWarm, StartedAt: base.Add(time.Second), Duration: 40 * time.Millisecond,
			Err: &backend.Error{Kind: backend.KindNonzeroExit, Message: "message not found"}},
		{ID: "c", Method: "gmail.inbox", Mode: backend.ModeWarm, StartedAt: base.Add(2 * time.Second), Queued: 5 * time.Millisecond},
	}
	for _, rec := range records {
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s) failed: %v", rec.ID, err)
		}
	}

	entries, err := store.Recent(ctx, journal.Query{Limit: 10})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].CallID != "c" || entries[2].CallID != "a" {
		t.Fatalf("expected newest first, got %s..%s", entries[0].CallID, entries[2].CallID)
	}
	failed := entries[1]
	if failed.OK || failed.ErrorKind != string(backend.KindNonzeroExit) || failed.ErrorMessage != "message not found" {
		t.Fatalf("unexpected failed entry %+v", failed)
	}
	if entries[2].Duration != 120*time.Millisecond || !entries[2].StartedAt.Equal(base) {
		t.Fatalf("unexpected timing %+v", entries[2])
	}
	if entries[0].Queued != 5*time.Millisecond {
		t.Fatalf("unexpected queue time %v", entries[0].Queued)
	}

	inbox, err := store.Recent(ctx, journal.Query{Method: "gmail.inbox"})
	if err != nil {
		t.Fatalf("Recent(method) failed: %v", err)
	}
	if len(inbox) != 2 {
		t.Fatalf("expected 2 inbox entries, got %d", len(inbox))
	}
}

func TestDuplicateCallIDsAreKept(t *testing.T) {
	store := openStore(t, 0)
	ctx := context.Background()
	for range 2 {
		if err := store.Record(ctx, dispatch.Record{ID: "same", Method: "gmail.inbox"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if n, err := store.Count(ctx); err != nil || n != 2 {
		t.Fatalf("expected 2 rows, got %d (%v)", n, err)
	}
}

func TestRecordPrunesOldest(t *testing.T) {
	store := openStore(t, 3)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		rec := dispatch.Record{ID: string(rune('a' + i)), Method: "gmail.unread", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	entries, err := store.Recent(ctx, journal.Query{Limit: 10})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 || entries[0].CallID != "e" || entries[2].CallID != "c" {
		t.Fatalf("unexpected entries after prune: %+v", entries)
	}
}

func TestSummary(t *testing.T) {
	store := openStore(t, 0)
	ctx := context.Background()
	_ = store.Record(ctx, dispatch.Record{ID: "1", Method: "gmail.search", Duration: 100 * time.Millisecond})
	_ = store.Record(ctx, dispatch.Record{ID: "2", Method: "gmail.search", Duration: 300 * time.Millisecond,
		Err: &backend.Error{Kind: backend.KindOutputUnparseable, Message: "bad json"}})
	_ = store.Record(ctx, dispatch.Record{ID: "3", Method: "gmail.inbox", Duration: 50 * time.Millisecond})

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(summary) != 2 || summary[0].Method != "gmail.inbox" || summary[1].Method != "gmail.search" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	search := summary[1]
	if search.Calls != 2 || search.Failures != 1 || search.AvgLatency != 200*time.Millisecond {
		t.Fatalf("unexpected search summary %+v", search)
	}
	if search.LastCalled.IsZero() {
		t.Fatal("expected last called timestamp")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := journal.Open(path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Record(context.Background(), dispatch.Record{ID: "x", Method: "gmail.thread"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	_ = store.Close()

	reopened, err := journal.Open(path, 0)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if n, _ := reopened.Count(context.Background()); n != 1 {
		t.Fatalf("expected history to survive reopen, got %d rows", n)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := journal.Open("  ", 0); err == nil {
		t.Fatal("expected error for empty path")
	}
}
