package testsupport

import (
	"testing"

	"gmaild/internal/config"
	"gmaild/internal/journal"
)

// MustOpenJournal opens the config's call journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg.JournalPath(), cfg.Journal.MaxEntries)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
