package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gmaild/internal/dispatch"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// maxMessageLen bounds stored error messages; backend stderr can be large.
	maxMessageLen = 2048

	defaultRecentLimit = 20

	// timeFormat is fixed-width so started_at sorts lexically.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one journaled call.
type Entry struct {
	ID           string
	CallID       string
	Method       string
	Mode         string
	StartedAt    time.Time
	Duration     time.Duration
	Queued       time.Duration
	OK           bool
	ErrorKind    string
	ErrorMessage string
}

// MethodSummary aggregates journaled calls for one method.
type MethodSummary struct {
	Method     string
	Calls      int
	Failures   int
	AvgLatency time.Duration
	LastCalled time.Time
}

// Query filters Recent.
type Query struct {
	Limit  int
	Method string
}

// Store is the SQLite-backed call journal.
type Store struct {
	db         *sql.DB
	path       string
	maxEntries int
}

var _ dispatch.Recorder = (*Store)(nil)

// Open creates or opens the journal at path. maxEntries <= 0 disables pruning.
func Open(path string, maxEntries int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, maxEntries: maxEntries}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Record appends a finished call and prunes the oldest rows past the limit.
func (s *Store) Record(ctx context.Context, rec dispatch.Record) error {
	kind, message := "", ""
	if rec.Err != nil {
		kind = string(rec.Err.Kind)
		message = truncate(rec.Err.Message, maxMessageLen)
	}
	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	ok := 0
	if rec.Err == nil {
		ok = 1
	}

	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO calls (
                id, call_id, method, mode, started_at,
                duration_ms, queued_ms, ok, error_kind, error_message
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(),
			rec.ID,
			rec.Method,
			rec.Mode,
			started.UTC().Format(timeFormat),
			millis(rec.Duration),
			millis(rec.Queued),
			ok,
			kind,
			message,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}
	if s.maxEntries > 0 {
		if _, err := s.Prune(ctx, s.maxEntries); err != nil {
			return err
		}
	}
	return nil
}

// Prune deletes all but the newest keep rows and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			`DELETE FROM calls WHERE rowid NOT IN (
                SELECT rowid FROM calls ORDER BY started_at DESC, rowid DESC LIMIT ?
            )`, keep)
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return removed, nil
}

// Recent returns the newest calls first.
func (s *Store) Recent(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	query := `SELECT id, call_id, method, mode, started_at, duration_ms, queued_ms,
            ok, error_kind, error_message FROM calls`
	args := []any{}
	if method := strings.TrimSpace(q.Method); method != "" {
		query += " WHERE method = ?"
		args = append(args, method)
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			startedAt  string
			durationMS float64
			queuedMS   float64
			ok         int
		)
		if err := rows.Scan(&e.ID, &e.CallID, &e.Method, &e.Mode, &startedAt,
			&durationMS, &queuedMS, &ok, &e.ErrorKind, &e.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		e.StartedAt = parseTime(startedAt)
		e.Duration = fromMillis(durationMS)
		e.Queued = fromMillis(queuedMS)
		e.OK = ok == 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summary aggregates the journal per method, ordered by method name.
func (s *Store) Summary(ctx context.Context) ([]MethodSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT method, COUNT(1), SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END),
            AVG(duration_ms), MAX(started_at)
        FROM calls GROUP BY method ORDER BY method`)
	if err != nil {
		return nil, fmt.Errorf("summarize calls: %w", err)
	}
	defer rows.Close()

	var out []MethodSummary
	for rows.Next() {
		var (
			m      MethodSummary
			avgMS  float64
			lastAt string
		)
		if err := rows.Scan(&m.Method, &m.Calls, &m.Failures, &avgMS, &lastAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		m.AvgLatency = fromMillis(avgMS)
		m.LastCalled = parseTime(lastAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of journaled calls.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM calls").Scan(&n); err != nil {
		return 0, fmt.Errorf("count calls: %w", err)
	}
	return n, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
