package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/briefgate/briefgate/internal/session"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMillis = 5000

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS approvals (
		session_id    TEXT    NOT NULL,
		seq           INTEGER NOT NULL,
		tool_call_id  TEXT    NOT NULL DEFAULT '',
		path          TEXT    NOT NULL DEFAULT '',
		function_name TEXT    NOT NULL DEFAULT '',
		function_args TEXT    NOT NULL DEFAULT '',
		json_args     TEXT    NOT NULL DEFAULT '{}',
		approved      INTEGER NOT NULL DEFAULT 0,
		reviewer      TEXT    NOT NULL DEFAULT '',
		note          TEXT    NOT NULL DEFAULT '',
		status_info   TEXT    NOT NULL DEFAULT '',
		recorded_at   TEXT    NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_approvals_session ON approvals(session_id, seq)`,
}

// Archive persists history entries to SQLite so approval decisions survive
// restarts and session pruning. It implements session.Recorder; writes are
// best-effort and never fail the approval flow, a lost archive row is a
// logged error rather than a blocked reviewer.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger

	mu sync.Mutex
}

var _ session.Recorder = (*Archive)(nil)

// OpenArchive opens a SQLite database at the given path, creating parent
// directories and migrating the schema as needed.
//
// The database uses WAL mode, a 5 s busy timeout, and a single connection
// (SQLite serialises writes).
func OpenArchive(path string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("audit: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Archive{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record inserts one history entry. Failures are logged, not returned; the
// session's in-memory log remains authoritative for the running process.
func (a *Archive) Record(sessionID string, entry session.HistoryEntry) {
	if err := a.insert(sessionID, entry); err != nil {
		a.logger.Error("audit archive write failed", "session", sessionID, "error", err)
	}
}

func (a *Archive) insert(sessionID string, entry session.HistoryEntry) error {
	jsonArgs := []byte("{}")
	if len(entry.JSONArgs) > 0 {
		var err error
		jsonArgs, err = json.Marshal(entry.JSONArgs)
		if err != nil {
			return fmt.Errorf("audit: marshal json_args: %w", err)
		}
	}

	approved := 0
	if entry.Approved {
		approved = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.ExecContext(context.TODO(), `
		INSERT INTO approvals (session_id, seq, tool_call_id, path, function_name,
		                       function_args, json_args, approved, reviewer, note,
		                       status_info, recorded_at)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM approvals WHERE session_id = ?), 0) + 1,
		        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, sessionID,
		entry.ToolCallID, entry.Path, entry.FunctionName,
		entry.Args, string(jsonArgs), approved, entry.Reviewer, entry.Note,
		entry.StatusInfo, entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit: insert approval: %w", err)
	}

	return nil
}

// Recent returns the n most recent entries for a session in chronological
// order.
func (a *Archive) Recent(ctx context.Context, sessionID string, n int) ([]session.HistoryEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT tool_call_id, path, function_name, function_args, json_args,
		       approved, reviewer, note, status_info, recorded_at
		FROM approvals
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []session.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: recent rows: %w", err)
	}

	// Reverse to chronological order.
	slices.Reverse(entries)
	return entries, nil
}

func scanEntry(rows *sql.Rows) (session.HistoryEntry, error) {
	var (
		entry      session.HistoryEntry
		jsonArgs   string
		approved   int
		recordedAt string
	)

	if err := rows.Scan(&entry.ToolCallID, &entry.Path, &entry.FunctionName,
		&entry.Args, &jsonArgs, &approved, &entry.Reviewer, &entry.Note,
		&entry.StatusInfo, &recordedAt); err != nil {
		return entry, fmt.Errorf("audit: scan entry: %w", err)
	}

	entry.Approved = approved != 0

	if jsonArgs != "" && jsonArgs != "{}" {
		if err := json.Unmarshal([]byte(jsonArgs), &entry.JSONArgs); err != nil {
			return entry, fmt.Errorf("audit: unmarshal json_args: %w", err)
		}
	}

	if ts, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
		entry.Timestamp = ts
	}

	return entry, nil
}

// migrate creates or updates the database schema to the latest version.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("audit: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("audit: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("audit: record schema version: %w", err)
	}

	return nil
}
