// ABOUTME: SQLite-backed log of tool invocations using modernc.org/sqlite
// ABOUTME: Records outcome and latency per tools/call, keyed by credential fingerprint only

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one recorded tools/call.
type Entry struct {
	ID                    string        // UUID v4
	RequestID             string        // correlates with MCP request logs
	Tool                  string        // tool name as requested
	CredentialFingerprint string        // never the raw credential
	Code                  int           // JSON-RPC error code, 0 on success
	Duration              time.Duration // time spent in the dispatcher
	Timestamp             time.Time
}

// Store persists audit entries.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the audit database at path.
// Parent directories are created if needed. ":memory:" is accepted for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("audit store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_calls (
			call_id                TEXT PRIMARY KEY,
			request_id             TEXT NOT NULL,
			tool                   TEXT NOT NULL,
			credential_fingerprint TEXT NOT NULL,
			code                   INTEGER NOT NULL,
			duration_ms            INTEGER NOT NULL,
			ts                     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_ts ON tool_calls(ts);
		CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends an entry. ID and Timestamp are generated if not set.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (call_id, request_id, tool, credential_fingerprint, code, duration_ms, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.RequestID,
		e.Tool,
		e.CredentialFingerprint,
		e.Code,
		e.Duration.Milliseconds(),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("recorded tool call", "id", e.ID, "tool", e.Tool, "code", e.Code)
	return nil
}

// normalizeLimit applies default (100) and cap (1000).
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, request_id, tool, credential_fingerprint, code, duration_ms, ts
		FROM tool_calls
		ORDER BY ts DESC
		LIMIT ?
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var durationMS int64
		var ts string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Tool, &e.CredentialFingerprint, &e.Code, &durationMS, &ts); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
