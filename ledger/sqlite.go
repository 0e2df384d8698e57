package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	entry_hash  TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	before_hash TEXT NOT NULL,
	after_hash  TEXT NOT NULL,
	prev_hash   TEXT NOT NULL,
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_run_seq ON events(run_id, seq);
`

// SQLiteSink persists events to a SQLite database, one row per event, with
// the full JSON payload alongside the chain columns for querying.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink creates or opens the database at path. The connection uses
// WAL mode for concurrent reads, NORMAL synchronous mode, and a busy timeout
// for lock contention. A single writer connection avoids SQLITE_BUSY.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite sink: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: connect sqlite sink: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger: apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: apply sqlite schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Write(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ledger: encode event %s: %w", event.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
			(entry_hash, run_id, seq, id, name, timestamp, before_hash, after_hash, prev_hash, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EntryHash,
		event.RunID,
		event.Seq,
		event.ID,
		event.Name,
		event.Timestamp.Format(time.RFC3339Nano),
		event.BeforeHash,
		event.AfterHash,
		event.PrevHash,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert event %s: %w", event.ID, err)
	}
	return nil
}

func (s *SQLiteSink) Flush() error { return nil }

func (s *SQLiteSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Events returns the persisted events of one run in sequence order, decoded
// from their stored payloads.
func (s *SQLiteSink) Events(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("ledger: scan run %s: %w", runID, err)
		}
		ev, err := decodeEvent([]byte(payload))
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
