// Package history persists executed queries in a local sqlite database.
// Statement text is redacted before it is written: string literals may carry
// credentials or PII and must never reach disk.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/lakedict/lakedict/pkg/sqltext"
)

const schema = `
CREATE TABLE IF NOT EXISTS query_history (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_user  TEXT NOT NULL,
	sql_text      TEXT NOT NULL,
	status        TEXT NOT NULL,
	row_count     INTEGER NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_query_history_created ON query_history (created_at);
`

// Entry is one recorded execution. SQL holds the redacted statement text.
type Entry struct {
	ID           int64     `json:"id"`
	User         string    `json:"user"`
	SQL          string    `json:"sql"`
	Status       string    `json:"status"`
	RowCount     int       `json:"row_count"`
	DurationMs   int64     `json:"duration_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the sqlite-backed history log.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open creates or opens the history database at path and ensures the schema.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite handles one writer; a single pooled connection avoids lock
	// contention errors under concurrent requests.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

// Add records one execution, redacting string literals first.
func (s *Store) Add(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_history (session_user, sql_text, status, row_count, duration_ms, error_message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.User, sqltext.RedactLiterals(e.SQL), e.Status, e.RowCount, e.DurationMs, e.ErrorMessage)
	return err
}

// List returns a page of entries, newest first, optionally filtered by
// status, plus the total matching count.
func (s *Store) List(ctx context.Context, limit, offset int, status string) ([]Entry, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM query_history"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_user, sql_text, status, row_count, duration_ms, error_message, created_at
		 FROM query_history`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.User, &e.SQL, &e.Status, &e.RowCount, &e.DurationMs, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// Clear deletes all entries and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM query_history")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
