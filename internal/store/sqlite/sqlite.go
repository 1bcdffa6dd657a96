package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"snowchat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id      TEXT PRIMARY KEY,
	scope   TEXT NOT NULL,
	key     TEXT NOT NULL,
	sender  TEXT NOT NULL DEFAULT '',
	kind    TEXT NOT NULL,
	body    TEXT NOT NULL,
	sent_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_log ON messages (scope, key, sent_at);
`

// SQLiteStore implements store.LogStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (and if needed bootstraps) a chat-log database.
// dbPath is the path to the SQLite database file; use ":memory:" in tests.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append archives one record.
func (s *SQLiteStore) Append(ctx context.Context, rec *store.Record) error {
	query := `
		INSERT INTO messages (id, scope, key, sender, kind, body, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, string(rec.Scope), rec.Key, rec.Sender, rec.Kind, rec.Body, rec.SentAt.UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Recent returns up to limit records for one log, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, scope store.Scope, key string, limit int) ([]*store.Record, error) {
	query := `
		SELECT id, scope, key, sender, kind, body, sent_at
		FROM (
			SELECT id, scope, key, sender, kind, body, sent_at
			FROM messages
			WHERE scope = ? AND key = ?
			ORDER BY sent_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY sent_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(scope), key, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []*store.Record
	for rows.Next() {
		var rec store.Record
		var recScope string
		if err := rows.Scan(&rec.ID, &recScope, &rec.Key, &rec.Sender, &rec.Kind, &rec.Body, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		rec.Scope = store.Scope(recScope)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}
