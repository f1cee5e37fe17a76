// Package store persists the query audit log and the seeded static glossary
// in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// QueryLog represents a row in the query_log table.
type QueryLog struct {
	ID               int64   `json:"id,omitempty"`
	Query            string  `json:"query"`
	Answer           string  `json:"answer"`
	Route            string  `json:"route"`
	Confidence       float64 `json:"confidence"`
	ConfidenceBucket string  `json:"confidence_bucket"`
	ToolInvoked      bool    `json:"tool_invoked"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	DurationMS       int64   `json:"duration_ms"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and initialises
// the schema.
func New(dbPath string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	// Run pending migrations.
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Query log ---

// LogQuery writes an entry to the query audit log.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (query, answer, route, confidence, confidence_bucket,
			tool_invoked, prompt_tokens, completion_tokens, total_tokens, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.Query, q.Answer, q.Route, q.Confidence, q.ConfidenceBucket,
		q.ToolInvoked, q.PromptTokens, q.CompletionTokens, q.TotalTokens, q.DurationMS)
	return err
}

// RecentQueries returns the n most recent log entries, newest first.
func (s *Store) RecentQueries(ctx context.Context, n int) ([]QueryLog, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, answer, route, confidence, confidence_bucket,
			tool_invoked, prompt_tokens, completion_tokens, total_tokens,
			duration_ms, created_at
		FROM query_log ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []QueryLog
	for rows.Next() {
		var q QueryLog
		var answer sql.NullString
		if err := rows.Scan(&q.ID, &q.Query, &answer, &q.Route, &q.Confidence,
			&q.ConfidenceBucket, &q.ToolInvoked, &q.PromptTokens,
			&q.CompletionTokens, &q.TotalTokens, &q.DurationMS, &q.CreatedAt); err != nil {
			return nil, err
		}
		q.Answer = answer.String
		logs = append(logs, q)
	}
	return logs, rows.Err()
}

// --- Static glossary ---

// StaticDefinition returns the seeded definition for term, if any.
func (s *Store) StaticDefinition(ctx context.Context, term string) (string, bool) {
	var def string
	err := s.db.QueryRowContext(ctx,
		"SELECT definition FROM static_glossary WHERE term = ?", term).Scan(&def)
	if err != nil {
		return "", false
	}
	return def, true
}

// UpsertStaticDefinition inserts or replaces a static glossary entry.
func (s *Store) UpsertStaticDefinition(ctx context.Context, term, definition string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO static_glossary (term, definition) VALUES (?, ?)
		ON CONFLICT(term) DO UPDATE SET
			definition = excluded.definition,
			updated_at = CURRENT_TIMESTAMP
	`, term, definition)
	return err
}

// Lookup adapts the static glossary to the glossary service's fallback
// interface.
func (s *Store) Lookup(ctx context.Context, term string) (string, bool) {
	return s.StaticDefinition(ctx, term)
}
