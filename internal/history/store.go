// Package history persists executed queries in SQLite with a bounded
// retention window.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// Entry statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Entry is one executed query. Failed executions are recorded too,
// with the failure message and a zero row count.
type Entry struct {
	ID           string
	ConnectionID string
	Query        string
	Status       string
	Error        string
	RowCount     int
	DurationMS   int64
	ExecutedAt   time.Time
}

// Store keeps query history in a SQLite database.
type Store struct {
	db    *sql.DB
	path  string
	limit int
}

// NewStore creates an unopened store. limit bounds retention; entries
// beyond it are evicted oldest first. A non-positive limit keeps
// everything.
func NewStore(limit int) *Store {
	return &Store{limit: limit}
}

// Open opens the SQLite database and runs pending migrations.
// Use ":memory:" for an in-memory database.
func (s *Store) Open(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping history database: %w", err)
	}

	s.db = db
	s.path = path
	return s.migrate()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append records an executed query and evicts entries past the
// retention limit, oldest first.
func (s *Store) Append(e Entry) (Entry, error) {
	if s.db == nil {
		return Entry{}, fmt.Errorf("history database not opened")
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO history (id, connection_id, query, status, error, row_count, duration_ms, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ConnectionID, e.Query, e.Status, e.Error, e.RowCount, e.DurationMS, e.ExecutedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to append history entry: %w", err)
	}

	if err := s.evict(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// evict trims the table down to the retention limit.
func (s *Store) evict() error {
	if s.limit <= 0 {
		return nil
	}
	_, err := s.db.Exec(
		`DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY executed_at DESC, rowid DESC LIMIT ?
		)`,
		s.limit,
	)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. A non-positive
// limit returns everything retained.
func (s *Store) List(limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(
		`SELECT id, connection_id, query, status, error, row_count, duration_ms, executed_at
		 FROM history ORDER BY executed_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ConnectionID, &e.Query, &e.Status, &e.Error, &e.RowCount, &e.DurationMS, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Clear deletes all retained entries.
func (s *Store) Clear() error {
	if s.db == nil {
		return fmt.Errorf("history database not opened")
	}
	if _, err := s.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
