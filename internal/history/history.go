// Package history records opened workbooks and executed commands in a small
// sqlite database. The daemon uses it to serve recent-file queries and to
// leave an audit trail of what automation ran against which file.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// RecentFile is one entry of the recently-opened list
type RecentFile struct {
	Path       string    `json:"path"`
	OpenCount  int       `json:"openCount"`
	LastOpened time.Time `json:"lastOpened"`
}

// Store persists workbook and operation history
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS workbooks (
	path        TEXT PRIMARY KEY,
	open_count  INTEGER NOT NULL DEFAULT 0,
	last_opened TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS operations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	command    TEXT NOT NULL,
	success    INTEGER NOT NULL,
	executed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operations_session ON operations(session_id);
`

// Open opens (creating if necessary) the history database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// One writer (the daemon), no need for a pool
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordOpen bumps the open counter for a workbook path
func (s *Store) RecordOpen(path string) error {
	_, err := s.db.Exec(`
		INSERT INTO workbooks (path, open_count, last_opened) VALUES (?, 1, ?)
		ON CONFLICT(path) DO UPDATE SET
			open_count = open_count + 1,
			last_opened = excluded.last_opened`,
		path, time.Now().UTC())
	return err
}

// RecordOperation logs one executed command for a session
func (s *Store) RecordOperation(sessionID, command string, success bool) error {
	_, err := s.db.Exec(`
		INSERT INTO operations (session_id, command, success, executed_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, command, success, time.Now().UTC())
	return err
}

// RecentFiles returns up to limit workbooks ordered by last open time
func (s *Store) RecentFiles(limit int) ([]RecentFile, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT path, open_count, last_opened FROM workbooks
		ORDER BY last_opened DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]RecentFile, 0, limit)
	for rows.Next() {
		var f RecentFile
		if err := rows.Scan(&f.Path, &f.OpenCount, &f.LastOpened); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// OperationCount returns the number of operations logged for a session.
// An empty session id counts all operations.
func (s *Store) OperationCount(sessionID string) (int, error) {
	var count int
	var err error
	if sessionID == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM operations`).Scan(&count)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM operations WHERE session_id = ?`,
			sessionID).Scan(&count)
	}
	return count, err
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
