package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps scripts in a SQLite table keyed by name.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (creating if needed) the script database at path. Use
// ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS scripts (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores a script, replacing any previous body under name.
func (s *SQLiteStore) Put(name string, lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO scripts (name, body, updated_at) VALUES (?, ?, ?)",
		name, JoinLines(lines), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving script: %w", err)
	}
	return nil
}

// ReadLines returns the lines of the script stored under name.
func (s *SQLiteStore) ReadLines(name string) ([]string, error) {
	var body string
	err := s.db.QueryRow("SELECT body FROM scripts WHERE name = ?", name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("querying script: %w", err)
	}
	return SplitLines([]byte(body)), nil
}

// Delete removes a script. Deleting a missing script is not an error.
func (s *SQLiteStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM scripts WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting script: %w", err)
	}
	return nil
}

// List returns every stored script name in order.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM scripts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Import copies the scripts at paths from src into the database under the
// same names.
func (s *SQLiteStore) Import(src *FileStore, paths ...string) error {
	for _, p := range paths {
		lines, err := src.ReadLines(p)
		if err != nil {
			return err
		}
		if err := s.Put(p, lines); err != nil {
			return err
		}
	}
	return nil
}
