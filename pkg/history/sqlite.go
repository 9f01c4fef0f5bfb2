package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/antibyte/retrocalc/pkg/logger"
)

// SQLiteStore archives entries in a SQLite table.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and ensures the
// history table exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ensure the database is accessible
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.DatabaseInfo("Opened sqlite history store %s", path)
	return &SQLiteStore{conn: db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			expression TEXT NOT NULL,
			result TEXT NOT NULL,
			mode TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create history table: %w", err)
		}
	}
	return nil
}

// Append inserts e.
func (s *SQLiteStore) Append(e Entry) error {
	_, err := s.conn.Exec(
		`INSERT INTO history (id, expression, result, mode, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Expression, e.Result, e.Mode, e.Timestamp.UnixNano())
	if err != nil {
		logger.DatabaseError("Failed to insert history entry %s: %v", e.ID, err)
	}
	return err
}

// Load returns the limit most recently inserted entries.
func (s *SQLiteStore) Load(limit int) ([]Entry, error) {
	rows, err := s.conn.Query(
		`SELECT id, expression, result, mode, created_at FROM history ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Expression, &e.Result, &e.Mode, &createdAt); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes every row.
func (s *SQLiteStore) Clear() error {
	_, err := s.conn.Exec(`DELETE FROM history`)
	return err
}

// Trim deletes every row older than the keep most recent ones.
func (s *SQLiteStore) Trim(keep int) error {
	_, err := s.conn.Exec(
		`DELETE FROM history WHERE seq <= (SELECT seq FROM history ORDER BY seq DESC LIMIT 1 OFFSET ?)`, keep)
	if err != nil {
		logger.DatabaseError("Failed to trim history to %d entries: %v", keep, err)
	}
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
