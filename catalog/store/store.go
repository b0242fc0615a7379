// Package store owns the embedded sqlite connection backing the catalog:
// opening the database file, applying schema migrations, and exposing a
// single serialized-write connection per spec §5's resource model.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is the catalog database location used when the driver does
// not override it via ZLIBRARY_DB_PATH.
const DefaultPath = "~/.zlibrary/books.db"

// Store wraps a single sqlite connection in WAL mode, with foreign keys
// enforced and the schema from schema.go applied. Because the pool holds
// one connection, reads and writes issued through DB are serialized.
type Store struct {
	DB   *sql.DB
	Path string
}

// Open creates the database directory if needed, opens the sqlite file at
// path, and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	// A single connection avoids SQLITE_BUSY between this process's own
	// writers; this process's reads wait for that same connection too.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{DB: db, Path: path}, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

// FileSize returns the size in bytes of the catalog database file on disk.
func (s *Store) FileSize() (int64, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Vacuum issues sqlite's compaction primitive.
func (s *Store) Vacuum() error {
	_, err := s.DB.Exec("VACUUM")
	return err
}
