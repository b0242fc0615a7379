package store

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// applyMigrations creates the catalog schema described in spec §3.2/§6.3
// if it is not already present, following the teacher's meta-table
// version-gated migration idiom.
func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id TEXT PRIMARY KEY,
			hash TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			year INTEGER,
			publisher TEXT,
			language TEXT,
			extension TEXT,
			size TEXT,
			size_bytes INTEGER,
			cover_url TEXT,
			description TEXT,
			isbn TEXT,
			edition TEXT,
			pages INTEGER,
			rating REAL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);`,
		`CREATE INDEX IF NOT EXISTS idx_books_language ON books(language);`,
		`CREATE INDEX IF NOT EXISTS idx_books_year ON books(year);`,

		`CREATE TABLE IF NOT EXISTS authors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);`,

		`CREATE TABLE IF NOT EXISTS book_authors (
			book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			author_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (book_id, author_id)
		);`,

		`CREATE TABLE IF NOT EXISTS reading_lists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS list_books (
			list_id INTEGER NOT NULL REFERENCES reading_lists(id) ON DELETE CASCADE,
			book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			position INTEGER NOT NULL DEFAULT 0,
			added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (list_id, book_id)
		);`,

		`CREATE TABLE IF NOT EXISTS saved_books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			book_id TEXT NOT NULL UNIQUE REFERENCES books(id) ON DELETE CASCADE,
			notes TEXT,
			tags TEXT,
			priority INTEGER NOT NULL DEFAULT 0,
			saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			credential_identity TEXT,
			filename TEXT,
			file_path TEXT,
			size_bytes INTEGER,
			status TEXT NOT NULL,
			error_message TEXT,
			downloaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS search_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			filters TEXT,
			found_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`INSERT INTO meta(key,value) VALUES('schema_version',?)
			ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}
