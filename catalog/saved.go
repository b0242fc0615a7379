package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/zlib-go/zlib/zerr"
)

// SavedBookRepo manages bookmarks with notes, tags, and priority.
type SavedBookRepo struct {
	db *sql.DB
}

// NewSavedBookRepo constructs a SavedBookRepo over db.
func NewSavedBookRepo(db *sql.DB) *SavedBookRepo {
	return &SavedBookRepo{db: db}
}

// Save bookmarks bookID. Returns *zerr.Duplicate if already saved.
func (r *SavedBookRepo) Save(ctx context.Context, bookID, notes string, tags []string, priority int) (*SavedBook, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO saved_books (book_id, notes, tags, priority) VALUES (?, ?, ?, ?)`,
		bookID, notes, strings.Join(tags, ","), priority,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &zerr.Duplicate{Kind: "saved book", Key: bookID}
		}
		return nil, &zerr.CatalogError{Op: "save book", Err: err}
	}
	return r.get(ctx, bookID)
}

func (r *SavedBookRepo) get(ctx context.Context, bookID string) (*SavedBook, error) {
	var s SavedBook
	var tags string
	err := r.db.QueryRowContext(ctx, `SELECT id, book_id, notes, tags, priority, saved_at FROM saved_books WHERE book_id = ?`, bookID).
		Scan(&s.ID, &s.BookID, &s.Notes, &tags, &s.Priority, &s.SavedAt)
	if err == sql.ErrNoRows {
		return nil, &zerr.NotFound{Kind: "saved book", Key: bookID}
	}
	if err != nil {
		return nil, &zerr.CatalogError{Op: "get saved book", Err: err}
	}
	if tags != "" {
		s.Tags = strings.Split(tags, ",")
	}
	return &s, nil
}

// Unsave removes a bookmark.
func (r *SavedBookRepo) Unsave(ctx context.Context, bookID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_books WHERE book_id = ?`, bookID)
	if err != nil {
		return &zerr.CatalogError{Op: "unsave book", Err: err}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &zerr.NotFound{Kind: "saved book", Key: bookID}
	}
	return nil
}

// ListAll returns every bookmark ordered by priority descending, then most
// recently saved first.
func (r *SavedBookRepo) ListAll(ctx context.Context) ([]*SavedBook, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, book_id, notes, tags, priority, saved_at FROM saved_books ORDER BY priority DESC, saved_at DESC`)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "list saved books", Err: err}
	}
	defer rows.Close()

	var saved []*SavedBook
	for rows.Next() {
		var s SavedBook
		var tags string
		if err := rows.Scan(&s.ID, &s.BookID, &s.Notes, &tags, &s.Priority, &s.SavedAt); err != nil {
			return nil, &zerr.CatalogError{Op: "list saved books", Err: err}
		}
		if tags != "" {
			s.Tags = strings.Split(tags, ",")
		}
		saved = append(saved, &s)
	}
	return saved, rows.Err()
}
