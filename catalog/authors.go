package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/zlib-go/zlib/zerr"
)

// AuthorRepo manages the deduplicated authors table.
type AuthorRepo struct {
	db *sql.DB
}

// NewAuthorRepo constructs an AuthorRepo over db.
func NewAuthorRepo(db *sql.DB) *AuthorRepo {
	return &AuthorRepo{db: db}
}

// GetOrCreate returns the author row for name, inserting it if absent.
// Names are matched exactly; callers normalize beforehand (see
// SplitAuthors).
func (r *AuthorRepo) GetOrCreate(ctx context.Context, name string) (*Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &zerr.CatalogError{Op: "get or create author", Err: sql.ErrNoRows}
	}

	var a Author
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM authors WHERE name = ?`, name).Scan(&a.ID, &a.Name)
	if err == nil {
		return &a, nil
	}
	if err != sql.ErrNoRows {
		return nil, &zerr.CatalogError{Op: "get author", Err: err}
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO authors (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueViolation(err) {
			// lost a race with a concurrent insert; fetch the winner's row.
			if err2 := r.db.QueryRowContext(ctx, `SELECT id, name FROM authors WHERE name = ?`, name).Scan(&a.ID, &a.Name); err2 == nil {
				return &a, nil
			}
		}
		return nil, &zerr.CatalogError{Op: "create author", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, &zerr.CatalogError{Op: "create author", Err: err}
	}
	return &Author{ID: id, Name: name}, nil
}

// ListAll returns every author in the catalog, ordered by name.
func (r *AuthorRepo) ListAll(ctx context.Context) ([]*Author, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM authors ORDER BY name ASC`)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "list authors", Err: err}
	}
	defer rows.Close()

	var authors []*Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, &zerr.CatalogError{Op: "list authors", Err: err}
		}
		authors = append(authors, &a)
	}
	return authors, rows.Err()
}

// BookAuthorRepo manages the book/author link table, including join-based
// author fetches used to populate Book.Authors.
type BookAuthorRepo struct {
	db *sql.DB
}

// NewBookAuthorRepo constructs a BookAuthorRepo over db.
func NewBookAuthorRepo(db *sql.DB) *BookAuthorRepo {
	return &BookAuthorRepo{db: db}
}

// Link replaces bookID's author associations with authorIDs, preserving
// the given order in the position column.
func (r *BookAuthorRepo) Link(ctx context.Context, bookID string, authorIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &zerr.CatalogError{Op: "link authors", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_authors WHERE book_id = ?`, bookID); err != nil {
		return &zerr.CatalogError{Op: "link authors", Err: err}
	}
	for i, authorID := range authorIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO book_authors (book_id, author_id, position) VALUES (?, ?, ?)`, bookID, authorID, i); err != nil {
			return &zerr.CatalogError{Op: "link authors", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &zerr.CatalogError{Op: "link authors", Err: err}
	}
	return nil
}

// ForBook returns the author names linked to bookID, in position order.
func (r *BookAuthorRepo) ForBook(ctx context.Context, bookID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.name FROM authors a
		JOIN book_authors ba ON ba.author_id = a.id
		WHERE ba.book_id = ?
		ORDER BY ba.position ASC`, bookID)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "authors for book", Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &zerr.CatalogError{Op: "authors for book", Err: err}
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ForBooks batches ForBook across multiple book ids, returning a map keyed
// by book id. Used by Search/Browse to avoid an N+1 query per result page.
func (r *BookAuthorRepo) ForBooks(ctx context.Context, bookIDs []string) (map[string][]string, error) {
	result := map[string][]string{}
	if len(bookIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(bookIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(bookIDs))
	for i, id := range bookIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ba.book_id, a.name FROM authors a
		JOIN book_authors ba ON ba.author_id = a.id
		WHERE ba.book_id IN (`+placeholders+`)
		ORDER BY ba.book_id, ba.position ASC`, args...)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "authors for books", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var bookID, name string
		if err := rows.Scan(&bookID, &name); err != nil {
			return nil, &zerr.CatalogError{Op: "authors for books", Err: err}
		}
		result[bookID] = append(result[bookID], name)
	}
	return result, rows.Err()
}
