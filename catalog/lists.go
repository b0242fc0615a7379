package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zlib-go/zlib/zerr"
)

// ReadingListRepo manages named book collections.
type ReadingListRepo struct {
	db *sql.DB
}

// NewReadingListRepo constructs a ReadingListRepo over db.
func NewReadingListRepo(db *sql.DB) *ReadingListRepo {
	return &ReadingListRepo{db: db}
}

// Create inserts a new reading list. Returns *zerr.Duplicate if name is
// already taken.
func (r *ReadingListRepo) Create(ctx context.Context, name, description string) (*ReadingList, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO reading_lists (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &zerr.Duplicate{Kind: "reading list", Key: name}
		}
		return nil, &zerr.CatalogError{Op: "create reading list", Err: err}
	}
	id, _ := res.LastInsertId()
	return r.GetByID(ctx, id)
}

// GetByID fetches a reading list by surrogate id.
func (r *ReadingListRepo) GetByID(ctx context.Context, id int64) (*ReadingList, error) {
	var l ReadingList
	err := r.db.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM reading_lists WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &zerr.NotFound{Kind: "reading list", Key: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, &zerr.CatalogError{Op: "get reading list", Err: err}
	}
	return &l, nil
}

// GetByName fetches a reading list by its unique name.
func (r *ReadingListRepo) GetByName(ctx context.Context, name string) (*ReadingList, error) {
	var l ReadingList
	err := r.db.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM reading_lists WHERE name = ?`, name).
		Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &zerr.NotFound{Kind: "reading list", Key: name}
	}
	if err != nil {
		return nil, &zerr.CatalogError{Op: "get reading list", Err: err}
	}
	return &l, nil
}

// ListAll returns every reading list, ordered by name.
func (r *ReadingListRepo) ListAll(ctx context.Context) ([]*ReadingList, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM reading_lists ORDER BY name ASC`)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "list reading lists", Err: err}
	}
	defer rows.Close()

	var lists []*ReadingList
	for rows.Next() {
		var l ReadingList
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt); err != nil {
			return nil, &zerr.CatalogError{Op: "list reading lists", Err: err}
		}
		lists = append(lists, &l)
	}
	return lists, rows.Err()
}

// Delete removes a reading list and (via cascade) its list_books rows.
func (r *ReadingListRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reading_lists WHERE id = ?`, id)
	if err != nil {
		return &zerr.CatalogError{Op: "delete reading list", Err: err}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &zerr.NotFound{Kind: "reading list", Key: fmt.Sprint(id)}
	}
	return nil
}

// AddBook appends bookID to listID at the next position. Returns
// *zerr.Duplicate if the book is already on the list.
func (r *ReadingListRepo) AddBook(ctx context.Context, listID int64, bookID string) error {
	var nextPos int
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position)+1, 0) FROM list_books WHERE list_id = ?`, listID).Scan(&nextPos); err != nil {
		return &zerr.CatalogError{Op: "add book to list", Err: err}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO list_books (list_id, book_id, position) VALUES (?, ?, ?)`, listID, bookID, nextPos)
	if err != nil {
		if isUniqueViolation(err) {
			return &zerr.Duplicate{Kind: "list entry", Key: bookID}
		}
		return &zerr.CatalogError{Op: "add book to list", Err: err}
	}
	return nil
}

// RemoveBook removes bookID from listID.
func (r *ReadingListRepo) RemoveBook(ctx context.Context, listID int64, bookID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM list_books WHERE list_id = ? AND book_id = ?`, listID, bookID)
	if err != nil {
		return &zerr.CatalogError{Op: "remove book from list", Err: err}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &zerr.NotFound{Kind: "list entry", Key: bookID}
	}
	return nil
}

// GetBooks returns the books on listID in list order, with Authors
// populated.
func (r *ReadingListRepo) GetBooks(ctx context.Context, listID int64, authors *BookAuthorRepo) ([]*Book, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixColumns("b", selectBookColumns)+`
		FROM books b
		JOIN list_books lb ON lb.book_id = b.id
		WHERE lb.list_id = ?
		ORDER BY lb.position ASC`, listID)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "list books", Err: err}
	}
	defer rows.Close()

	var books []*Book
	var ids []string
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, &zerr.CatalogError{Op: "list books", Err: err}
		}
		books = append(books, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if authors != nil && len(books) > 0 {
		byID, err := authors.ForBooks(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, b := range books {
			b.Authors = byID[b.ID]
		}
	}
	return books, nil
}
