package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/zlib-go/zlib/zerr"
)

// BookRepo is the repository surface over the books table (spec §4.6).
type BookRepo struct {
	db *sql.DB
}

// NewBookRepo constructs a BookRepo over db.
func NewBookRepo(db *sql.DB) *BookRepo {
	return &BookRepo{db: db}
}

// Create inserts a new book row. Returns *zerr.Duplicate if id already
// exists.
func (r *BookRepo) Create(ctx context.Context, b *Book) error {
	if b.Title == "" {
		return &zerr.CatalogError{Op: "create book", Err: fmt.Errorf("title is required")}
	}
	if b.SizeBytes > 0 {
		b.Size = humanize.Bytes(uint64(b.SizeBytes))
	}
	_, err := r.db.ExecContext(ctx, insertBookSQL,
		b.ID, b.Hash, b.Title, nullableInt(b.Year), b.Publisher, b.Language, b.Extension,
		b.Size, b.SizeBytes, b.CoverURL, b.Description, b.ISBN, b.Edition, nullableInt(b.Pages), b.Rating,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &zerr.Duplicate{Kind: "book", Key: b.ID}
		}
		return &zerr.CatalogError{Op: "create book", Err: err}
	}
	return nil
}

const insertBookSQL = `
	INSERT INTO books (id, hash, title, year, publisher, language, extension, size, size_bytes, cover_url, description, isbn, edition, pages, rating)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const upsertBookSQL = `
	INSERT INTO books (id, hash, title, year, publisher, language, extension, size, size_bytes, cover_url, description, isbn, edition, pages, rating)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		hash = excluded.hash,
		title = excluded.title,
		year = excluded.year,
		publisher = excluded.publisher,
		language = excluded.language,
		extension = excluded.extension,
		size = excluded.size,
		size_bytes = excluded.size_bytes,
		cover_url = excluded.cover_url,
		description = excluded.description,
		isbn = excluded.isbn,
		edition = excluded.edition,
		pages = excluded.pages,
		rating = excluded.rating,
		updated_at = CURRENT_TIMESTAMP
`

// Upsert inserts b if absent, otherwise updates all mutable columns and
// refreshes updated_at. created_at is never touched on update.
func (r *BookRepo) Upsert(ctx context.Context, b *Book) error {
	if b.ID == "" {
		return &zerr.CatalogError{Op: "upsert book", Err: fmt.Errorf("id is required")}
	}
	if b.Title == "" {
		return &zerr.CatalogError{Op: "upsert book", Err: fmt.Errorf("title is required")}
	}
	if b.SizeBytes > 0 {
		b.Size = humanize.Bytes(uint64(b.SizeBytes))
	}
	_, err := r.db.ExecContext(ctx, upsertBookSQL,
		b.ID, b.Hash, b.Title, nullableInt(b.Year), b.Publisher, b.Language, b.Extension,
		b.Size, b.SizeBytes, b.CoverURL, b.Description, b.ISBN, b.Edition, nullableInt(b.Pages), b.Rating,
	)
	if err != nil {
		return &zerr.CatalogError{Op: "upsert book", Err: err}
	}
	return nil
}

// Update overwrites an existing book's mutable columns. Returns
// *zerr.NotFound if no row matches b.ID.
func (r *BookRepo) Update(ctx context.Context, b *Book) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE books SET hash=?, title=?, year=?, publisher=?, language=?, extension=?,
			size=?, size_bytes=?, cover_url=?, description=?, isbn=?, edition=?, pages=?, rating=?,
			updated_at=CURRENT_TIMESTAMP
		WHERE id=?`,
		b.Hash, b.Title, nullableInt(b.Year), b.Publisher, b.Language, b.Extension,
		b.Size, b.SizeBytes, b.CoverURL, b.Description, b.ISBN, b.Edition, nullableInt(b.Pages), b.Rating,
		b.ID,
	)
	if err != nil {
		return &zerr.CatalogError{Op: "update book", Err: err}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &zerr.NotFound{Kind: "book", Key: b.ID}
	}
	return nil
}

const selectBookColumns = `id, hash, title, COALESCE(year,0), publisher, language, extension, size, size_bytes, cover_url, description, isbn, edition, COALESCE(pages,0), rating, created_at, updated_at`

// GetByID fetches a single book by external id. Returns *zerr.NotFound if
// absent.
func (r *BookRepo) GetByID(ctx context.Context, id string) (*Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectBookColumns+` FROM books WHERE id=?`, id)
	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, &zerr.NotFound{Kind: "book", Key: id}
	}
	if err != nil {
		return nil, &zerr.CatalogError{Op: "get book", Err: err}
	}
	return b, nil
}

// Delete removes a book row. The store's ON DELETE CASCADE foreign keys
// remove book_authors, list_books, saved_books, and downloads rows
// referencing it atomically (spec invariant (i)).
func (r *BookRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id=?`, id)
	if err != nil {
		return &zerr.CatalogError{Op: "delete book", Err: err}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &zerr.NotFound{Kind: "book", Key: id}
	}
	return nil
}

// Search returns books matching filters, ordered by title ascending with a
// stable external-id tie-break, per spec §4.6.
func (r *BookRepo) Search(ctx context.Context, filters BookFilters, limit, offset int) ([]*Book, error) {
	where, args := buildBookConditions(filters)
	query := `SELECT DISTINCT ` + prefixColumns("b", selectBookColumns) + ` FROM books b`
	if filters.AuthorContains != "" {
		query += ` JOIN book_authors ba ON ba.book_id = b.id JOIN authors a ON a.id = ba.author_id`
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY b.title ASC, b.id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "search books", Err: err}
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, &zerr.CatalogError{Op: "search books", Err: err}
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// Count returns the number of books matching filters.
func (r *BookRepo) Count(ctx context.Context, filters BookFilters) (int, error) {
	where, args := buildBookConditions(filters)
	query := `SELECT COUNT(DISTINCT b.id) FROM books b`
	if filters.AuthorContains != "" {
		query += ` JOIN book_authors ba ON ba.book_id = b.id JOIN authors a ON a.id = ba.author_id`
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &zerr.CatalogError{Op: "count books", Err: err}
	}
	return count, nil
}

// CountDistinctLanguages returns the number of distinct non-empty languages
// across every book.
func (r *BookRepo) CountDistinctLanguages(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT language) FROM books WHERE language != ''`).Scan(&count)
	if err != nil {
		return 0, &zerr.CatalogError{Op: "count distinct languages", Err: err}
	}
	return count, nil
}

// CountDistinctExtensions returns the number of distinct non-empty file
// formats across every book.
func (r *BookRepo) CountDistinctExtensions(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT extension) FROM books WHERE extension != ''`).Scan(&count)
	if err != nil {
		return 0, &zerr.CatalogError{Op: "count distinct extensions", Err: err}
	}
	return count, nil
}

// buildBookConditions assembles a parameterized WHERE clause the same way
// the reference OPDS catalog builds its dynamic filters: conditions
// accumulate in a slice alongside their positional args, every value bound
// with a placeholder, never interpolated into the query string. This is
// also what makes Testable Property 8 (SQL injection safety) hold
// structurally.
func buildBookConditions(f BookFilters) ([]string, []any) {
	var conditions []string
	var args []any

	if f.TitleContains != "" {
		conditions = append(conditions, "b.title LIKE ?")
		args = append(args, "%"+f.TitleContains+"%")
	}
	if f.Language != "" {
		conditions = append(conditions, "b.language = ?")
		args = append(args, f.Language)
	}
	if f.Extension != "" {
		conditions = append(conditions, "b.extension = ?")
		args = append(args, f.Extension)
	}
	if f.YearFrom != "" {
		conditions = append(conditions, "printf('%04d', COALESCE(b.year,0)) >= ?")
		args = append(args, f.YearFrom)
	}
	if f.YearTo != "" {
		conditions = append(conditions, "printf('%04d', COALESCE(b.year,0)) <= ?")
		args = append(args, f.YearTo)
	}
	if f.AuthorContains != "" {
		conditions = append(conditions, "a.name LIKE ?")
		args = append(args, "%"+f.AuthorContains+"%")
	}

	return conditions, args
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		if strings.HasPrefix(p, "COALESCE(") {
			// already qualifies its inner column; leave the wrapper but
			// prefix the inner identifier only for simple COALESCE(col,v) forms.
			inner := strings.TrimPrefix(p, "COALESCE(")
			comma := strings.Index(inner, ",")
			col := inner[:comma]
			rest := inner[comma:]
			parts[i] = "COALESCE(" + alias + "." + col + rest
			continue
		}
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (*Book, error) {
	var b Book
	var year, pages int
	var rating sql.NullFloat64
	if err := row.Scan(
		&b.ID, &b.Hash, &b.Title, &year, &b.Publisher, &b.Language, &b.Extension,
		&b.Size, &b.SizeBytes, &b.CoverURL, &b.Description, &b.ISBN, &b.Edition, &pages, &rating,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Year = year
	b.Pages = pages
	b.Rating = rating.Float64
	return &b, nil
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
