package catalog

import (
	"context"
	"database/sql"

	"github.com/zlib-go/zlib/zerr"
)

// SearchHistoryRepo is an append-only log of searches performed against
// the upstream service.
type SearchHistoryRepo struct {
	db *sql.DB
}

// NewSearchHistoryRepo constructs a SearchHistoryRepo over db.
func NewSearchHistoryRepo(db *sql.DB) *SearchHistoryRepo {
	return &SearchHistoryRepo{db: db}
}

// Record inserts a search history entry. filters is a serialized
// representation of the filter set used (caller's choice of encoding;
// the orchestrator uses JSON).
func (r *SearchHistoryRepo) Record(ctx context.Context, query, filters string) (*SearchQuery, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO search_history (query, filters) VALUES (?, ?)`, query, filters)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "record search", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, &zerr.CatalogError{Op: "record search", Err: err}
	}

	var sq SearchQuery
	err = r.db.QueryRowContext(ctx, `SELECT id, query, COALESCE(filters,''), found_at FROM search_history WHERE id = ?`, id).
		Scan(&sq.ID, &sq.Query, &sq.Filters, &sq.FoundAt)
	if err == sql.ErrNoRows {
		return nil, &zerr.NotFound{Kind: "search history", Key: query}
	}
	if err != nil {
		return nil, &zerr.CatalogError{Op: "record search", Err: err}
	}
	return &sq, nil
}

// ListRecent returns the most recent searches, newest first.
func (r *SearchHistoryRepo) ListRecent(ctx context.Context, limit int) ([]*SearchQuery, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, query, COALESCE(filters,''), found_at FROM search_history ORDER BY found_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "list search history", Err: err}
	}
	defer rows.Close()

	var queries []*SearchQuery
	for rows.Next() {
		var sq SearchQuery
		if err := rows.Scan(&sq.ID, &sq.Query, &sq.Filters, &sq.FoundAt); err != nil {
			return nil, &zerr.CatalogError{Op: "list search history", Err: err}
		}
		queries = append(queries, &sq)
	}
	return queries, rows.Err()
}
