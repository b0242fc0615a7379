package catalog

import (
	"context"
	"database/sql"

	"github.com/zlib-go/zlib/zerr"
)

// DownloadRepo is an append-only log of download attempts.
type DownloadRepo struct {
	db *sql.DB
}

// NewDownloadRepo constructs a DownloadRepo over db.
func NewDownloadRepo(db *sql.DB) *DownloadRepo {
	return &DownloadRepo{db: db}
}

// Record inserts a completed or failed download attempt.
func (r *DownloadRepo) Record(ctx context.Context, d *Download) (*Download, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO downloads (book_id, credential_identity, filename, file_path, size_bytes, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.BookID, d.CredentialIdentity, d.Filename, d.FilePath, d.SizeBytes, string(d.Status), d.ErrorMessage,
	)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "record download", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, &zerr.CatalogError{Op: "record download", Err: err}
	}
	d.ID = id
	return d, nil
}

const selectDownloadColumns = `id, book_id, COALESCE(credential_identity,''), COALESCE(filename,''), COALESCE(file_path,''), COALESCE(size_bytes,0), status, COALESCE(error_message,''), downloaded_at`

func scanDownload(row scanner) (*Download, error) {
	var d Download
	var status string
	if err := row.Scan(&d.ID, &d.BookID, &d.CredentialIdentity, &d.Filename, &d.FilePath, &d.SizeBytes, &status, &d.ErrorMessage, &d.DownloadedAt); err != nil {
		return nil, err
	}
	d.Status = DownloadStatus(status)
	return &d, nil
}

// ListRecent returns the most recent downloads, newest first.
func (r *DownloadRepo) ListRecent(ctx context.Context, limit int) ([]*Download, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectDownloadColumns+` FROM downloads ORDER BY downloaded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "list downloads", Err: err}
	}
	defer rows.Close()

	var downloads []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, &zerr.CatalogError{Op: "list downloads", Err: err}
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// ListByCredential returns download history for a single credential
// identity, newest first. Used to audit which key downloaded what.
func (r *DownloadRepo) ListByCredential(ctx context.Context, identity string, limit int) ([]*Download, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectDownloadColumns+` FROM downloads WHERE credential_identity = ? ORDER BY downloaded_at DESC, id DESC LIMIT ?`, identity, limit)
	if err != nil {
		return nil, &zerr.CatalogError{Op: "list downloads by credential", Err: err}
	}
	defer rows.Close()

	var downloads []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, &zerr.CatalogError{Op: "list downloads by credential", Err: err}
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// CountByStatus returns the number of downloads recorded with status.
func (r *DownloadRepo) CountByStatus(ctx context.Context, status DownloadStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, &zerr.CatalogError{Op: "count downloads", Err: err}
	}
	return count, nil
}
