// Package orchestrator implements the search/download orchestrator (spec
// component C5): the bridge between the credential/session layer and the
// catalog store. It holds no state of its own beyond configuration —
// rotation state lives in the manager, session state in the pool, catalog
// state in the store.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/zlib-go/zlib/catalog"
	"github.com/zlib-go/zlib/manager"
	"github.com/zlib-go/zlib/session"
	"github.com/zlib-go/zlib/upstream"
	"github.com/zlib-go/zlib/zerr"
	"github.com/zlib-go/zlib/zlog"
)

// Orchestrator wires a session pool, the credential manager, and (when
// present) the catalog service into the two operations spec §4.5 defines:
// Search and Download.
type Orchestrator struct {
	pool    *session.Pool
	mgr     *manager.Manager
	catalog *catalog.Service // nil disables catalog ingestion/recording
}

// New constructs an Orchestrator. catalogSvc may be nil if the caller only
// wants search/download without catalog side effects.
func New(pool *session.Pool, mgr *manager.Manager, catalogSvc *catalog.Service) *Orchestrator {
	return &Orchestrator{pool: pool, mgr: mgr, catalog: catalogSvc}
}

// SearchOptions controls Search's optional catalog side effect.
type SearchOptions struct {
	SaveToCatalog bool
}

// Search runs query against the upstream service, retrying once per
// credential and rotating up to N=credential-count times before failing,
// per spec §4.5.
func (o *Orchestrator) Search(ctx context.Context, query string, filters upstream.SearchFilters, opts SearchOptions) ([]upstream.Book, error) {
	requestID := uuid.NewString()
	books, err := o.searchWithRetryRotate(ctx, requestID, query, filters)
	if err != nil {
		return nil, err
	}

	if opts.SaveToCatalog && o.catalog != nil {
		catalogBooks := toCatalogBooks(books)
		if _, err := o.catalog.IngestSearchResults(ctx, query, filters, catalogBooks); err != nil {
			zlog.Warnf("[%s] catalog ingestion failed for query %q: %s", requestID, query, err)
		}
	}

	return books, nil
}

func (o *Orchestrator) searchWithRetryRotate(ctx context.Context, requestID, query string, filters upstream.SearchFilters) ([]upstream.Book, error) {
	credCount := len(o.mgr.Credentials())
	if credCount == 0 {
		return nil, &zerr.AllCredentialsExhausted{}
	}

	var lastErr error
	for attempt := 1; attempt <= credCount; attempt++ {
		if ctx.Err() != nil {
			return nil, &zerr.Cancelled{Op: "search"}
		}

		sess, cred, err := o.pool.GetCurrent(ctx)
		if err != nil {
			return nil, err
		}

		books, err := sess.Search(ctx, query, filters)
		if err == nil {
			return books, nil
		}

		// one same-credential retry before rotating, per spec §4.5/§4.8.
		books, err2 := sess.Search(ctx, query, filters)
		if err2 == nil {
			return books, nil
		}
		lastErr = err2
		zlog.Warnf("[%s] search failed twice for credential %s: %s", requestID, cred.IdentityKey(), err2)

		switch classifyUpstreamError(err2) {
		case errAuth:
			if _, rerr := o.pool.Refresh(ctx, cred.IdentityKey()); rerr != nil {
				zlog.Warnf("[%s] session refresh failed for %s: %s", requestID, cred.IdentityKey(), rerr)
			}
			o.mgr.MarkInvalid(cred.IdentityKey())
		case errQuota:
			o.mgr.MarkExhausted(cred.IdentityKey())
		}

		if _, _, rerr := o.pool.Rotate(ctx); rerr != nil {
			return nil, rerr
		}
	}

	return nil, &zerr.UpstreamTransient{Op: "search", Err: lastErr}
}

// DownloadOptions controls where Download writes the resolved file.
type DownloadOptions struct {
	Dir string // destination directory; must already exist
}

// Download resolves and writes a single book's file payload, per spec
// §4.5's six-step sequence.
func (o *Orchestrator) Download(ctx context.Context, book upstream.Book, opts DownloadOptions) (*catalog.Download, error) {
	requestID := uuid.NewString()

	sess, cred, err := o.pool.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}
	identity := cred.IdentityKey()

	if cred.DownloadsLeft == 0 {
		o.mgr.MarkExhausted(identity)
		if _, _, rerr := o.pool.Rotate(ctx); rerr != nil {
			return nil, rerr
		}
		return nil, &zerr.UpstreamQuota{}
	}

	payload, err := sess.ResolveDownload(ctx, book)
	if err != nil {
		return o.recordFailure(ctx, book, identity, err)
	}
	defer payload.Body.Close()

	path, size, err := writePayload(opts.Dir, payload)
	if err != nil {
		return o.recordFailure(ctx, book, identity, err)
	}

	zlog.Infof("[%s] downloaded %s (%s) via %s", requestID, book.Title, humanize.Bytes(uint64(size)), identity)

	var d *catalog.Download
	if o.catalog != nil {
		d, err = o.catalog.RecordDownload(ctx, &catalog.Download{
			BookID:             book.ExternalID,
			CredentialIdentity: identity,
			Filename:           filepath.Base(path),
			FilePath:           path,
			SizeBytes:          size,
			Status:             catalog.DownloadCompleted,
		})
		if err != nil {
			zlog.Warnf("[%s] could not record download: %s", requestID, err)
		}
	}

	o.mgr.RecordSuccessfulDownload(identity)
	if _, _, rerr := o.pool.Rotate(ctx); rerr != nil {
		zlog.Warnf("[%s] rotation after download failed: %s", requestID, rerr)
	}

	return d, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, book upstream.Book, identity string, cause error) (*catalog.Download, error) {
	if o.catalog != nil {
		if _, err := o.catalog.RecordDownload(ctx, &catalog.Download{
			BookID:             book.ExternalID,
			CredentialIdentity: identity,
			Status:             catalog.DownloadFailed,
			ErrorMessage:       cause.Error(),
		}); err != nil {
			zlog.Warnf("could not record failed download: %s", err)
		}
	}
	return nil, &zerr.UpstreamTransient{Op: "download", Err: cause}
}

// writePayload streams payload.Body to dir under a filename derived from
// its SuggestedFilename, appending a "-2", "-3", ... suffix before the
// extension on collision.
func writePayload(dir string, payload *upstream.DownloadPayload) (string, int64, error) {
	name := sanitizeFilename(payload.SuggestedFilename)
	path := filepath.Join(dir, name)

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; fileExists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, n, ext))
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	written, err := copyBody(f, payload.Body)
	if err != nil {
		return "", 0, err
	}
	return path, written, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "download"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-")
	return replacer.Replace(name)
}

// SearchAllPages iterates pages 1..∞, rotating credentials between pages,
// until the upstream returns fewer than filters.Limit results. Pages are
// fetched sequentially, never in parallel, per spec §4.5.
func (o *Orchestrator) SearchAllPages(ctx context.Context, query string, filters upstream.SearchFilters, opts SearchOptions) ([]upstream.Book, error) {
	if filters.Limit <= 0 {
		filters.Limit = 50
	}

	var all []upstream.Book
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	for {
		if ctx.Err() != nil {
			return all, &zerr.Cancelled{Op: "search all pages"}
		}

		pageFilters := filters
		pageFilters.Page = page
		books, err := o.Search(ctx, query, pageFilters, SearchOptions{})
		if err != nil {
			return all, err
		}
		all = append(all, books...)

		if len(books) < filters.Limit {
			break
		}

		if _, _, err := o.pool.Rotate(ctx); err != nil {
			zlog.Warnf("rotation between pages failed: %s", err)
		}
		page++
	}

	if opts.SaveToCatalog && o.catalog != nil {
		if _, err := o.catalog.IngestSearchResults(ctx, query, filters, toCatalogBooks(all)); err != nil {
			zlog.Warnf("catalog ingestion failed for all-pages query %q: %s", query, err)
		}
	}

	return all, nil
}

type upstreamErrorClass int

const (
	errOther upstreamErrorClass = iota
	errAuth
	errQuota
)

// classifyUpstreamError maps a session error onto the retry/rotate policy
// table in spec §4.8. Sessions return zerr types directly, so this is a
// straightforward type switch rather than string matching.
func classifyUpstreamError(err error) upstreamErrorClass {
	switch err.(type) {
	case *zerr.UpstreamAuth:
		return errAuth
	case *zerr.UpstreamQuota:
		return errQuota
	default:
		return errOther
	}
}

func toCatalogBooks(books []upstream.Book) []*catalog.Book {
	out := make([]*catalog.Book, len(books))
	for i, b := range books {
		out[i] = &catalog.Book{
			ID:          b.ExternalID,
			Hash:        b.Hash,
			Title:       b.Title,
			Authors:     catalog.SplitAuthors(b.Author),
			Year:        b.Year,
			Publisher:   b.Publisher,
			Language:    b.Language,
			Extension:   b.Extension,
			SizeBytes:   b.SizeBytes,
			CoverURL:    b.CoverURL,
			Description: b.Description,
			ISBN:        b.ISBN,
			Edition:     b.Edition,
			Pages:       b.Pages,
			Rating:      b.Rating,
		}
	}
	return out
}

func copyBody(dst *os.File, src io.Reader) (int64, error) {
	return io.Copy(dst, src)
}
