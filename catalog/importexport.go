package catalog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zlib-go/zlib/zerr"
)

// exportRecord is the JSON-export shape for a single book, including its
// authors (joined separately at query time, not a books-table column) and
// the relative download path the original client's bookkeeping carried
// alongside each entry.
type exportRecord struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Authors      []string `json:"authors"`
	Year         int      `json:"year,omitempty"`
	Publisher    string   `json:"publisher,omitempty"`
	Language     string   `json:"language,omitempty"`
	Extension    string   `json:"extension,omitempty"`
	SizeBytes    int64    `json:"size_bytes,omitempty"`
	ISBN         string   `json:"isbn,omitempty"`
	DownloadPath string   `json:"download_path,omitempty"`
}

// ExportJSON writes every book in the catalog as a JSON array to w.
func (svc *Service) ExportJSON(ctx context.Context, w io.Writer) error {
	books, err := svc.Books.Search(ctx, BookFilters{}, 1<<30, 0)
	if err != nil {
		return err
	}
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	byID, err := svc.BookAuthor.ForBooks(ctx, ids)
	if err != nil {
		return err
	}
	pathByBook, err := svc.latestDownloadPaths(ctx, ids)
	if err != nil {
		return err
	}

	records := make([]exportRecord, len(books))
	for i, b := range books {
		records[i] = exportRecord{
			ID:           b.ID,
			Title:        b.Title,
			Authors:      byID[b.ID],
			Year:         b.Year,
			Publisher:    b.Publisher,
			Language:     b.Language,
			Extension:    b.Extension,
			SizeBytes:    b.SizeBytes,
			ISBN:         b.ISBN,
			DownloadPath: pathByBook[b.ID],
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ExportCSV writes every book in the catalog as CSV to w, columns
// id,title,authors,year,publisher,language,extension,filesize,isbn —
// authors joined with ";".
func (svc *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	books, err := svc.Books.Search(ctx, BookFilters{}, 1<<30, 0)
	if err != nil {
		return err
	}
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	byID, err := svc.BookAuthor.ForBooks(ctx, ids)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "title", "authors", "year", "publisher", "language", "extension", "filesize", "isbn"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, b := range books {
		year := ""
		if b.Year != 0 {
			year = strconv.Itoa(b.Year)
		}
		row := []string{
			b.ID, b.Title, strings.Join(byID[b.ID], ";"), year,
			b.Publisher, b.Language, b.Extension, b.Size, b.ISBN,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (svc *Service) latestDownloadPaths(ctx context.Context, ids []string) (map[string]string, error) {
	paths := map[string]string{}
	if len(ids) == 0 {
		return paths, nil
	}
	downloads, err := svc.Downloads.ListRecent(ctx, 1<<20)
	if err != nil {
		return nil, err
	}
	for _, d := range downloads {
		if d.Status != DownloadCompleted {
			continue
		}
		if _, seen := paths[d.BookID]; !seen {
			paths[d.BookID] = d.FilePath
		}
	}
	return paths, nil
}

// ImportResult summarizes an ImportJSON call.
type ImportResult struct {
	Staged   int
	Inserted int
	Updated  int
}

// ImportJSON reads a JSON array produced by ExportJSON (or a compatible
// hand-authored file): every record is validated and staged concurrently
// via errgroup before any row is written, so a single malformed record
// fails the whole import instead of leaving the catalog half-populated.
// Each staged record is then run through the same ingestion path
// IngestSearchResults uses — Books.Upsert, Authors.GetOrCreate,
// BookAuthor.Link — so re-importing a book that already exists updates it
// rather than leaving it untouched, and a failure partway through the
// write phase still commits the books that preceded it (spec §4.7).
func (svc *Service) ImportJSON(ctx context.Context, r io.Reader) (ImportResult, error) {
	var records []exportRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return ImportResult{}, &zerr.CatalogError{Op: "import json", Err: err}
	}

	staged := make([]*Book, len(records))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if rec.ID == "" || rec.Title == "" {
				return &zerr.CatalogError{Op: "import json", Err: fmt.Errorf("record %d missing id or title", i)}
			}
			staged[i] = &Book{
				ID:        rec.ID,
				Title:     rec.Title,
				Authors:   rec.Authors,
				Year:      rec.Year,
				Publisher: rec.Publisher,
				Language:  rec.Language,
				Extension: rec.Extension,
				SizeBytes: rec.SizeBytes,
				ISBN:      rec.ISBN,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{Staged: len(staged)}
	for i, b := range staged {
		_, existsErr := svc.Books.GetByID(ctx, b.ID)
		existed := existsErr == nil

		if err := svc.Books.Upsert(ctx, b); err != nil {
			return result, err
		}

		var authorIDs []int64
		for _, name := range b.Authors {
			a, err := svc.Authors.GetOrCreate(ctx, name)
			if err != nil {
				continue
			}
			authorIDs = append(authorIDs, a.ID)
		}
		if len(authorIDs) > 0 {
			if err := svc.BookAuthor.Link(ctx, b.ID, authorIDs); err != nil {
				return result, err
			}
		}

		if path := records[i].DownloadPath; path != "" {
			_, err := svc.Downloads.Record(ctx, &Download{
				BookID:   b.ID,
				Filename: filepath.Base(path),
				FilePath: path,
				Status:   DownloadCompleted,
			})
			if err != nil {
				return result, err
			}
		}

		if existed {
			result.Updated++
		} else {
			result.Inserted++
		}
	}

	return result, nil
}
