package catalog

import (
	"context"
	"encoding/json"

	"github.com/zlib-go/zlib/catalog/store"
	"github.com/zlib-go/zlib/zlog"
)

// Service implements the catalog services layer (spec component C7): the
// multi-repository operations the orchestrator and driver call, on top of
// the repositories in this package.
type Service struct {
	store *store.Store

	Books      *BookRepo
	Authors    *AuthorRepo
	BookAuthor *BookAuthorRepo
	Lists      *ReadingListRepo
	Saved      *SavedBookRepo
	Downloads  *DownloadRepo
	History    *SearchHistoryRepo
}

// NewService builds a Service over an already-opened store.
func NewService(s *store.Store) *Service {
	return &Service{
		store:      s,
		Books:      NewBookRepo(s.DB),
		Authors:    NewAuthorRepo(s.DB),
		BookAuthor: NewBookAuthorRepo(s.DB),
		Lists:      NewReadingListRepo(s.DB),
		Saved:      NewSavedBookRepo(s.DB),
		Downloads:  NewDownloadRepo(s.DB),
		History:    NewSearchHistoryRepo(s.DB),
	}
}

// Open opens the catalog database at path and returns a ready Service.
func Open(path string) (*Service, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return NewService(s), nil
}

// Close releases the underlying store.
func (svc *Service) Close() error {
	return svc.store.Close()
}

// IngestResult summarizes an IngestSearchResults call.
type IngestResult struct {
	Inserted int
	Updated  int
}

// IngestSearchResults upserts books returned by a search, linking authors
// and recording the search in history. Each book is written in its own
// upsert so a failure partway through still commits the books that
// preceded it (spec §4.7: ingestion is best-effort, not all-or-nothing).
func (svc *Service) IngestSearchResults(ctx context.Context, query string, filters any, books []*Book) (IngestResult, error) {
	var result IngestResult

	encodedFilters := ""
	if filters != nil {
		if b, err := json.Marshal(filters); err == nil {
			encodedFilters = string(b)
		}
	}
	if _, err := svc.History.Record(ctx, query, encodedFilters); err != nil {
		zlog.Warnf("could not record search history for %q: %s", query, err)
	}

	for _, b := range books {
		_, existsErr := svc.Books.GetByID(ctx, b.ID)
		existed := existsErr == nil

		if err := svc.Books.Upsert(ctx, b); err != nil {
			return result, err
		}

		var authorIDs []int64
		for _, name := range b.Authors {
			a, err := svc.Authors.GetOrCreate(ctx, name)
			if err != nil {
				zlog.Warnf("could not resolve author %q for book %s: %s", name, b.ID, err)
				continue
			}
			authorIDs = append(authorIDs, a.ID)
		}
		if len(authorIDs) > 0 {
			if err := svc.BookAuthor.Link(ctx, b.ID, authorIDs); err != nil {
				zlog.Warnf("could not link authors for book %s: %s", b.ID, err)
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

// Browse searches the catalog with filters and populates Authors on each
// result.
func (svc *Service) Browse(ctx context.Context, filters BookFilters, limit, offset int) ([]*Book, int, error) {
	books, err := svc.Books.Search(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := svc.Books.Count(ctx, filters)
	if err != nil {
		return nil, 0, err
	}

	if len(books) > 0 {
		ids := make([]string, len(books))
		for i, b := range books {
			ids[i] = b.ID
		}
		byID, err := svc.BookAuthor.ForBooks(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for _, b := range books {
			b.Authors = byID[b.ID]
		}
	}

	return books, total, nil
}

// CreateList creates a new named reading list. Returns *zerr.Duplicate if
// the name is taken.
func (svc *Service) CreateList(ctx context.Context, name, description string) (*ReadingList, error) {
	return svc.Lists.Create(ctx, name, description)
}

// AddToList adds bookID to the named list, creating neither implicitly:
// both must already exist.
func (svc *Service) AddToList(ctx context.Context, listName, bookID string) error {
	list, err := svc.Lists.GetByName(ctx, listName)
	if err != nil {
		return err
	}
	if _, err := svc.Books.GetByID(ctx, bookID); err != nil {
		return err
	}
	return svc.Lists.AddBook(ctx, list.ID, bookID)
}

// RemoveFromList removes bookID from the named list.
func (svc *Service) RemoveFromList(ctx context.Context, listName, bookID string) error {
	list, err := svc.Lists.GetByName(ctx, listName)
	if err != nil {
		return err
	}
	return svc.Lists.RemoveBook(ctx, list.ID, bookID)
}

// ListBooks returns the books on the named list, in list order.
func (svc *Service) ListBooks(ctx context.Context, listName string) ([]*Book, error) {
	list, err := svc.Lists.GetByName(ctx, listName)
	if err != nil {
		return nil, err
	}
	return svc.Lists.GetBooks(ctx, list.ID, svc.BookAuthor)
}

// DeleteList removes a reading list by name.
func (svc *Service) DeleteList(ctx context.Context, listName string) error {
	list, err := svc.Lists.GetByName(ctx, listName)
	if err != nil {
		return err
	}
	return svc.Lists.Delete(ctx, list.ID)
}

// RecordDownload writes a download attempt. It does not touch credential
// quota: the manager, not catalog, owns quota bookkeeping (see
// orchestrator).
func (svc *Service) RecordDownload(ctx context.Context, d *Download) (*Download, error) {
	return svc.Downloads.Record(ctx, d)
}

// Stats summarizes the catalog's current contents.
type Stats struct {
	BookCount         int
	AuthorCount       int
	ListCount         int
	SavedCount        int
	DownloadsOK       int
	DownloadsFail     int
	DistinctLanguages int
	DistinctFormats   int
	DatabaseBytes     int64
}

// Stats computes aggregate counts across the catalog.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error

	if s.BookCount, err = svc.Books.Count(ctx, BookFilters{}); err != nil {
		return s, err
	}
	authors, err := svc.Authors.ListAll(ctx)
	if err != nil {
		return s, err
	}
	s.AuthorCount = len(authors)

	lists, err := svc.Lists.ListAll(ctx)
	if err != nil {
		return s, err
	}
	s.ListCount = len(lists)

	saved, err := svc.Saved.ListAll(ctx)
	if err != nil {
		return s, err
	}
	s.SavedCount = len(saved)

	if s.DownloadsOK, err = svc.Downloads.CountByStatus(ctx, DownloadCompleted); err != nil {
		return s, err
	}
	if s.DownloadsFail, err = svc.Downloads.CountByStatus(ctx, DownloadFailed); err != nil {
		return s, err
	}

	if s.DistinctLanguages, err = svc.Books.CountDistinctLanguages(ctx); err != nil {
		return s, err
	}
	if s.DistinctFormats, err = svc.Books.CountDistinctExtensions(ctx); err != nil {
		return s, err
	}

	if size, err := svc.store.FileSize(); err == nil {
		s.DatabaseBytes = size
	}

	return s, nil
}

// Vacuum compacts the underlying sqlite file.
func (svc *Service) Vacuum() error {
	return svc.store.Vacuum()
}
