// Package catalog implements the catalog storage core (spec components C6
// and C7): repositories over the embedded sqlite store, and the services
// that orchestrate multi-repository operations on top of them.
package catalog

import "time"

// Book is the catalog's record of a book discovered via search or import.
// Its ID is the external id reported by the upstream service — stable
// across searches, used for upsert deduplication.
type Book struct {
	ID          string
	Hash        string
	Title       string
	Year        int
	Publisher   string
	Language    string
	Extension   string
	Size        string // human-readable, derived from SizeBytes at write time
	SizeBytes   int64
	CoverURL    string
	Description string
	ISBN        string
	Edition     string
	Pages       int
	Rating      float64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Authors is populated by repository methods that join authors; it is
	// not a persisted column on the books table.
	Authors []string
}

// Author is a unique author name with a surrogate id.
type Author struct {
	ID   int64
	Name string
}

// ReadingList is a named, ordered collection of books.
type ReadingList struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// SavedBook bookmarks a single book with notes, tags, and a priority.
type SavedBook struct {
	ID       int64
	BookID   string
	Notes    string
	Tags     []string
	Priority int
	SavedAt  time.Time
}

// DownloadStatus is the closed set of outcomes a Download can record.
type DownloadStatus string

const (
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// Download is an append-only record of a download attempt.
type Download struct {
	ID                 int64
	BookID             string
	CredentialIdentity string // empty when unknown
	Filename           string
	FilePath           string
	SizeBytes          int64
	Status             DownloadStatus
	ErrorMessage       string
	DownloadedAt       time.Time
}

// SearchQuery is an append-only record of a search performed against the
// upstream service.
type SearchQuery struct {
	ID      int64
	Query   string
	Filters string // serialized filter record
	FoundAt time.Time
}

// SortOrder is the closed set of orderings catalog browsing supports.
type SortOrder string

const (
	SortTitleAsc SortOrder = "title_asc"
)

// BookFilters is the fixed filter set browse/search support, per spec §4.2.
type BookFilters struct {
	TitleContains  string
	Language       string
	Extension      string
	YearFrom       string // compared lexicographically; callers zero-pad
	YearTo         string
	AuthorContains string
}
