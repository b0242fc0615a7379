// Package upstream defines the contract the credential manager, session
// pool, and orchestrator use to talk to the external book-search/download
// service, independent of the concrete transport.
package upstream

import (
	"context"
	"io"

	"github.com/zlib-go/zlib/credential"
)

// Order is the closed set of result orderings the upstream search endpoint
// accepts.
type Order string

const (
	OrderPopular Order = "popular"
	OrderYear    Order = "year"
	OrderTitle   Order = "title"
)

// SearchFilters mirrors spec §4.5's recognized search options.
type SearchFilters struct {
	YearFrom  int
	YearTo    int
	Language  string
	Extension string
	Order     Order
	Page      int
	Limit     int // must be in [1,100]
}

// Book is a single upstream search/lookup result.
type Book struct {
	ExternalID  string
	Hash        string
	Title       string
	Author      string // raw, unsplit author string
	Year        int
	Publisher   string
	Language    string
	Extension   string
	SizeBytes   int64
	CoverURL    string
	Description string
	ISBN        string
	Edition     string
	Pages       int
	Rating      float64
}

// ProbeOutcome classifies the result of a lightweight authenticated probe,
// per spec §4.3's table.
type ProbeOutcome int

const (
	ProbeSuccess ProbeOutcome = iota
	ProbeAuthRejected
	ProbeQuotaExhausted
	ProbeTransportError
)

// ProbeResult is what a validation probe reports back to the credential
// manager.
type ProbeResult struct {
	Outcome       ProbeOutcome
	DownloadsLeft int // -1 if not reported
	Err           error
}

// DownloadPayload is a streamed file payload plus upstream-provided naming
// metadata, ready to be written to disk by the orchestrator.
type DownloadPayload struct {
	SuggestedFilename string
	Body              io.ReadCloser
}

// Session is an opaque authenticated session for one credential. Its
// lifetime is owned by the session pool.
type Session interface {
	// IdentityKey is the credential identity this session authenticates as.
	IdentityKey() string
	// Search executes a paged search against the upstream service.
	Search(ctx context.Context, query string, filters SearchFilters) ([]Book, error)
	// ResolveDownload fetches the file payload for a book. Callers must
	// close the returned payload's Body.
	ResolveDownload(ctx context.Context, book Book) (*DownloadPayload, error)
}

// Client creates sessions and performs credential-independent probes.
type Client interface {
	// Probe issues a lightweight authenticated check for cred without
	// establishing a long-lived session.
	Probe(ctx context.Context, cred *credential.Credential) ProbeResult
	// NewSession logs in with cred and returns a session bound to it.
	NewSession(ctx context.Context, cred *credential.Credential) (Session, error)
}
