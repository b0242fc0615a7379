// Package zlib implements upstream.Client against the Z-Library-style JSON
// API: cookie/token login, a paged search endpoint, and a per-book download
// resolution endpoint. It also provides FetchDescription, which scrapes a
// book's detail page for its description with goquery, the same way the
// crawler this module was adapted from scraped HTML pages for metadata.
// Search does not call it: a search result's Description is whatever the
// JSON response carried, empty when the response omits it.
package zlib

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zlib-go/zlib/credential"
	"github.com/zlib-go/zlib/upstream"
	"github.com/zlib-go/zlib/zerr"
)

// DefaultBaseURL is the upstream API's default origin.
const DefaultBaseURL = "https://z-lib.example"

// Client implements upstream.Client against the JSON API.
type Client struct {
	BaseURL   string
	transport *upstream.Transport
}

// NewClient builds a Client using transport for all HTTP calls.
func NewClient(baseURL string, transport *upstream.Transport) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{BaseURL: baseURL, transport: transport}
}

type probeResponse struct {
	Success       int    `json:"success"`
	Error         string `json:"error"`
	DownloadsLeft int    `json:"downloads_left"`
}

// Probe issues a lightweight authenticated call and classifies the result
// per spec §4.3's outcome table.
func (c *Client) Probe(ctx context.Context, cred *credential.Credential) upstream.ProbeResult {
	req, err := c.loginRequest(ctx, cred)
	if err != nil {
		return upstream.ProbeResult{Outcome: upstream.ProbeTransportError, DownloadsLeft: -1, Err: err}
	}

	resp, err := c.transport.Do(ctx, req.Method, req.URL.String(), req.Header, nil)
	if err != nil {
		return upstream.ProbeResult{Outcome: upstream.ProbeTransportError, DownloadsLeft: -1, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return upstream.ProbeResult{Outcome: upstream.ProbeAuthRejected, DownloadsLeft: -1}
	}
	if resp.StatusCode/100 != 2 {
		return upstream.ProbeResult{
			Outcome:       upstream.ProbeTransportError,
			DownloadsLeft: -1,
			Err:           fmt.Errorf("probe request failed with status %d", resp.StatusCode),
		}
	}

	var body probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return upstream.ProbeResult{Outcome: upstream.ProbeTransportError, DownloadsLeft: -1, Err: err}
	}
	if body.Success == 0 {
		return upstream.ProbeResult{Outcome: upstream.ProbeAuthRejected, DownloadsLeft: -1}
	}
	if body.DownloadsLeft == 0 {
		return upstream.ProbeResult{Outcome: upstream.ProbeQuotaExhausted, DownloadsLeft: 0}
	}
	return upstream.ProbeResult{Outcome: upstream.ProbeSuccess, DownloadsLeft: body.DownloadsLeft}
}

// NewSession logs cred in and returns a Session bound to it.
func (c *Client) NewSession(ctx context.Context, cred *credential.Credential) (upstream.Session, error) {
	req, err := c.loginRequest(ctx, cred)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Do(ctx, req.Method, req.URL.String(), req.Header, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	cookies := resp.Cookies()
	cookieHeader := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		cookieHeader = append(cookieHeader, ck.Name+"="+ck.Value)
	}

	return &session{
		identity:  cred.IdentityKey(),
		baseURL:   c.BaseURL,
		transport: c.transport,
		cookie:    strings.Join(cookieHeader, "; "),
	}, nil
}

func (c *Client) loginRequest(ctx context.Context, cred *credential.Credential) (*http.Request, error) {
	var endpoint string
	values := url.Values{}
	if cred.IsTokenAuth() {
		endpoint = "/remix/login"
		values.Set("userId", cred.UserID)
		values.Set("userKey", cred.UserKey)
	} else {
		endpoint = "/eapi/user/login"
		values.Set("email", cred.Email)
		values.Set("password", cred.Password)
	}

	full := c.BaseURL + endpoint + "?" + values.Encode()
	return http.NewRequestWithContext(ctx, http.MethodPost, full, nil)
}

// session implements upstream.Session against the authenticated cookie
// jar captured at login time.
type session struct {
	identity  string
	baseURL   string
	transport *upstream.Transport
	cookie    string
}

func (s *session) IdentityKey() string { return s.identity }

type searchResponse struct {
	Success       int        `json:"success"`
	Error         string     `json:"error"`
	DownloadsLeft int        `json:"downloads_left"`
	Books         []wireBook `json:"books"`
}

type wireBook struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Year        string `json:"year"`
	Publisher   string `json:"publisher"`
	Language    string `json:"language"`
	Extension   string `json:"extension"`
	Filesize    string `json:"filesizeString"`
	FilesizeRaw int64  `json:"filesize"`
	Cover       string `json:"cover"`
	Description string `json:"description"`
	ISBN        string `json:"isbn"`
	Edition     string `json:"edition"`
	Pages       string `json:"pages"`
	Rating      string `json:"rating"`
}

func (s *session) Search(ctx context.Context, query string, filters upstream.SearchFilters) ([]upstream.Book, error) {
	values := url.Values{}
	values.Set("message", query)
	if filters.YearFrom > 0 {
		values.Set("yearFrom", strconv.Itoa(filters.YearFrom))
	}
	if filters.YearTo > 0 {
		values.Set("yearTo", strconv.Itoa(filters.YearTo))
	}
	if filters.Language != "" {
		values.Set("languages[]", filters.Language)
	}
	if filters.Extension != "" {
		values.Set("extensions[]", filters.Extension)
	}
	if filters.Order != "" {
		values.Set("order", string(filters.Order))
	}
	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	values.Set("limit", strconv.Itoa(limit))
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	values.Set("page", strconv.Itoa(page))

	full := s.baseURL + "/eapi/book/search?" + values.Encode()
	header := http.Header{"Cookie": []string{s.cookie}}

	resp, err := s.transport.Do(ctx, http.MethodGet, full, header, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyStatus("search", resp.StatusCode); err != nil {
		return nil, err
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Success == 0 {
		return nil, &zerr.UpstreamAuth{Err: fmt.Errorf("search rejected: %s", body.Error)}
	}
	if body.DownloadsLeft == 0 {
		return nil, &zerr.UpstreamQuota{}
	}

	books := make([]upstream.Book, 0, len(body.Books))
	for _, wb := range body.Books {
		books = append(books, convertBook(wb))
	}
	return books, nil
}

func convertBook(wb wireBook) upstream.Book {
	year, _ := strconv.Atoi(wb.Year)
	pages, _ := strconv.Atoi(wb.Pages)
	rating, _ := strconv.ParseFloat(wb.Rating, 64)
	size := wb.FilesizeRaw

	return upstream.Book{
		ExternalID:  wb.ID,
		Hash:        wb.Hash,
		Title:       wb.Title,
		Author:      wb.Author,
		Year:        year,
		Publisher:   wb.Publisher,
		Language:    wb.Language,
		Extension:   wb.Extension,
		SizeBytes:   size,
		CoverURL:    wb.Cover,
		Description: wb.Description,
		ISBN:        wb.ISBN,
		Edition:     wb.Edition,
		Pages:       pages,
		Rating:      rating,
	}
}

type downloadResponse struct {
	Success       int    `json:"success"`
	Error         string `json:"error"`
	DownloadsLeft int    `json:"downloads_left"`
	File          string `json:"file"` // resolved download URL
}

// classifyStatus turns a non-2xx HTTP status into the same error taxonomy
// Probe already uses for ProbeResult.Outcome: 401/403 is an auth rejection,
// everything else non-2xx is an opaque transport failure.
func classifyStatus(op string, status int) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &zerr.UpstreamAuth{Err: fmt.Errorf("%s rejected with status %d", op, status)}
	}
	if status/100 != 2 {
		return fmt.Errorf("%s failed with status %d", op, status)
	}
	return nil
}

func (s *session) ResolveDownload(ctx context.Context, book upstream.Book) (*upstream.DownloadPayload, error) {
	values := url.Values{}
	values.Set("id", book.ExternalID)
	values.Set("hash", book.Hash)

	full := s.baseURL + "/eapi/book/file?" + values.Encode()
	header := http.Header{"Cookie": []string{s.cookie}}

	resp, err := s.transport.Do(ctx, http.MethodGet, full, header, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyStatus("download resolution", resp.StatusCode); err != nil {
		return nil, err
	}

	var body downloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Success == 0 {
		return nil, &zerr.UpstreamAuth{Err: fmt.Errorf("download resolution rejected: %s", body.Error)}
	}
	if body.DownloadsLeft == 0 {
		return nil, &zerr.UpstreamQuota{}
	}
	if body.File == "" {
		return nil, fmt.Errorf("upstream did not return a download link for book %s", book.ExternalID)
	}

	fileResp, err := s.transport.Do(ctx, http.MethodGet, body.File, header, nil)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus("download", fileResp.StatusCode); err != nil {
		fileResp.Body.Close()
		return nil, err
	}

	name := suggestedFilename(fileResp, book)
	return &upstream.DownloadPayload{SuggestedFilename: name, Body: fileResp.Body}, nil
}

func suggestedFilename(resp *http.Response, book upstream.Book) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	ext := book.Extension
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s.%s", book.Title, ext)
}
