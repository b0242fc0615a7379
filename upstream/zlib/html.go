package zlib

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/zlib-go/zlib/upstream"
)

// FetchDescription scrapes a book's detail page for its description when
// the JSON API response omitted one. Grounded on the same goquery
// selection-and-clean-text idiom used for HTML metadata extraction
// elsewhere in this module's lineage.
func (s *session) FetchDescription(ctx context.Context, book upstream.Book) (string, error) {
	url := fmt.Sprintf("%s/book/%s/%s", s.baseURL, book.ExternalID, book.Hash)
	header := http.Header{"Cookie": []string{s.cookie}}

	resp, err := s.transport.Do(ctx, http.MethodGet, url, header, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("detail page request failed with status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	selection := doc.Find("div#bookDescriptionBox")
	if selection.Length() == 0 {
		return "", nil
	}
	return cleanText(selection.Eq(0).Text()), nil
}

func cleanText(text string) string {
	nbsp := string([]byte{194, 160})
	text = strings.ReplaceAll(text, nbsp, " ")
	return strings.TrimSpace(text)
}
