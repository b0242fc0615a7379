package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zlib-go/zlib/catalog/store"
)

func tempService(t *testing.T) *Service {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewService(s)
}

func TestBookCreateGetUpsertDelete(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	b := &Book{ID: "b1", Title: "Dune", Year: 1965, Language: "en", Extension: "epub", SizeBytes: 2048}
	if err := svc.Books.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Books.GetByID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Dune" || got.Size == "" {
		t.Fatalf("unexpected book: %+v", got)
	}

	if err := svc.Books.Create(ctx, b); err == nil {
		t.Fatalf("expected duplicate error on second create")
	}

	b.Title = "Dune (revised)"
	if err := svc.Books.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err = svc.Books.GetByID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByID after upsert: %v", err)
	}
	if got.Title != "Dune (revised)" {
		t.Fatalf("upsert did not update title: %+v", got)
	}

	if err := svc.Books.Delete(ctx, "b1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Books.GetByID(ctx, "b1"); err == nil {
		t.Fatalf("expected not found after delete")
	}
}

func TestBookSearchFilters(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	books := []*Book{
		{ID: "1", Title: "Alpha Adventures", Language: "en", Extension: "epub", Year: 2001},
		{ID: "2", Title: "Beta Biography", Language: "fr", Extension: "pdf", Year: 2010},
		{ID: "3", Title: "Alpha Returns", Language: "en", Extension: "pdf", Year: 2020},
	}
	for _, b := range books {
		if err := svc.Books.Create(ctx, b); err != nil {
			t.Fatalf("Create %s: %v", b.ID, err)
		}
	}

	results, err := svc.Books.Search(ctx, BookFilters{TitleContains: "Alpha"}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results for title filter, got %d", len(results))
	}

	results, err = svc.Books.Search(ctx, BookFilters{Language: "fr"}, 10, 0)
	if err != nil {
		t.Fatalf("Search language: %v", err)
	}
	if len(results) != 1 || results[0].ID != "2" {
		t.Fatalf("unexpected language filter results: %+v", results)
	}

	results, err = svc.Books.Search(ctx, BookFilters{Extension: "pdf"}, 10, 0)
	if err != nil {
		t.Fatalf("Search extension: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 pdf results, got %d", len(results))
	}

	count, err := svc.Books.Count(ctx, BookFilters{TitleContains: "Alpha"})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("Count = %d, want 2", count)
	}
}

func TestBookSearchOrderingIsTitleThenID(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	_ = svc.Books.Create(ctx, &Book{ID: "z", Title: "Same Title"})
	_ = svc.Books.Create(ctx, &Book{ID: "a", Title: "Same Title"})

	results, err := svc.Books.Search(ctx, BookFilters{}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].ID != "a" || results[1].ID != "z" {
		t.Fatalf("expected stable id tie-break ordering, got %+v, %+v", results[0], results[1])
	}
}

func TestAuthorGetOrCreateIsIdempotent(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	a1, err := svc.Authors.GetOrCreate(ctx, "Ursula K. Le Guin")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	a2, err := svc.Authors.GetOrCreate(ctx, "Ursula K. Le Guin")
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if a1.ID != a2.ID {
		t.Fatalf("expected same author id, got %d and %d", a1.ID, a2.ID)
	}

	all, err := svc.Authors.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one author row, got %d", len(all))
	}
}

func TestBookAuthorLinkAndForBooks(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	_ = svc.Books.Create(ctx, &Book{ID: "b1", Title: "Collab"})
	a1, _ := svc.Authors.GetOrCreate(ctx, "Author One")
	a2, _ := svc.Authors.GetOrCreate(ctx, "Author Two")

	if err := svc.BookAuthor.Link(ctx, "b1", []int64{a1.ID, a2.ID}); err != nil {
		t.Fatalf("Link: %v", err)
	}

	names, err := svc.BookAuthor.ForBook(ctx, "b1")
	if err != nil {
		t.Fatalf("ForBook: %v", err)
	}
	if len(names) != 2 || names[0] != "Author One" || names[1] != "Author Two" {
		t.Fatalf("unexpected author order: %+v", names)
	}

	byID, err := svc.BookAuthor.ForBooks(ctx, []string{"b1"})
	if err != nil {
		t.Fatalf("ForBooks: %v", err)
	}
	if len(byID["b1"]) != 2 {
		t.Fatalf("expected 2 authors for b1, got %+v", byID)
	}
}

func TestDeleteBookCascadesAuthorLinks(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	_ = svc.Books.Create(ctx, &Book{ID: "b1", Title: "Will be deleted"})
	a1, _ := svc.Authors.GetOrCreate(ctx, "Solo Author")
	_ = svc.BookAuthor.Link(ctx, "b1", []int64{a1.ID})

	if err := svc.Books.Delete(ctx, "b1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	names, err := svc.BookAuthor.ForBook(ctx, "b1")
	if err != nil {
		t.Fatalf("ForBook after delete: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no links after cascading delete, got %+v", names)
	}
}
