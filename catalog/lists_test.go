package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/zlib-go/zlib/zerr"
)

func TestReadingListCreateGetDelete(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	l, err := svc.Lists.Create(ctx, "Sci-Fi", "favorites")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.ID == 0 || l.Name != "Sci-Fi" {
		t.Fatalf("unexpected list: %+v", l)
	}

	got, err := svc.Lists.GetByName(ctx, "Sci-Fi")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != l.ID {
		t.Fatalf("GetByName returned different list: %+v", got)
	}

	if err := svc.Lists.Delete(ctx, l.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Lists.GetByID(ctx, l.ID); err == nil {
		t.Fatalf("expected not found after delete")
	}
}

func TestReadingListCreateDuplicateName(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	if _, err := svc.Lists.Create(ctx, "Classics", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := svc.Lists.Create(ctx, "Classics", "")
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
	var dup *zerr.Duplicate
	if !errors.As(err, &dup) {
		t.Fatalf("expected *zerr.Duplicate, got %T: %v", err, err)
	}
}

func TestReadingListGetByIDNotFound(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	_, err := svc.Lists.GetByID(ctx, 999)
	var nf *zerr.NotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected *zerr.NotFound, got %T: %v", err, err)
	}
}

func TestReadingListAddRemoveBooks(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	l, _ := svc.Lists.Create(ctx, "Queue", "")
	_ = svc.Books.Create(ctx, &Book{ID: "b1", Title: "First"})
	_ = svc.Books.Create(ctx, &Book{ID: "b2", Title: "Second"})

	if err := svc.Lists.AddBook(ctx, l.ID, "b1"); err != nil {
		t.Fatalf("AddBook b1: %v", err)
	}
	if err := svc.Lists.AddBook(ctx, l.ID, "b2"); err != nil {
		t.Fatalf("AddBook b2: %v", err)
	}

	books, err := svc.Lists.GetBooks(ctx, l.ID, svc.BookAuthor)
	if err != nil {
		t.Fatalf("GetBooks: %v", err)
	}
	if len(books) != 2 || books[0].ID != "b1" || books[1].ID != "b2" {
		t.Fatalf("unexpected list order: %+v", books)
	}

	if err := svc.Lists.RemoveBook(ctx, l.ID, "b1"); err != nil {
		t.Fatalf("RemoveBook: %v", err)
	}
	books, err = svc.Lists.GetBooks(ctx, l.ID, svc.BookAuthor)
	if err != nil {
		t.Fatalf("GetBooks after remove: %v", err)
	}
	if len(books) != 1 || books[0].ID != "b2" {
		t.Fatalf("unexpected list after remove: %+v", books)
	}
}

func TestReadingListAddBookDuplicate(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	l, _ := svc.Lists.Create(ctx, "Queue", "")
	_ = svc.Books.Create(ctx, &Book{ID: "b1", Title: "First"})
	if err := svc.Lists.AddBook(ctx, l.ID, "b1"); err != nil {
		t.Fatalf("AddBook: %v", err)
	}
	err := svc.Lists.AddBook(ctx, l.ID, "b1")
	var dup *zerr.Duplicate
	if !errors.As(err, &dup) {
		t.Fatalf("expected *zerr.Duplicate, got %T: %v", err, err)
	}
}

func TestReadingListRemoveBookNotFound(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	l, _ := svc.Lists.Create(ctx, "Queue", "")
	err := svc.Lists.RemoveBook(ctx, l.ID, "missing")
	var nf *zerr.NotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected *zerr.NotFound, got %T: %v", err, err)
	}
}
