package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/zlib-go/zlib/zerr"
)

func TestSaveUnsaveBook(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	_ = svc.Books.Create(ctx, &Book{ID: "b1", Title: "Annotated"})

	s, err := svc.Saved.Save(ctx, "b1", "re-read chapter 3", []string{"favorite", "to-read"}, 5)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.Notes != "re-read chapter 3" || len(s.Tags) != 2 || s.Priority != 5 {
		t.Fatalf("unexpected saved book: %+v", s)
	}

	if err := svc.Saved.Unsave(ctx, "b1"); err != nil {
		t.Fatalf("Unsave: %v", err)
	}
	if err := svc.Saved.Unsave(ctx, "b1"); err == nil {
		t.Fatalf("expected not found on second unsave")
	}
}

func TestSaveBookDuplicate(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	_ = svc.Books.Create(ctx, &Book{ID: "b1", Title: "Annotated"})
	if _, err := svc.Saved.Save(ctx, "b1", "", nil, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err := svc.Saved.Save(ctx, "b1", "", nil, 0)
	var dup *zerr.Duplicate
	if !errors.As(err, &dup) {
		t.Fatalf("expected *zerr.Duplicate, got %T: %v", err, err)
	}
}

func TestSavedListAllOrdering(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	_ = svc.Books.Create(ctx, &Book{ID: "low", Title: "Low priority"})
	_ = svc.Books.Create(ctx, &Book{ID: "high", Title: "High priority"})

	if _, err := svc.Saved.Save(ctx, "low", "", nil, 1); err != nil {
		t.Fatalf("Save low: %v", err)
	}
	if _, err := svc.Saved.Save(ctx, "high", "", nil, 9); err != nil {
		t.Fatalf("Save high: %v", err)
	}

	all, err := svc.Saved.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 || all[0].BookID != "high" || all[1].BookID != "low" {
		t.Fatalf("expected priority-descending order, got %+v", all)
	}
}
