package catalog

import (
	"context"
	"testing"
)

func TestSearchHistoryRecordAndListRecent(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	if _, err := svc.History.Record(ctx, "dune", `{"language":"en"}`); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := svc.History.Record(ctx, "foundation", ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	recent, err := svc.History.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].Query != "foundation" || recent[1].Query != "dune" {
		t.Fatalf("expected newest-first order, got %+v", recent)
	}
	if recent[1].Filters != `{"language":"en"}` {
		t.Fatalf("filters not preserved: %+v", recent[1])
	}
}

func TestSearchHistoryListRecentRespectsLimit(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		if _, err := svc.History.Record(ctx, q, ""); err != nil {
			t.Fatalf("Record %s: %v", q, err)
		}
	}

	recent, err := svc.History.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(recent))
	}
}
