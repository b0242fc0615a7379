package catalog

import (
	"context"
	"testing"
)

func TestDownloadRecordAndListRecent(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	_ = svc.Books.Create(ctx, &Book{ID: "b1", Title: "Downloaded"})

	d, err := svc.Downloads.Record(ctx, &Download{
		BookID:             "b1",
		CredentialIdentity: "a@example.com",
		Filename:           "downloaded.epub",
		FilePath:           "/tmp/downloaded.epub",
		SizeBytes:          1024,
		Status:             DownloadCompleted,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if d.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	recent, err := svc.Downloads.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 || recent[0].Status != DownloadCompleted {
		t.Fatalf("unexpected recent downloads: %+v", recent)
	}
}

func TestDownloadListByCredentialAndCountByStatus(t *testing.T) {
	svc := tempService(t)
	ctx := context.Background()

	_ = svc.Books.Create(ctx, &Book{ID: "b1", Title: "One"})
	_ = svc.Books.Create(ctx, &Book{ID: "b2", Title: "Two"})

	if _, err := svc.Downloads.Record(ctx, &Download{BookID: "b1", CredentialIdentity: "a@example.com", Status: DownloadCompleted}); err != nil {
		t.Fatalf("Record 1: %v", err)
	}
	if _, err := svc.Downloads.Record(ctx, &Download{BookID: "b2", CredentialIdentity: "b@example.com", Status: DownloadFailed, ErrorMessage: "quota exceeded"}); err != nil {
		t.Fatalf("Record 2: %v", err)
	}

	byCred, err := svc.Downloads.ListByCredential(ctx, "a@example.com", 10)
	if err != nil {
		t.Fatalf("ListByCredential: %v", err)
	}
	if len(byCred) != 1 || byCred[0].BookID != "b1" {
		t.Fatalf("unexpected credential history: %+v", byCred)
	}

	completed, err := svc.Downloads.CountByStatus(ctx, DownloadCompleted)
	if err != nil {
		t.Fatalf("CountByStatus completed: %v", err)
	}
	if completed != 1 {
		t.Fatalf("CountByStatus(completed) = %d, want 1", completed)
	}
	failed, err := svc.Downloads.CountByStatus(ctx, DownloadFailed)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if failed != 1 {
		t.Fatalf("CountByStatus(failed) = %d, want 1", failed)
	}
}
