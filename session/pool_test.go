package session

import (
	"context"
	"testing"

	"github.com/zlib-go/zlib/credential"
	"github.com/zlib-go/zlib/manager"
	"github.com/zlib-go/zlib/upstream"
)

type fakeSession struct {
	identity string
}

func (f *fakeSession) IdentityKey() string { return f.identity }
func (f *fakeSession) Search(ctx context.Context, query string, filters upstream.SearchFilters) ([]upstream.Book, error) {
	return nil, nil
}
func (f *fakeSession) ResolveDownload(ctx context.Context, book upstream.Book) (*upstream.DownloadPayload, error) {
	return nil, nil
}

type fakeClient struct {
	sessionsCreated int
}

func (c *fakeClient) Probe(ctx context.Context, cred *credential.Credential) upstream.ProbeResult {
	return upstream.ProbeResult{Outcome: upstream.ProbeSuccess, DownloadsLeft: 10}
}

func (c *fakeClient) NewSession(ctx context.Context, cred *credential.Credential) (upstream.Session, error) {
	c.sessionsCreated++
	return &fakeSession{identity: cred.IdentityKey()}, nil
}

func newTestPool(t *testing.T, identities ...string) (*Pool, *manager.Manager, *fakeClient) {
	t.Helper()
	creds := make([]*credential.Credential, len(identities))
	for i, id := range identities {
		creds[i] = &credential.Credential{Email: id, Enabled: true, DownloadsLeft: -1}
	}
	client := &fakeClient{}
	mgr, err := manager.New(creds, client, "")
	if err != nil {
		t.Fatalf("manager.New: %v", err)
	}
	return New(client, mgr), mgr, client
}

func TestGetCurrentCreatesSessionLazily(t *testing.T) {
	pool, _, client := newTestPool(t, "a@example.com")

	sess, cred, err := pool.GetCurrent(context.Background())
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if sess.IdentityKey() != cred.IdentityKey() {
		t.Fatalf("session identity mismatch")
	}
	if client.sessionsCreated != 1 {
		t.Fatalf("expected 1 session created, got %d", client.sessionsCreated)
	}

	if _, _, err := pool.GetCurrent(context.Background()); err != nil {
		t.Fatalf("second GetCurrent: %v", err)
	}
	if client.sessionsCreated != 1 {
		t.Fatalf("expected session to be cached, got %d creations", client.sessionsCreated)
	}
}

func TestRotateAdvancesAndCreatesNewSession(t *testing.T) {
	pool, _, client := newTestPool(t, "a@example.com", "b@example.com")

	if _, _, err := pool.GetCurrent(context.Background()); err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	sess, cred, err := pool.Rotate(context.Background())
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if sess.IdentityKey() != cred.IdentityKey() || cred.IdentityKey() != "b@example.com" {
		t.Fatalf("expected rotation to b@example.com, got %s", cred.IdentityKey())
	}
	if client.sessionsCreated != 2 {
		t.Fatalf("expected 2 sessions created after rotate, got %d", client.sessionsCreated)
	}
}

func TestRefreshDiscardsCachedSession(t *testing.T) {
	pool, _, client := newTestPool(t, "a@example.com")

	if _, _, err := pool.GetCurrent(context.Background()); err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if _, err := pool.Refresh(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if client.sessionsCreated != 2 {
		t.Fatalf("expected refresh to create a new session, got %d total", client.sessionsCreated)
	}
}

func TestRefreshUnknownIdentity(t *testing.T) {
	pool, _, _ := newTestPool(t, "a@example.com")
	if _, err := pool.Refresh(context.Background(), "missing@example.com"); err == nil {
		t.Fatalf("expected error refreshing unconfigured identity")
	}
}
