package rotation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zlib-go/zlib/credential"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	state, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.CredentialsStatus) != 0 {
		t.Fatalf("expected empty credentials status")
	}
}

func TestLoadCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	state, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.CurrentIndex != 0 {
		t.Fatalf("expected zero-value state on corrupt file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state := Empty()
	state.CurrentIndex = 2
	state.LastRotation = time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	state.CredentialsStatus["user1@example.com"] = CredentialState{
		DownloadsLeft: 8,
		Status:        credential.StatusValid,
	}

	if err := Save(path, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.CurrentIndex != 2 {
		t.Fatalf("CurrentIndex = %d, want 2", loaded.CurrentIndex)
	}
	cs, ok := loaded.CredentialsStatus["user1@example.com"]
	if !ok {
		t.Fatalf("missing credential status after round trip")
	}
	if cs.DownloadsLeft != 8 || cs.Status != credential.StatusValid {
		t.Fatalf("unexpected credential state: %+v", cs)
	}
}

func TestUnknownFieldsPreservedAcrossSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	initial := `{
		"current_index": 0,
		"last_rotation": "2025-01-02T15:04:05Z",
		"credentials_status": {},
		"future_field": "kept across saves"
	}`
	if err := os.WriteFile(path, []byte(initial), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	next := loaded.WithKnownFields(1, time.Now(), map[string]CredentialState{})
	if err := Save(path, next); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if v, ok := reloaded.unknown["future_field"]; !ok || v != "kept across saves" {
		t.Fatalf("unknown field not preserved: %+v", reloaded.unknown)
	}

	// a second save from the reloaded state must still carry the field
	// forward — this is the bug this test guards against.
	again := reloaded.WithKnownFields(2, time.Now(), map[string]CredentialState{})
	if err := Save(path, again); err != nil {
		t.Fatalf("second save: %v", err)
	}
	final, err := Load(path)
	if err != nil {
		t.Fatalf("final reload: %v", err)
	}
	if v, ok := final.unknown["future_field"]; !ok || v != "kept across saves" {
		t.Fatalf("unknown field lost after second save: %+v", final.unknown)
	}
}
