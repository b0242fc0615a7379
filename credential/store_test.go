package credential

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectSource(t *testing.T) {
	if got := DetectSource(""); got.Kind != SourceEnvironment {
		t.Fatalf("empty path should detect environment, got %v", got.Kind)
	}

	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.toml")
	if got := DetectSource(missing); got.Kind != SourceEnvironment {
		t.Fatalf("missing file should detect environment, got %v", got.Kind)
	}

	present := filepath.Join(dir, "creds.toml")
	if err := os.WriteFile(present, []byte(""), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if got := DetectSource(present); got.Kind != SourceStructured || got.Path != present {
		t.Fatalf("present file should detect structured at %q, got %v", present, got)
	}
}

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadStructured(t *testing.T) {
	path := writeFixture(t, `
state_file = ".rotation-state"

[[credentials]]
name = "Primary"
email = "user1@example.com"
password = "secret"
enabled = true

[[credentials]]
name = "Token account"
user_id = "123456"
user_key = "abcdef"
`)

	result, err := Load(Source{Kind: SourceStructured, Path: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.StateFile != ".rotation-state" {
		t.Fatalf("StateFile = %q", result.StateFile)
	}
	if len(result.Credentials) != 2 {
		t.Fatalf("want 2 credentials, got %d", len(result.Credentials))
	}
	if result.Credentials[0].IdentityKey() != "user1@example.com" {
		t.Fatalf("first credential identity = %q", result.Credentials[0].IdentityKey())
	}
	if result.Credentials[1].IdentityKey() != "123456" {
		t.Fatalf("second credential identity = %q", result.Credentials[1].IdentityKey())
	}
	if !result.Credentials[1].IsTokenAuth() {
		t.Fatalf("second credential should be token auth")
	}
}

func TestLoadStructuredRejectsMixedAuth(t *testing.T) {
	path := writeFixture(t, `
[[credentials]]
email = "a@example.com"
password = "x"
user_id = "1"
user_key = "y"
`)
	if _, err := Load(Source{Kind: SourceStructured, Path: path}); err == nil {
		t.Fatalf("expected error for mixed auth fields")
	}
}

func TestLoadStructuredRejectsDuplicateIdentity(t *testing.T) {
	path := writeFixture(t, `
[[credentials]]
email = "a@example.com"
password = "x"

[[credentials]]
email = "a@example.com"
password = "y"
`)
	if _, err := Load(Source{Kind: SourceStructured, Path: path}); err == nil {
		t.Fatalf("expected error for duplicate identity")
	}
}

func TestLoadStructuredDisabledEntrySkipped(t *testing.T) {
	path := writeFixture(t, `
[[credentials]]
email = "a@example.com"
password = "x"
enabled = false
`)
	result, err := Load(Source{Kind: SourceStructured, Path: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.Credentials) != 0 {
		t.Fatalf("disabled entry should not be returned, got %d", len(result.Credentials))
	}
	if result.DisabledCount != 1 {
		t.Fatalf("DisabledCount = %d, want 1", result.DisabledCount)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("ZLIBRARY_EMAIL", "env@example.com")
	t.Setenv("ZLIBRARY_PASSWORD", "secret")
	t.Setenv("ZLIBRARY_USER_ID", "")
	t.Setenv("ZLIBRARY_USER_KEY", "")

	result, err := Load(Source{Kind: SourceEnvironment})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.Credentials) != 1 || result.Credentials[0].Email != "env@example.com" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLoadEnvironmentEmpty(t *testing.T) {
	t.Setenv("ZLIBRARY_EMAIL", "")
	t.Setenv("ZLIBRARY_PASSWORD", "")
	t.Setenv("ZLIBRARY_USER_ID", "")
	t.Setenv("ZLIBRARY_USER_KEY", "")

	result, err := Load(Source{Kind: SourceEnvironment})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.Credentials) != 0 {
		t.Fatalf("expected no credentials, got %d", len(result.Credentials))
	}
}
