package credential

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/zlib-go/zlib/zerr"
)

// SourceKind is a closed set of places credentials can be loaded from.
// It replaces the try/except-on-file-existence dispatch the original
// tooling used with an explicit, deterministic choice.
type SourceKind int

const (
	// SourceStructured loads from a multi-credential TOML file.
	SourceStructured SourceKind = iota
	// SourceEnvironment loads a single credential from environment variables.
	SourceEnvironment
)

// Source names where to load credentials from.
type Source struct {
	Kind SourceKind
	Path string // only meaningful when Kind == SourceStructured
}

// DetectSource decides how credentials should be loaded: a structured file
// at path if it exists, otherwise the environment. This is a pure function
// of its inputs, not exception-driven control flow.
func DetectSource(path string) Source {
	if path == "" {
		return Source{Kind: SourceEnvironment}
	}
	if _, err := os.Stat(path); err != nil {
		return Source{Kind: SourceEnvironment}
	}
	return Source{Kind: SourceStructured, Path: path}
}

// structuredFile mirrors the on-disk TOML shape from spec §6.1.
type structuredFile struct {
	StateFile   string             `toml:"state_file"`
	Credentials []structuredEntry `toml:"credentials"`
}

type structuredEntry struct {
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
	UserID   string `toml:"user_id"`
	UserKey  string `toml:"user_key"`
	Enabled  *bool  `toml:"enabled"`
}

// LoadResult is what Load returns: the enabled credentials in file order,
// plus diagnostics about entries that were skipped.
type LoadResult struct {
	Credentials  []*Credential
	StateFile    string // "" if not set in the structured file
	DisabledCount int
}

// Load loads credentials from src. On a malformed structured file it
// returns a *zerr.ConfigError and no partial set. Empty sets are returned
// without error; the caller (credential manager) decides how to react.
func Load(src Source) (*LoadResult, error) {
	switch src.Kind {
	case SourceStructured:
		return loadStructured(src.Path)
	case SourceEnvironment:
		return loadEnvironment()
	default:
		return nil, &zerr.ConfigError{Err: fmt.Errorf("unknown credential source kind %v", src.Kind)}
	}
}

func loadStructured(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &zerr.ConfigError{Field: path, Err: err}
	}

	var doc structuredFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &zerr.ConfigError{Field: path, Err: err}
	}

	result := &LoadResult{StateFile: doc.StateFile}
	seen := map[string]bool{}

	for i, entry := range doc.Credentials {
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}

		hasPassword := entry.Email != "" || entry.Password != ""
		hasToken := entry.UserID != "" || entry.UserKey != ""
		if hasPassword && hasToken {
			return nil, &zerr.ConfigError{
				Field: fmt.Sprintf("credentials[%d]", i),
				Err:   fmt.Errorf("entry specifies both email/password and user_id/user_key"),
			}
		}
		if hasPassword && (entry.Email == "" || entry.Password == "") {
			return nil, &zerr.ConfigError{
				Field: fmt.Sprintf("credentials[%d]", i),
				Err:   fmt.Errorf("email and password must both be set"),
			}
		}
		if hasToken && (entry.UserID == "" || entry.UserKey == "") {
			return nil, &zerr.ConfigError{
				Field: fmt.Sprintf("credentials[%d]", i),
				Err:   fmt.Errorf("user_id and user_key must both be set"),
			}
		}
		if !hasPassword && !hasToken {
			return nil, &zerr.ConfigError{
				Field: fmt.Sprintf("credentials[%d]", i),
				Err:   fmt.Errorf("entry has no authentication fields set"),
			}
		}

		c := &Credential{
			Name:          entry.Name,
			Email:         entry.Email,
			Password:      entry.Password,
			UserID:        entry.UserID,
			UserKey:       entry.UserKey,
			Enabled:       enabled,
			Status:        StatusUnknown,
			DownloadsLeft: -1,
		}

		key := c.IdentityKey()
		if seen[key] {
			return nil, &zerr.ConfigError{
				Field: fmt.Sprintf("credentials[%d]", i),
				Err:   fmt.Errorf("duplicate identity key %q", key),
			}
		}
		seen[key] = true

		if !enabled {
			result.DisabledCount++
			continue
		}
		result.Credentials = append(result.Credentials, c)
	}

	return result, nil
}

func loadEnvironment() (*LoadResult, error) {
	email := os.Getenv("ZLIBRARY_EMAIL")
	password := os.Getenv("ZLIBRARY_PASSWORD")
	if email != "" || password != "" {
		if email == "" || password == "" {
			return nil, &zerr.ConfigError{Err: fmt.Errorf("ZLIBRARY_EMAIL and ZLIBRARY_PASSWORD must both be set")}
		}
		return &LoadResult{Credentials: []*Credential{{
			Email:         email,
			Password:      password,
			Enabled:       true,
			Status:        StatusUnknown,
			DownloadsLeft: -1,
		}}}, nil
	}

	userID := os.Getenv("ZLIBRARY_USER_ID")
	userKey := os.Getenv("ZLIBRARY_USER_KEY")
	if userID != "" || userKey != "" {
		if userID == "" || userKey == "" {
			return nil, &zerr.ConfigError{Err: fmt.Errorf("ZLIBRARY_USER_ID and ZLIBRARY_USER_KEY must both be set")}
		}
		return &LoadResult{Credentials: []*Credential{{
			UserID:        userID,
			UserKey:       userKey,
			Enabled:       true,
			Status:        StatusUnknown,
			DownloadsLeft: -1,
		}}}, nil
	}

	return &LoadResult{}, nil
}
