// Package config resolves the small set of paths and dispatch decisions
// the driver needs before constructing the core: which credential source
// to load from, where the rotation state file lives, and where the
// catalog database lives. Flag parsing itself stays in cmd/zlib; this
// package only knows about environment variables and filesystem defaults.
package config

import (
	"os"
	"path/filepath"

	"github.com/zlib-go/zlib/credential"
)

const (
	envDBPath     = "ZLIBRARY_DB_PATH"
	defaultDBDir  = ".zlibrary"
	defaultDBFile = "books.db"
)

// DatabasePath returns the catalog database location: ZLIBRARY_DB_PATH if
// set, otherwise ~/.zlibrary/books.db.
func DatabasePath() (string, error) {
	if p := os.Getenv(envDBPath); p != "" {
		return expandHome(p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultDBDir, defaultDBFile), nil
}

// CredentialSource decides how to load credentials: a structured file at
// credentialsPath if given and present, otherwise the environment. This
// wraps credential.DetectSource so driver code has one place to read path
// resolution decisions from.
func CredentialSource(credentialsPath string) credential.Source {
	return credential.DetectSource(credentialsPath)
}

// StatePath resolves the rotation state file path: overridePath if
// non-empty, otherwise explicitStateFile (from a structured credential
// file's state_file field), otherwise empty (rotation state disabled,
// manager runs without persistence).
func StatePath(explicitStateFile, overridePath string) string {
	if overridePath != "" {
		return overridePath
	}
	return explicitStateFile
}

func expandHome(path string) (string, error) {
	if path == "~" || len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
