package rotation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/zlib-go/zlib/credential"
	"github.com/zlib-go/zlib/zlog"
)

type wireCredentialState struct {
	LastUsed      time.Time `json:"last_used"`
	DownloadsLeft int       `json:"downloads_left"`
	Status        string    `json:"status"`
}

const (
	keyCurrentIndex      = "current_index"
	keyLastRotation      = "last_rotation"
	keyCredentialsStatus = "credentials_status"
)

// Load reads the rotation state file at path. A missing file yields an
// empty state and no error. A file that exists but cannot be read or
// parsed also yields an empty state and a nil error; the recoverable
// problem is logged here as a warning, so callers never fail on it.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Empty(), nil
	}
	if err != nil {
		zlog.Warnf("rotation state file %s unreadable, starting empty: %s", path, err)
		return Empty(), nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		zlog.Warnf("rotation state file %s corrupt, starting empty: %s", path, err)
		return Empty(), nil
	}

	state := Empty()
	state.unknown = map[string]any{}

	if v, ok := raw[keyCurrentIndex]; ok {
		_ = json.Unmarshal(v, &state.CurrentIndex)
		delete(raw, keyCurrentIndex)
	}
	if v, ok := raw[keyLastRotation]; ok {
		_ = json.Unmarshal(v, &state.LastRotation)
		delete(raw, keyLastRotation)
	}
	if v, ok := raw[keyCredentialsStatus]; ok {
		var wire map[string]wireCredentialState
		if err := json.Unmarshal(v, &wire); err == nil {
			for id, w := range wire {
				state.CredentialsStatus[id] = CredentialState{
					LastUsed:      w.LastUsed,
					DownloadsLeft: w.DownloadsLeft,
					Status:        credential.ParseStatus(w.Status),
				}
			}
		}
		delete(raw, keyCredentialsStatus)
	}

	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err == nil {
			state.unknown[k] = val
		}
	}

	return state, nil
}

// Save atomically writes state to path: write to a sibling temp file,
// fsync, then rename over the destination. File mode is restricted to
// owner-only on POSIX platforms, best-effort elsewhere.
func Save(path string, state *State) error {
	doc := map[string]any{}
	for k, v := range state.unknown {
		doc[k] = v
	}
	doc[keyCurrentIndex] = state.CurrentIndex
	doc[keyLastRotation] = state.LastRotation

	wire := map[string]wireCredentialState{}
	for id, cs := range state.CredentialsStatus {
		wire[id] = wireCredentialState{
			LastUsed:      cs.LastUsed,
			DownloadsLeft: cs.DownloadsLeft,
			Status:        cs.Status.String(),
		}
	}
	doc[keyCredentialsStatus] = wire

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rotation state: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create rotation state dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".rotation-state-*.tmp")
	if err != nil {
		return fmt.Errorf("create rotation state temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write rotation state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync rotation state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close rotation state temp file: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0o600); err != nil {
			zlog.Warnf("could not restrict rotation state file mode: %s", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename rotation state into place: %w", err)
	}
	return nil
}
