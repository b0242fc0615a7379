// Package rotation persists the credential rotation cursor and per-credential
// status across process restarts.
package rotation

import (
	"time"

	"github.com/zlib-go/zlib/credential"
)

// CredentialState is the persisted per-credential slice of rotation state.
type CredentialState struct {
	LastUsed      time.Time
	DownloadsLeft int
	Status        credential.Status
}

// State is the full rotation document described in spec §6.2.
type State struct {
	CurrentIndex int
	LastRotation time.Time
	// CredentialsStatus is keyed by credential identity (email or user id).
	CredentialsStatus map[string]CredentialState

	// unknown holds top-level JSON fields this version of the struct does
	// not know about, so they survive a load/save round trip untouched.
	unknown map[string]any
}

// Empty returns a freshly initialized, empty rotation state.
func Empty() *State {
	return &State{
		CredentialsStatus: map[string]CredentialState{},
		unknown:           map[string]any{},
	}
}

// WithKnownFields returns a copy of s with its known fields replaced by the
// given values, preserving whatever unknown top-level fields s carried from
// its original load (spec §4.2's "unknown fields preserved on round trip").
func (s *State) WithKnownFields(currentIndex int, lastRotation time.Time, statuses map[string]CredentialState) *State {
	next := Empty()
	for k, v := range s.unknown {
		next.unknown[k] = v
	}
	next.CurrentIndex = currentIndex
	next.LastRotation = lastRotation
	next.CredentialsStatus = statuses
	return next
}
