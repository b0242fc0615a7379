// Package manager implements the credential manager (spec component C3):
// it owns the ordered credential list and rotation cursor, performs
// validation, rotates under the documented policy, and tracks quotas.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zlib-go/zlib/credential"
	"github.com/zlib-go/zlib/rotation"
	"github.com/zlib-go/zlib/upstream"
	"github.com/zlib-go/zlib/zerr"
	"github.com/zlib-go/zlib/zlog"
)

// Manager owns the credential list, the rotation cursor, and the rotation
// state file. All mutable state is protected by a single mutex per spec §5.
type Manager struct {
	mu sync.Mutex

	credentials  []*credential.Credential
	currentIndex int
	lastRotation time.Time

	client    upstream.Client
	statePath string

	// preservedState carries forward unknown fields from the file that was
	// loaded at construction time, so repeated saves keep round-tripping
	// them per spec §4.2's migration contract.
	preservedState *rotation.State
}

// New constructs a Manager over creds (in the stable order they were
// loaded) using client for validation probes. If statePath is non-empty,
// rotation state is loaded immediately and merged onto creds.
func New(creds []*credential.Credential, client upstream.Client, statePath string) (*Manager, error) {
	m := &Manager{
		credentials: creds,
		client:      client,
		statePath:   statePath,
	}

	if statePath != "" {
		state, err := rotation.Load(statePath)
		if err != nil {
			return nil, err
		}
		m.preservedState = state
		m.lastRotation = state.LastRotation
		m.applyState(state)
	} else {
		m.preservedState = rotation.Empty()
	}

	return m, nil
}

// applyState merges persisted per-credential status onto the in-memory
// credential list. States for identities no longer present in the loaded
// configuration are discarded silently, per spec §4.3.
func (m *Manager) applyState(state *rotation.State) {
	byIdentity := make(map[string]*credential.Credential, len(m.credentials))
	for _, c := range m.credentials {
		byIdentity[c.IdentityKey()] = c
	}

	for identity, cs := range state.CredentialsStatus {
		c, ok := byIdentity[identity]
		if !ok {
			continue // discarded silently: spec §4.3 / §9 open question
		}
		c.LastUsed = cs.LastUsed
		c.DownloadsLeft = cs.DownloadsLeft
		c.Status = cs.Status
	}

	if state.CurrentIndex >= 0 {
		m.currentIndex = state.CurrentIndex
	}
}

// ValidateAll probes every credential eagerly. Used at startup; returns
// *zerr.NoValidCredentials if every credential ends up unavailable.
func (m *Manager) ValidateAll(ctx context.Context) error {
	m.mu.Lock()
	creds := append([]*credential.Credential(nil), m.credentials...)
	m.mu.Unlock()

	for _, c := range creds {
		m.validateOne(ctx, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasAvailableLocked() {
		return &zerr.NoValidCredentials{Count: len(m.credentials)}
	}
	if err := m.flushLocked(); err != nil {
		zlog.Warnf("could not persist rotation state after validation: %s", err)
	}
	return nil
}

// validateOne issues a probe, retrying once more (2 attempts total) on a
// transport error per spec §4.3. It mutates c in place.
func (m *Manager) validateOne(ctx context.Context, c *credential.Credential) {
	var result upstream.ProbeResult
	for attempt := 0; attempt < 2; attempt++ {
		result = m.client.Probe(ctx, c)
		if result.Outcome != upstream.ProbeTransportError {
			break
		}
		zlog.Warnf("validation probe for %s failed transiently (attempt %d): %v", c.IdentityKey(), attempt+1, result.Err)
	}

	c.LastValidated = time.Now()

	switch result.Outcome {
	case upstream.ProbeSuccess:
		c.Status = credential.StatusValid
		if result.DownloadsLeft >= 0 {
			c.DownloadsLeft = result.DownloadsLeft
		}
	case upstream.ProbeAuthRejected:
		c.Status = credential.StatusInvalid
	case upstream.ProbeQuotaExhausted:
		c.Status = credential.StatusExhausted
		c.DownloadsLeft = 0
	case upstream.ProbeTransportError:
		c.Status = credential.StatusUnknown
	}
}

// ValidateLazy validates a single credential on first use. Unlike
// ValidateAll it never blocks startup and is meant to be called just
// before a credential is first handed to the session pool.
func (m *Manager) ValidateLazy(ctx context.Context, identity string) {
	m.mu.Lock()
	var target *credential.Credential
	for _, c := range m.credentials {
		if c.IdentityKey() == identity {
			target = c
			break
		}
	}
	m.mu.Unlock()
	if target == nil || target.Status != credential.StatusUnknown {
		return
	}
	m.validateOne(ctx, target)
	m.mu.Lock()
	if err := m.flushLocked(); err != nil {
		zlog.Warnf("could not persist rotation state after lazy validation: %s", err)
	}
	m.mu.Unlock()
}

// Current returns the credential the rotation cursor currently points at,
// or nil if the credential list is empty.
func (m *Manager) Current() *credential.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

func (m *Manager) currentLocked() *credential.Credential {
	if len(m.credentials) == 0 {
		return nil
	}
	idx := m.currentIndex % len(m.credentials)
	return m.credentials[idx]
}

func (m *Manager) hasAvailableLocked() bool {
	for _, c := range m.credentials {
		if c.IsAvailable() {
			return true
		}
	}
	return false
}

// Rotate advances the cursor to the next available credential, wrapping
// modulo the credential count. It fails with *zerr.AllCredentialsExhausted
// (leaving currentIndex unchanged) if no credential is available after a
// full wrap.
func (m *Manager) Rotate(ctx context.Context) (*credential.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotateLocked(ctx)
}

func (m *Manager) rotateLocked(ctx context.Context) (*credential.Credential, error) {
	n := len(m.credentials)
	if n == 0 {
		return nil, &zerr.AllCredentialsExhausted{}
	}

	for step := 1; step <= n; step++ {
		idx := (m.currentIndex + step) % n
		if m.credentials[idx].IsAvailable() {
			m.currentIndex = idx
			m.lastRotation = time.Now()
			requestID := uuid.NewString()
			if err := m.flushLocked(); err != nil {
				zlog.Warnf("[%s] could not persist rotation state after rotate: %s", requestID, err)
			}
			zlog.Infof("[%s] rotated to credential %s", requestID, m.credentials[idx].IdentityKey())
			return m.credentials[idx], nil
		}
	}

	return nil, &zerr.AllCredentialsExhausted{}
}

// MarkInvalid flags the credential with the given identity as INVALID
// (e.g. after an upstream auth error mid-operation) and flushes state.
func (m *Manager) MarkInvalid(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.findLocked(identity); c != nil {
		c.Status = credential.StatusInvalid
		if err := m.flushLocked(); err != nil {
			zlog.Warnf("could not persist rotation state after marking invalid: %s", err)
		}
	}
}

// MarkExhausted flags the credential as EXHAUSTED (upstream quota signal)
// and flushes state.
func (m *Manager) MarkExhausted(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.findLocked(identity); c != nil {
		c.Status = credential.StatusExhausted
		c.DownloadsLeft = 0
		if err := m.flushLocked(); err != nil {
			zlog.Warnf("could not persist rotation state after marking exhausted: %s", err)
		}
	}
}

// RecordSuccessfulDownload decrements the quota for the credential used
// by one, per spec §4.3, marking it EXHAUSTED if it reaches zero.
func (m *Manager) RecordSuccessfulDownload(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findLocked(identity)
	if c == nil {
		return
	}
	c.LastUsed = time.Now()
	if c.DownloadsLeft > 0 {
		c.DownloadsLeft--
		if c.DownloadsLeft == 0 {
			c.Status = credential.StatusExhausted
		}
	}
	if err := m.flushLocked(); err != nil {
		zlog.Warnf("could not persist rotation state after recording download: %s", err)
	}
}

func (m *Manager) findLocked(identity string) *credential.Credential {
	for _, c := range m.credentials {
		if c.IdentityKey() == identity {
			return c
		}
	}
	return nil
}

// flushLocked persists the current credential statuses along with
// lastRotation, which only rotateLocked ever advances. Marking a credential
// invalid/exhausted or recording a download must not look like a rotation
// in the saved state (spec §4.2: LastRotation is updated after every
// rotation, not after every flush).
func (m *Manager) flushLocked() error {
	if m.statePath == "" {
		return nil
	}
	statuses := make(map[string]rotation.CredentialState, len(m.credentials))
	for _, c := range m.credentials {
		statuses[c.IdentityKey()] = rotation.CredentialState{
			LastUsed:      c.LastUsed,
			DownloadsLeft: c.DownloadsLeft,
			Status:        c.Status,
		}
	}
	state := m.preservedState.WithKnownFields(m.currentIndex, m.lastRotation, statuses)
	return rotation.Save(m.statePath, state)
}

// Credentials returns a snapshot of the managed credential list, for
// diagnostics only; callers must not mutate the returned slice's elements
// outside of the manager's API.
func (m *Manager) Credentials() []*credential.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*credential.Credential(nil), m.credentials...)
}
