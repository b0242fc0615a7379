// Package session implements the session pool (spec component C4): one
// cached authenticated upstream session per credential, refreshed on
// failure and rotated through the credential manager.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/zlib-go/zlib/credential"
	"github.com/zlib-go/zlib/manager"
	"github.com/zlib-go/zlib/upstream"
	"github.com/zlib-go/zlib/zerr"
)

// Pool caches one upstream.Session per credential identity. It is
// logically single-consumer: the core does not require safety under
// concurrent use by multiple in-flight operations (spec §4.4), but the
// session map is still guarded so that GetCurrent, Rotate and Refresh
// never race over it.
type Pool struct {
	mu       sync.Mutex
	client   upstream.Client
	manager  *manager.Manager
	sessions map[string]upstream.Session
}

// New constructs a Pool that creates sessions via client and rotates
// through mgr.
func New(client upstream.Client, mgr *manager.Manager) *Pool {
	return &Pool{
		client:   client,
		manager:  mgr,
		sessions: map[string]upstream.Session{},
	}
}

// GetCurrent returns the session for the manager's current credential,
// creating it lazily on first use.
func (p *Pool) GetCurrent(ctx context.Context) (upstream.Session, *credential.Credential, error) {
	cred := p.manager.Current()
	if cred == nil {
		return nil, nil, &zerr.AllCredentialsExhausted{}
	}
	sess, err := p.sessionFor(ctx, cred)
	if err != nil {
		return nil, cred, err
	}
	return sess, cred, nil
}

func (p *Pool) sessionFor(ctx context.Context, cred *credential.Credential) (upstream.Session, error) {
	identity := cred.IdentityKey()

	p.mu.Lock()
	sess, ok := p.sessions[identity]
	p.mu.Unlock()
	if ok {
		return sess, nil
	}

	sess, err := p.client.NewSession(ctx, cred)
	if err != nil {
		return nil, &zerr.SessionError{Identity: identity, Err: err}
	}

	p.mu.Lock()
	p.sessions[identity] = sess
	p.mu.Unlock()
	return sess, nil
}

// Rotate advances the credential manager and returns the session for the
// new current credential.
func (p *Pool) Rotate(ctx context.Context) (upstream.Session, *credential.Credential, error) {
	cred, err := p.manager.Rotate(ctx)
	if err != nil {
		return nil, nil, err
	}
	sess, err := p.sessionFor(ctx, cred)
	if err != nil {
		return nil, cred, err
	}
	return sess, cred, nil
}

// Refresh discards and recreates the session for identity, used when the
// upstream service returns an auth error mid-operation.
func (p *Pool) Refresh(ctx context.Context, identity string) (upstream.Session, error) {
	p.mu.Lock()
	delete(p.sessions, identity)
	p.mu.Unlock()

	for _, cred := range p.manager.Credentials() {
		if cred.IdentityKey() == identity {
			return p.sessionFor(ctx, cred)
		}
	}
	return nil, &zerr.SessionError{Identity: identity, Err: errors.New("credential no longer configured")}
}

// ValidateAll probes every credential in the manager. Results mirror spec
// §4.3's outcome table; it delegates to the manager which owns the
// validation policy.
func (p *Pool) ValidateAll(ctx context.Context) error {
	return p.manager.ValidateAll(ctx)
}
