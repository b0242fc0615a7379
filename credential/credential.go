// Package credential loads and represents authenticated accounts against
// the upstream service. A Credential is either an email+password account
// or a userId+userKey token account, never both.
package credential

import "time"

// Status is the closed set of validation states a Credential can be in.
type Status int32

const (
	StatusUnknown Status = iota
	StatusValid
	StatusInvalid
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// ParseStatus parses the lowercase wire form used by the rotation state
// file. Unrecognized strings map to StatusUnknown.
func ParseStatus(s string) Status {
	switch s {
	case "valid":
		return StatusValid
	case "invalid":
		return StatusInvalid
	case "exhausted":
		return StatusExhausted
	default:
		return StatusUnknown
	}
}

// Credential is one authenticated account. Exactly one of (Email,Password)
// or (UserID,UserKey) is populated.
type Credential struct {
	Name    string // display only
	Email   string
	Password string
	UserID  string
	UserKey string
	Enabled bool

	Status         Status
	DownloadsLeft  int // -1 means unknown
	LastUsed       time.Time
	LastValidated  time.Time
}

// IdentityKey returns the stable identity used to key rotation state and
// session pools: the email for password credentials, the numeric user id
// for token credentials.
func (c *Credential) IdentityKey() string {
	if c.Email != "" {
		return c.Email
	}
	return c.UserID
}

// IsTokenAuth reports whether this credential authenticates via
// userId+userKey rather than email+password.
func (c *Credential) IsTokenAuth() bool {
	return c.Email == "" && c.UserID != ""
}

// IsAvailable reports whether this credential is currently eligible for
// rotation: enabled, not known-bad, and not known to be out of downloads.
func (c *Credential) IsAvailable() bool {
	if !c.Enabled {
		return false
	}
	if c.Status != StatusValid && c.Status != StatusUnknown {
		return false
	}
	if c.DownloadsLeft == 0 {
		return false
	}
	return true
}
