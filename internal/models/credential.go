// package models defines the data model for the playback remote
package models

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// expirySkew treats tokens as expired slightly early so a request never starts with a token about to lapse.
const expirySkew = 30 * time.Second

// Credential is an OAuth token pair held by exactly one session.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"` // zero when upstream gave no lifetime
}

// CredentialFromToken converts an [oauth2.Token] into a [Credential].
func CredentialFromToken(t *oauth2.Token) *Credential {
	if t == nil {
		return nil
	}
	return &Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
}

// Expired reports whether the access token is absent or known to lapse within the skew window.
func (c *Credential) Expired(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(c.ExpiresAt)
}

// CanRefresh reports whether the credential carries a refresh token.
func (c *Credential) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}

// Session is the persisted record behind a [CredentialStore] entry.
type Session struct {
	ID         string
	Credential Credential
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CredentialStore maps session IDs to credentials.
//
// Implementations must be safe for concurrent use. Get returns [shared.ErrSessionNotFound] when no credential is stored.
// Delete is idempotent.
type CredentialStore interface {
	Get(ctx context.Context, sessionID string) (*Credential, error)
	Save(ctx context.Context, sessionID string, cred *Credential) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// SessionLister is implemented by stores that can enumerate their sessions.
type SessionLister interface {
	List(ctx context.Context) ([]Session, error)
}
