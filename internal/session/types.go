package session

import (
	"time"

	"golang.org/x/oauth2"
)

// DefaultTTL is the lifetime of a session and its credential record.
const DefaultTTL = 24 * time.Hour

// Session is one user's server-side interaction record.
type Session struct {
	// ID is the opaque identifier handed to the client. It doubles as the
	// OAuth state parameter and the /mcp/{userId} path segment.
	ID string `json:"userId"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"createdAt"`

	// ExpiresAt is when the session stops being valid.
	ExpiresAt time.Time `json:"expiresAt"`

	// Connected is true once valid tokens are associated with the session.
	Connected bool `json:"connected"`
}

// Credential is the OAuth token material owned by exactly one session.
type Credential struct {
	// AccessToken is the short-lived bearer value.
	AccessToken string `json:"accessToken"`

	// RefreshToken enables silent refresh. May be empty if the provider
	// withheld it, in which case the user must re-authorize on expiry.
	RefreshToken string `json:"refreshToken,omitempty"`

	// Expiry is the absolute expiry of the access token. Zero means the
	// provider reported no expiry.
	Expiry time.Time `json:"expiry,omitempty"`
}

// Token converts the credential to an oauth2 token for use with token
// sources and Google API clients.
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// FromToken builds a credential from an oauth2 token.
func FromToken(t *oauth2.Token) *Credential {
	return &Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}
