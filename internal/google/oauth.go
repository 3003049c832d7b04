package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// ErrExchange is returned when Google rejects an authorization code.
// Codes are single-use: callers must not retry the exchange.
var ErrExchange = errors.New("authorization code exchange rejected")

// OAuthConfig holds the OAuth client settings for the Google authorization
// flow. Endpoint defaults to Google's and is overridable for tests.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string

	// RedirectURL is the absolute /auth/callback URL of this server.
	RedirectURL string

	// Endpoint is the provider's authorization/token endpoint pair.
	// Zero value selects Google's production endpoint.
	Endpoint oauth2.Endpoint
}

// OAuth2 returns the oauth2 configuration with the fixed Workspace scopes.
func (c *OAuthConfig) OAuth2() *oauth2.Config {
	endpoint := c.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = googleoauth.Endpoint
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       OAuthScopes,
	}
}

// AuthCodeURL builds the provider authorization URL for a session. The
// session id is embedded as the state parameter so the callback can recover
// which session is completing the flow. access_type=offline requests a
// refresh token and prompt=consent forces one to be issued even when the
// user re-consents.
func (c *OAuthConfig) AuthCodeURL(sessionID string) string {
	return c.OAuth2().AuthCodeURL(sessionID,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for tokens. A provider rejection
// (invalid, expired, or already-consumed code) is wrapped in ErrExchange.
func (c *OAuthConfig) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.OAuth2().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	return token, nil
}

// HTTPClient returns an HTTP client that authenticates with the given token
// source. The client is pinned to HTTP/1.1 to avoid HTTP/2 protocol errors
// against the Google APIs.
func HTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	return client
}
