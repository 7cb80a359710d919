package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2Auth attaches access tokens obtained from an oauth2.TokenSource.
// Tokens are cached by the source and refreshed once expired.
type OAuth2Auth struct {
	source oauth2.TokenSource
}

// OAuth2 returns an authenticator using the client-credentials grant
// described by cfg. ctx governs the token requests, not individual API
// calls.
func OAuth2(ctx context.Context, cfg *clientcredentials.Config) (*OAuth2Auth, error) {
	if cfg == nil {
		return nil, errors.New("oauth2 config is nil")
	}
	if cfg.TokenURL == "" {
		return nil, errors.New("oauth2 token url is empty")
	}
	return &OAuth2Auth{source: cfg.TokenSource(ctx)}, nil
}

// OAuth2TokenSource returns an authenticator backed by src, wrapped so
// valid tokens are reused.
func OAuth2TokenSource(src oauth2.TokenSource) *OAuth2Auth {
	return &OAuth2Auth{source: oauth2.ReuseTokenSource(nil, src)}
}

// Authenticate sets the Authorization header from the current token.
func (a *OAuth2Auth) Authenticate(req *http.Request) error {
	tok, err := a.source.Token()
	if err != nil {
		return fmt.Errorf("oauth2 token: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}
