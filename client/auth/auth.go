// Package auth provides request authenticators for the connector client.
//
// Each authenticator decorates an outgoing *http.Request in place. The
// client always hands them a private clone, so they never modify the
// caller's request.
package auth

import (
	"errors"
	"net/http"

	"github.com/ashutosh-srijan/connector-code-sample/devmode"
)

// Authenticator decorates an outgoing request with credentials.
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// BearerAuth sends a static token in the Authorization header.
type BearerAuth struct {
	Token string
}

// Bearer returns an authenticator sending "Authorization: Bearer <token>".
func Bearer(token string) *BearerAuth { return &BearerAuth{Token: token} }

// Authenticate sets the Authorization header.
func (a *BearerAuth) Authenticate(req *http.Request) error {
	if a.Token == "" {
		return errors.New("bearer token is empty")
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
	return nil
}

// DevMode authenticates with the shared development API key.
func DevMode() *BearerAuth { return Bearer(devmode.APIKey) }

// BasicAuth sends HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Basic returns an authenticator sending HTTP basic credentials.
func Basic(username, password string) *BasicAuth {
	return &BasicAuth{Username: username, Password: password}
}

// Authenticate sets the basic credentials.
func (a *BasicAuth) Authenticate(req *http.Request) error {
	req.SetBasicAuth(a.Username, a.Password)
	return nil
}

// HeaderAuth sends a credential in an arbitrary header, as API-key
// schemes such as "X-Api-Key" do.
type HeaderAuth struct {
	Name  string
	Value string
}

// Header returns an authenticator setting name to value.
func Header(name, value string) *HeaderAuth { return &HeaderAuth{Name: name, Value: value} }

// Authenticate sets the header.
func (a *HeaderAuth) Authenticate(req *http.Request) error {
	if a.Name == "" {
		return errors.New("auth header name is empty")
	}
	req.Header.Set(a.Name, a.Value)
	return nil
}

type anonymous struct{}

func (anonymous) Authenticate(*http.Request) error { return nil }

// Anonymous returns an authenticator that sends no credentials, for public
// endpoints.
func Anonymous() Authenticator { return anonymous{} }

// ChainAuth applies several authenticators in order.
type ChainAuth []Authenticator

// Chain returns an authenticator applying each of auths in order.
func Chain(auths ...Authenticator) ChainAuth { return ChainAuth(auths) }

// Authenticate applies every authenticator, stopping at the first error.
func (c ChainAuth) Authenticate(req *http.Request) error {
	for _, a := range c {
		if a == nil {
			continue
		}
		if err := a.Authenticate(req); err != nil {
			return err
		}
	}
	return nil
}
