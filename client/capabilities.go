package client

import (
	"context"
	"net/http"
	"net/url"
)

// Transport sends a single request and returns its response. *http.Client
// satisfies it, as does every transport produced by a TransportBuilder.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f TransportFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Authenticator decorates an outgoing request with credentials. The request
// handed to Authenticate is a private clone and may be modified freely.
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// AuthenticatorFunc adapts a plain function to the Authenticator interface.
type AuthenticatorFunc func(req *http.Request) error

// Authenticate calls f(req).
func (f AuthenticatorFunc) Authenticate(req *http.Request) error { return f(req) }

// URIFactory turns a raw URI string into a URL.
type URIFactory interface {
	CreateURI(raw string) (*url.URL, error)
}

// RequestFactory builds a request for method against uri. The uri may be
// relative; the transport resolves it against the endpoint.
type RequestFactory interface {
	CreateRequest(ctx context.Context, method, uri string, headers http.Header, body any) (*http.Request, error)
}

// Journal records every exchange made by a transport.
type Journal interface {
	AddSuccess(req *http.Request, resp *http.Response)
	AddFailure(req *http.Request, err error)
}

// ErrorFormatter renders the request and response of a failed exchange as
// diagnostic text.
type ErrorFormatter interface {
	FormatRequest(req *http.Request) string
	FormatResponse(resp *http.Response) string
}

// TransportBuilder constructs the transport used by a Client. Build is
// invoked lazily on first use and again only after InvalidateTransport.
type TransportBuilder interface {
	Build(cfg BuildConfig) (Transport, error)
}

// BuildConfig is the client state handed to a TransportBuilder.
type BuildConfig struct {
	BaseURI        *url.URL
	DefaultHeaders http.Header
	Authenticator  Authenticator
	Journal        Journal
	ErrorFormatter ErrorFormatter
	Retry          *RetryPluginConfig
}
