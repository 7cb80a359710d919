package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ashutosh-srijan/connector-code-sample/client/auth"
	"github.com/ashutosh-srijan/connector-code-sample/client/formatter"
	"github.com/ashutosh-srijan/connector-code-sample/client/journal"
	"github.com/rs/zerolog/log"
)

// --------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------

const (
	// DefaultEndpoint is used when New receives an empty endpoint.
	DefaultEndpoint = "https://api.example.com"

	// Version is the client version reported in the User-Agent header.
	Version = "1.0.0"

	// ClientName identifies this client in the User-Agent header.
	ClientName = "connector-code-sample"

	// AcceptJSON is the default Accept header value.
	AcceptJSON = "application/json; charset=utf-8"

	// ContentTypeJSON is added to POST and PUT requests without a Content-Type.
	ContentTypeJSON = "application/json"
)

// TransportState tells whether the client's transport has been built.
type TransportState int

const (
	Unbuilt TransportState = iota
	Built
)

func (s TransportState) String() string {
	if s == Built {
		return "Built"
	}
	return "Unbuilt"
}

// --------------------------------------------------------------------
// Client core
// --------------------------------------------------------------------

// Client sends requests to a remote API endpoint. Every collaborator
// (transport, URI and request construction, authentication, journaling,
// error formatting, retry policy) is injected through Options.
//
// A Client is safe for concurrent use; its transport is built once, on the
// first request, and reused until InvalidateTransport is called.
type Client struct {
	endpoint        string
	auth            Authenticator
	userAgentPrefix string

	builder        TransportBuilder
	uriFactory     URIFactory
	requestFactory RequestFactory
	journal        Journal
	errorFormatter ErrorFormatter
	retry          *RetryPluginConfig

	mu        sync.Mutex
	state     TransportState
	transport Transport
}

// New constructs a Client for endpoint authenticated by authentication.
// An empty endpoint selects DefaultEndpoint. A nil authentication or an
// invalid option fails with a *ConfigurationError.
func New(authentication Authenticator, endpoint string, opts ...Option) (*Client, error) {
	if authentication == nil {
		return nil, &ConfigurationError{Err: ErrMissingAuthentication}
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}

	var o Options
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&o); err != nil {
			if IsConfigurationError(err) {
				return nil, err
			}
			return nil, &ConfigurationError{Err: err}
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:        endpoint,
		auth:            authentication,
		userAgentPrefix: o.UserAgentPrefix,
	}
	c.resolveConfiguration(o)

	if _, err := c.BaseURI(); err != nil {
		return nil, &ConfigurationError{Option: OptionURIFactory, Err: err}
	}
	return c, nil
}

// NewFromMap is New with options given as a map keyed by the recognised
// option names (see OptionsFromMap).
func NewFromMap(authentication Authenticator, endpoint string, options map[string]any) (*Client, error) {
	if authentication == nil {
		return nil, &ConfigurationError{Err: ErrMissingAuthentication}
	}
	o, err := OptionsFromMap(options)
	if err != nil {
		return nil, err
	}
	return New(authentication, endpoint, WithOptions(o))
}

// NewWithDevMode constructs a Client using the shared development API key.
// Only a backend running in development mode accepts that key.
func NewWithDevMode(endpoint string, opts ...Option) (*Client, error) {
	return New(auth.DevMode(), endpoint, opts...)
}

// resolveConfiguration fills every capability missing from o with its
// default and stores the result as client state.
func (c *Client) resolveConfiguration(o Options) {
	c.builder = o.HTTPClientBuilder
	if c.builder == nil {
		c.builder = NewBuilder(nil)
	}
	c.uriFactory = o.URIFactory
	if c.uriFactory == nil {
		c.uriFactory = DefaultURIFactory{}
	}
	c.requestFactory = o.RequestFactory
	if c.requestFactory == nil {
		c.requestFactory = DefaultRequestFactory{URIFactory: c.uriFactory}
	}
	c.errorFormatter = o.ErrorFormatter
	if c.errorFormatter == nil {
		c.errorFormatter = formatter.Full{RedactHeaders: credentialHeaders(c.auth)}
	}
	c.journal = o.Journal
	// Auto-enable exchange logging via env variable without changing code.
	if debugLoggingRequested() {
		dbg := journal.NewLogger(log.Logger)
		if c.journal == nil {
			c.journal = dbg
		} else {
			c.journal = journal.Multi(c.journal, dbg)
		}
	}
	c.retry = o.RetryPluginConfig
}

// credentialHeaders lists the custom headers a carries credentials in, so
// the default error formatter masks them.
func credentialHeaders(a any) []string {
	switch v := a.(type) {
	case *auth.HeaderAuth:
		return []string{v.Name}
	case auth.ChainAuth:
		var names []string
		for _, inner := range v {
			names = append(names, credentialHeaders(inner)...)
		}
		return names
	default:
		return nil
	}
}

// Endpoint returns the configured base endpoint.
func (c *Client) Endpoint() string { return c.endpoint }

// BaseURI returns the endpoint as a URL, built by the URI factory.
func (c *Client) BaseURI() (*url.URL, error) {
	return c.uriFactory.CreateURI(c.endpoint)
}

// UserAgent returns the User-Agent header value sent by default.
func (c *Client) UserAgent() string {
	ua := ClientName + "/" + Version
	if c.userAgentPrefix != "" {
		return c.userAgentPrefix + " " + ua
	}
	return ua
}

// DefaultHeaders returns the headers added to every request that does not
// set them explicitly.
func (c *Client) DefaultHeaders() http.Header {
	h := make(http.Header, 2)
	h.Set("User-Agent", c.UserAgent())
	h.Set("Accept", AcceptJSON)
	return h
}

// State reports whether the transport has been built.
func (c *Client) State() TransportState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InvalidateTransport discards the cached transport; the next request
// builds a fresh one from the builder.
func (c *Client) InvalidateTransport() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = nil
	c.state = Unbuilt
}

// --------------------------------------------------------------------
// Verbs
// --------------------------------------------------------------------

// Get sends a GET request for uri.
func (c *Client) Get(ctx context.Context, uri string, headers http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, uri, headers, nil)
}

// Head sends a HEAD request for uri.
func (c *Client) Head(ctx context.Context, uri string, headers http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodHead, uri, headers, nil)
}

// Post sends body to uri. Content-Type defaults to application/json.
func (c *Client) Post(ctx context.Context, uri string, body any, headers http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, uri, withJSONContentType(headers), body)
}

// Put sends body to uri. Content-Type defaults to application/json.
func (c *Client) Put(ctx context.Context, uri string, body any, headers http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodPut, uri, withJSONContentType(headers), body)
}

// Delete sends a DELETE request for uri with an optional body.
func (c *Client) Delete(ctx context.Context, uri string, body any, headers http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, uri, headers, body)
}

// SendRequest dispatches an already-built request through the transport.
// Transport failures are returned unchanged; the client never retries.
func (c *Client) SendRequest(req *http.Request) (*http.Response, error) {
	t, err := c.httpClient()
	if err != nil {
		return nil, err
	}
	return t.Do(req)
}

func (c *Client) send(ctx context.Context, method, uri string, headers http.Header, body any) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := c.requestFactory.CreateRequest(ctx, method, uri, headers, body)
	if err != nil {
		return nil, err
	}
	return c.SendRequest(req)
}

// httpClient returns the cached transport, building it on first use.
func (c *Client) httpClient() (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Built {
		return c.transport, nil
	}

	base, err := c.BaseURI()
	if err != nil {
		return nil, err
	}
	t, err := c.builder.Build(BuildConfig{
		BaseURI:        base,
		DefaultHeaders: c.DefaultHeaders(),
		Authenticator:  c.auth,
		Journal:        c.journal,
		ErrorFormatter: c.errorFormatter,
		Retry:          c.retry,
	})
	if err != nil {
		return nil, &ConfigurationError{Option: OptionHTTPClientBuilder, Err: err}
	}
	c.transport = t
	c.state = Built
	return t, nil
}

// withJSONContentType returns a copy of headers carrying a JSON
// Content-Type unless the caller already set one.
func withJSONContentType(headers http.Header) http.Header {
	if hasHeader(headers, "Content-Type") {
		return headers
	}
	h := headers.Clone()
	if h == nil {
		h = make(http.Header, 1)
	}
	h.Set("Content-Type", ContentTypeJSON)
	return h
}

// hasHeader looks name up case-insensitively so non-canonical keys set
// directly on the map still count.
func hasHeader(h http.Header, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
