package client

import (
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds a whole exchange on the default inner transport.
// Prefer per-request context deadlines; this is a coarse safety net.
const DefaultTimeout = 30 * time.Second

// Plugin wraps a transport with extra behaviour. Plugins compose like
// middleware: the first plugin in a chain sees the request first.
type Plugin func(next Transport) Transport

// Chain wraps inner with plugins, the first plugin outermost.
func Chain(inner Transport, plugins ...Plugin) Transport {
	t := inner
	for i := len(plugins) - 1; i >= 0; i-- {
		if plugins[i] != nil {
			t = plugins[i](t)
		}
	}
	return t
}

// StandardPlugins returns the plugin chain every builder in this module
// installs, outermost first:
//
//  1. base URI resolution
//  2. default headers
//  3. extra (tracing, rate limiting, circuit breaking, request IDs)
//  4. authentication
//  5. retry, when cfg.Retry is set
//  6. journal, when cfg.Journal is set
//  7. response handling (error responses become *TransportError)
func StandardPlugins(cfg BuildConfig, extra ...Plugin) []Plugin {
	plugins := []Plugin{
		baseURIPlugin(cfg.BaseURI),
		headerDefaultsPlugin(cfg.DefaultHeaders),
	}
	plugins = append(plugins, extra...)
	plugins = append(plugins, authenticationPlugin(cfg.Authenticator))
	if cfg.Retry != nil {
		plugins = append(plugins, retryPlugin(*cfg.Retry))
	}
	if cfg.Journal != nil {
		plugins = append(plugins, journalPlugin(cfg.Journal))
	}
	plugins = append(plugins, responseHandlerPlugin(cfg.ErrorFormatter))
	return plugins
}

// Builder is the default TransportBuilder. It wraps an inner transport,
// an *http.Client unless one is supplied, in the standard plugin chain.
type Builder struct {
	mu      sync.Mutex
	inner   Transport
	plugins []Plugin
	builds  int
}

// NewBuilder returns a Builder around inner. A nil inner selects an
// *http.Client with DefaultTimeout.
func NewBuilder(inner Transport) *Builder {
	if inner == nil {
		inner = &http.Client{Timeout: DefaultTimeout}
	}
	return &Builder{inner: inner}
}

// AddPlugin appends extra plugins, placed between the default headers and
// authentication in every transport built afterwards.
func (b *Builder) AddPlugin(plugins ...Plugin) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plugins = append(b.plugins, plugins...)
	return b
}

// Build assembles a transport for cfg.
func (b *Builder) Build(cfg BuildConfig) (Transport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds++
	extra := append([]Plugin(nil), b.plugins...)
	return Chain(b.inner, StandardPlugins(cfg, extra...)...), nil
}

// BuildCount reports how many transports the builder has produced.
func (b *Builder) BuildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds
}
