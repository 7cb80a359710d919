// Package restytransport builds connector client transports on top of a
// resty client, for callers that already tune resty (proxies, TLS,
// redirect policy) elsewhere in their application.
package restytransport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/ashutosh-srijan/connector-code-sample/client"
)

// Builder is a client.TransportBuilder sending requests through resty.
type Builder struct {
	rc *resty.Client

	mu      sync.Mutex
	plugins []client.Plugin
	builds  int
}

// New returns a Builder around rc. A nil rc selects resty.New() with
// client.DefaultTimeout.
func New(rc *resty.Client) *Builder {
	if rc == nil {
		rc = resty.New().SetTimeout(client.DefaultTimeout)
	}
	return &Builder{rc: rc}
}

// AddPlugin appends extra plugins installed in every transport built
// afterwards.
func (b *Builder) AddPlugin(plugins ...client.Plugin) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plugins = append(b.plugins, plugins...)
	return b
}

// Build wraps the resty transport in the standard plugin chain.
func (b *Builder) Build(cfg client.BuildConfig) (client.Transport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds++
	extra := append([]client.Plugin(nil), b.plugins...)
	return client.Chain(client.TransportFunc(b.do), client.StandardPlugins(cfg, extra...)...), nil
}

// BuildCount reports how many transports the builder has produced.
func (b *Builder) BuildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds
}

// do executes req through resty and hands back the raw, unread response.
func (b *Builder) do(req *http.Request) (*http.Response, error) {
	r := b.rc.R().
		SetContext(req.Context()).
		SetDoNotParseResponse(true)
	r.Header = req.Header.Clone()
	if r.Header == nil {
		r.Header = http.Header{}
	}

	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		r.SetBody(bytes.NewReader(data))
	}

	resp, err := r.Execute(req.Method, req.URL.String())
	if err != nil {
		return nil, err
	}
	raw := resp.RawResponse
	if raw == nil {
		return nil, fmt.Errorf("%s %s: empty response", req.Method, req.URL)
	}
	raw.Request = req
	return raw, nil
}
