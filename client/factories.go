package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultURIFactory parses URIs with net/url.
type DefaultURIFactory struct{}

// CreateURI parses raw, which may be absolute or relative.
func (DefaultURIFactory) CreateURI(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("create uri: %w", err)
	}
	return u, nil
}

// DefaultRequestFactory builds requests from a method, a URI and an opaque
// body:
//   - nil sends no body
//   - []byte, string and io.Reader are sent as-is
//   - anything else is JSON encoded
type DefaultRequestFactory struct {
	URIFactory URIFactory
}

// CreateRequest builds the request. Header keys are canonicalised.
func (f DefaultRequestFactory) CreateRequest(ctx context.Context, method, uri string, headers http.Header, body any) (*http.Request, error) {
	uf := f.URIFactory
	if uf == nil {
		uf = DefaultURIFactory{}
	}
	u, err := uf.CreateURI(uri)
	if err != nil {
		return nil, err
	}
	r, err := bodyReader(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func bodyReader(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}
