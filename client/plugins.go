package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// maxErrorBodyBytes caps how much of an error response is kept in memory.
const maxErrorBodyBytes = 1 << 20

// RequestIDHeader is set by RequestIDPlugin.
const RequestIDHeader = "X-Request-Id"

// baseURIPlugin resolves relative request URLs against base. The base path
// acts as a prefix: "https://h/v1" + "/items" becomes "https://h/v1/items".
// Base and request queries are merged. A protocol-relative URL keeps its
// host and takes the base scheme.
func baseURIPlugin(base *url.URL) Plugin {
	return func(next Transport) Transport {
		if base == nil {
			return next
		}
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL == nil || req.URL.IsAbs() {
				return next.Do(req)
			}
			r := cloneRequest(req)
			if req.URL.Host != "" {
				u := *req.URL
				u.Scheme = base.Scheme
				r.URL = &u
				return next.Do(r)
			}
			r.URL = resolveURL(base, req.URL)
			r.Host = r.URL.Host
			return next.Do(r)
		})
	}
}

func resolveURL(base, rel *url.URL) *url.URL {
	u := *base
	u.Path = joinPath(base.Path, rel.Path)
	u.RawPath = ""
	switch {
	case base.RawQuery == "":
		u.RawQuery = rel.RawQuery
	case rel.RawQuery != "":
		u.RawQuery = base.RawQuery + "&" + rel.RawQuery
	}
	u.Fragment = rel.Fragment
	return &u
}

// cloneRequest clones req with a non-nil header map, so plugins can set
// headers on requests built without one.
func cloneRequest(req *http.Request) *http.Request {
	r := req.Clone(req.Context())
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	return r
}

func joinPath(prefix, p string) string {
	switch {
	case p == "":
		return prefix
	case prefix == "" || prefix == "/":
		if strings.HasPrefix(p, "/") {
			return p
		}
		return "/" + p
	default:
		return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(p, "/")
	}
}

// headerDefaultsPlugin sets each default header the request does not carry.
func headerDefaultsPlugin(defaults http.Header) Plugin {
	return func(next Transport) Transport {
		if len(defaults) == 0 {
			return next
		}
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			r := cloneRequest(req)
			for k, vs := range defaults {
				if hasHeader(r.Header, k) {
					continue
				}
				for _, v := range vs {
					r.Header.Add(k, v)
				}
			}
			return next.Do(r)
		})
	}
}

// RequestIDPlugin tags each request lacking an X-Request-Id header with a
// random UUID.
func RequestIDPlugin() Plugin {
	return func(next Transport) Transport {
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) != "" {
				return next.Do(req)
			}
			r := cloneRequest(req)
			r.Header.Set(RequestIDHeader, uuid.NewString())
			return next.Do(r)
		})
	}
}

func authenticationPlugin(a Authenticator) Plugin {
	return func(next Transport) Transport {
		if a == nil {
			return next
		}
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			r := cloneRequest(req)
			if err := a.Authenticate(r); err != nil {
				return nil, fmt.Errorf("authenticate request: %w", err)
			}
			return next.Do(r)
		})
	}
}

func journalPlugin(j Journal) Plugin {
	return func(next Transport) Transport {
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.Do(req)
			if err != nil {
				j.AddFailure(req, err)
				return nil, err
			}
			j.AddSuccess(req, resp)
			return resp, nil
		})
	}
}

// responseHandlerPlugin turns error responses (status >= 400) and network
// failures into *TransportError. The body of an error response is buffered
// so the original connection can be released.
func responseHandlerPlugin(f ErrorFormatter) Plugin {
	return func(next Transport) Transport {
		return TransportFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.Do(req)
			if err != nil {
				var te *TransportError
				if errors.As(err, &te) {
					return nil, err
				}
				te = &TransportError{Request: req, Err: err}
				if f != nil {
					te.Message = f.FormatRequest(req)
				}
				return nil, te
			}
			if resp.StatusCode < http.StatusBadRequest {
				return resp, nil
			}

			bufferBody(resp)
			te := &TransportError{
				Request:    req,
				Response:   resp,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("unexpected status %s", resp.Status),
			}
			if f != nil {
				te.Message = f.FormatResponse(resp)
			}
			return nil, te
		})
	}
}

func bufferBody(resp *http.Response) {
	if resp.Body == nil {
		resp.Body = http.NoBody
		return
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.ContentLength = int64(len(data))
}
