// Package formatter renders failed HTTP exchanges as diagnostic text for
// transport errors.
package formatter

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// DefaultMaxBodyLength bounds the body excerpt written by Full.
const DefaultMaxBodyLength = 1000

// Redacted replaces the value of a sensitive header.
const Redacted = "[REDACTED]"

// SensitiveHeaders are always redacted by Full.
var SensitiveHeaders = []string{"Authorization", "Proxy-Authorization", "Cookie", "Set-Cookie", "X-Api-Key"}

// Simple renders only the request line and status.
type Simple struct{}

// FormatRequest renders "METHOD url".
func (Simple) FormatRequest(req *http.Request) string {
	if req == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", req.Method, req.URL)
}

// FormatResponse renders the status line.
func (Simple) FormatResponse(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

// Full renders the start line, headers and a body excerpt. Bodies are
// restored after reading so the message can be built without consuming
// them.
type Full struct {
	// MaxBodyLength bounds the body excerpt; zero selects
	// DefaultMaxBodyLength and a negative value omits bodies.
	MaxBodyLength int
	// RedactHeaders names headers masked in addition to SensitiveHeaders,
	// such as a custom API key header.
	RedactHeaders []string
}

// FormatRequest renders the request line, headers and body excerpt.
func (f Full) FormatRequest(req *http.Request) string {
	if req == nil {
		return ""
	}
	var b strings.Builder
	proto := req.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	fmt.Fprintf(&b, "%s %s %s\n", req.Method, req.URL.RequestURI(), proto)
	if req.Host != "" {
		fmt.Fprintf(&b, "Host: %s\n", req.Host)
	} else if req.URL.Host != "" {
		fmt.Fprintf(&b, "Host: %s\n", req.URL.Host)
	}
	f.writeHeaders(&b, req.Header)

	if f.limit() >= 0 && req.GetBody != nil && req.Body != nil && req.Body != http.NoBody {
		if rc, err := req.GetBody(); err == nil {
			data, _ := io.ReadAll(io.LimitReader(rc, int64(f.limit())+1))
			_ = rc.Close()
			writeBody(&b, data, f.limit())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatResponse renders the status line, headers and body excerpt.
func (f Full) FormatResponse(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	fmt.Fprintf(&b, "%s %d %s\n", proto, resp.StatusCode, http.StatusText(resp.StatusCode))
	f.writeHeaders(&b, resp.Header)

	if f.limit() >= 0 && resp.Body != nil && resp.Body != http.NoBody {
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(data))
		if err == nil {
			writeBody(&b, data, f.limit())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (f Full) limit() int {
	if f.MaxBodyLength == 0 {
		return DefaultMaxBodyLength
	}
	return f.MaxBodyLength
}

func (f Full) writeHeaders(b *strings.Builder, h http.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		redact := f.sensitive(k)
		for _, v := range h[k] {
			if redact {
				v = Redacted
			}
			fmt.Fprintf(b, "%s: %s\n", k, v)
		}
	}
}

func (f Full) sensitive(name string) bool {
	for _, list := range [][]string{SensitiveHeaders, f.RedactHeaders} {
		for _, s := range list {
			if strings.EqualFold(s, name) {
				return true
			}
		}
	}
	return false
}

func writeBody(b *strings.Builder, data []byte, limit int) {
	if len(data) == 0 {
		return
	}
	b.WriteString("\n")
	if len(data) > limit {
		b.Write(data[:limit])
		b.WriteString(" (truncated...)")
		return
	}
	b.Write(data)
}
