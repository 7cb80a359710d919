package journal

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httputil"

	"github.com/rs/zerolog"
)

// Logger dumps every exchange at debug level, including headers and bodies.
// Dumps contain credentials and payloads; enable it only while
// troubleshooting, e.g. by setting CONNECTOR_DEBUG=true.
type Logger struct {
	log zerolog.Logger
}

// NewLogger returns a Logger writing to l.
func NewLogger(l zerolog.Logger) *Logger {
	return &Logger{log: l}
}

// AddSuccess logs the request and response dumps.
func (l *Logger) AddSuccess(req *http.Request, resp *http.Response) {
	ev := l.log.Debug()
	if !ev.Enabled() {
		return
	}
	ev = ev.Str("method", req.Method).Str("url", req.URL.String()).Int("status_code", resp.StatusCode)
	if dump := dumpRequest(req); dump != "" {
		ev = ev.Str("request_dump", dump)
	}
	if d, err := httputil.DumpResponse(resp, resp.Body != nil); err == nil {
		ev = ev.Str("response_dump", string(d))
	}
	ev.Msg("HTTP exchange")
}

// AddFailure logs the failed request with its error.
func (l *Logger) AddFailure(req *http.Request, err error) {
	ev := l.log.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String())
	if code := statusCode(err); code > 0 {
		ev = ev.Int("status_code", code)
	}
	ev.Msg("HTTP request failed")
}

// dumpRequest renders req with its body when the body can be re-read
// without consuming what the transport sent.
func dumpRequest(req *http.Request) string {
	r := req.Clone(req.Context())
	body := req.Body != nil && req.Body != http.NoBody && req.GetBody != nil
	if body {
		rc, err := req.GetBody()
		if err != nil {
			body = false
		} else {
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			r.Body = io.NopCloser(bytes.NewReader(data))
		}
	}
	d, err := httputil.DumpRequest(r, body)
	if err != nil {
		return ""
	}
	return string(d)
}

// statusCode extracts an HTTP status from errors exposing one.
func statusCode(err error) int {
	for err != nil {
		if sc, ok := err.(interface{ HTTPStatusCode() int }); ok {
			return sc.HTTPStatusCode()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}
