package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"
)

func TestJoinPath(t *testing.T) {
	cases := []struct{ prefix, p, want string }{
		{"", "/items", "/items"},
		{"/", "items", "/items"},
		{"/v1", "/items", "/v1/items"},
		{"/v1/", "items", "/v1/items"},
		{"/v1", "", "/v1"},
	}
	for _, tc := range cases {
		if got := joinPath(tc.prefix, tc.p); got != tc.want {
			t.Fatalf("joinPath(%q, %q) = %q, want %q", tc.prefix, tc.p, got, tc.want)
		}
	}
}

func TestBaseURIKeepsAbsoluteURLs(t *testing.T) {
	rec := &recorder{}
	base, _ := url.Parse("https://api.example.com/v1")
	tr := Chain(rec, baseURIPlugin(base))

	req, _ := http.NewRequest(http.MethodGet, "https://other.test/x", nil)
	resp, err := tr.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got := rec.last(t).URL.String(); got != "https://other.test/x" {
		t.Fatalf("url = %s", got)
	}
}

func TestBaseURIMergesQueries(t *testing.T) {
	cases := []struct{ base, rel, want string }{
		{"https://api.example.com/v1?key=k", "/items?x=1", "https://api.example.com/v1/items?key=k&x=1"},
		{"https://api.example.com/v1?key=k", "/items", "https://api.example.com/v1/items?key=k"},
		{"https://api.example.com/v1", "/items?x=1", "https://api.example.com/v1/items?x=1"},
		{"https://api.example.com/v1?key=k", "//cdn.test/asset?y=2", "https://cdn.test/asset?y=2"},
	}
	for _, tc := range cases {
		rec := &recorder{}
		base, _ := url.Parse(tc.base)
		tr := Chain(rec, baseURIPlugin(base))

		rel, _ := url.Parse(tc.rel)
		req := (&http.Request{Method: http.MethodGet, URL: rel}).WithContext(context.Background())
		resp, err := tr.Do(req)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		resp.Body.Close()
		got := rec.last(t).URL
		if got.String() != tc.want {
			t.Fatalf("%s + %s = %s, want %s", tc.base, tc.rel, got, tc.want)
		}
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Plugin {
		return func(next Transport) Transport {
			return TransportFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.Do(req)
			})
		}
	}
	tr := Chain(&recorder{}, mark("a"), nil, mark("b"))
	req, _ := http.NewRequest(http.MethodGet, "https://x.test", nil)
	resp, err := tr.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("order = %v", order)
	}
}

func TestAuthenticationErrorStopsRequest(t *testing.T) {
	rec := &recorder{}
	failing := AuthenticatorFunc(func(*http.Request) error { return errors.New("token expired") })
	c, err := New(failing, "", WithHTTPClientBuilder(NewBuilder(rec)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Get(context.Background(), "/", nil)
	if err == nil || !strings.Contains(err.Error(), "token expired") {
		t.Fatalf("err = %v", err)
	}
	if len(rec.requests) != 0 {
		t.Fatalf("request sent despite authentication failure")
	}
}

func TestRequestIDPlugin(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestClient(t, rec)
	c.builder.(*Builder).AddPlugin(RequestIDPlugin())

	resp, err := c.Get(context.Background(), "/", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if got := rec.last(t).Header.Get(RequestIDHeader); len(got) != 36 {
		t.Fatalf("request id = %q", got)
	}

	resp, err = c.Get(context.Background(), "/", http.Header{RequestIDHeader: {"given"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if got := rec.last(t).Header.Get(RequestIDHeader); got != "given" {
		t.Fatalf("request id = %q", got)
	}
}

// flaky answers with the given statuses in turn, then 200.
type flaky struct {
	statuses []int
	calls    atomic.Int32
	bodies   []string
}

func (f *flaky) Do(req *http.Request) (*http.Response, error) {
	n := int(f.calls.Add(1)) - 1
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(data))
	}
	status := http.StatusOK
	if n < len(f.statuses) {
		status = f.statuses[n]
	}
	return &http.Response{StatusCode: status, Header: make(http.Header), Body: http.NoBody, Request: req}, nil
}

func fastRetry(max int) Option {
	return WithRetryPluginConfig(RetryPluginConfig{
		MaxRetries:      max,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	})
}

func TestRetryRecoversAndReplaysBody(t *testing.T) {
	f := &flaky{statuses: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}}
	c, _ := newTestClient(t, f, fastRetry(3))

	resp, err := c.Post(context.Background(), "/items", map[string]int{"n": 1}, nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()
	if f.calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", f.calls.Load())
	}
	for i, b := range f.bodies {
		if b != `{"n":1}` {
			t.Fatalf("attempt %d body = %q", i, b)
		}
	}
}

func TestRetryGivesUp(t *testing.T) {
	f := &flaky{statuses: []int{502, 502, 502, 502}}
	c, _ := newTestClient(t, f, fastRetry(2))

	_, err := c.Get(context.Background(), "/items", nil)
	if StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("err = %v", err)
	}
	if f.calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", f.calls.Load())
	}
}

func TestRetrySkipsClientErrors(t *testing.T) {
	f := &flaky{statuses: []int{http.StatusNotFound}}
	c, _ := newTestClient(t, f, fastRetry(3))

	_, err := c.Get(context.Background(), "/items/1", nil)
	if StatusCode(err) != http.StatusNotFound {
		t.Fatalf("err = %v", err)
	}
	if f.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", f.calls.Load())
	}
}

func TestRetrySkipsNonReplayableBody(t *testing.T) {
	f := &flaky{statuses: []int{http.StatusServiceUnavailable}}
	c, _ := newTestClient(t, f, fastRetry(3))

	_, err := c.Post(context.Background(), "/items", io.NopCloser(strings.NewReader("stream")), nil)
	if StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
	if f.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", f.calls.Load())
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	rec := &recorder{err: context.Canceled}
	c, _ := newTestClient(t, rec, fastRetry(5))

	_, err := c.Get(context.Background(), "/", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(rec.requests) != 1 {
		t.Fatalf("attempts = %d, want 1", len(rec.requests))
	}
}

func TestRateLimitPlugin(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestClient(t, rec)
	c.builder.(*Builder).AddPlugin(RateLimitPlugin(rate.NewLimiter(rate.Every(time.Hour), 1)))

	resp, err := c.Get(context.Background(), "/", nil)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Get(ctx, "/", nil); err == nil {
		t.Fatalf("expected limiter to reject the second request")
	}
	if len(rec.requests) != 1 {
		t.Fatalf("requests sent = %d", len(rec.requests))
	}
}

func TestCircuitBreakerPlugin(t *testing.T) {
	f := &flaky{statuses: []int{500, 500, 500, 500}}
	c, _ := newTestClient(t, f)
	c.builder.(*Builder).AddPlugin(CircuitBreakerPlugin(gobreaker.Settings{
		Timeout: time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	}))

	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "/", nil); StatusCode(err) != 500 {
			t.Fatalf("attempt %d err = %v", i, err)
		}
	}
	_, err := c.Get(context.Background(), "/", nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open breaker", err)
	}
	if f.calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", f.calls.Load())
	}
}

func TestCircuitBreakerIgnoresClientErrors(t *testing.T) {
	f := &flaky{statuses: []int{404, 404, 404}}
	c, _ := newTestClient(t, f)
	c.builder.(*Builder).AddPlugin(CircuitBreakerPlugin(gobreaker.Settings{
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 },
	}))
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "/", nil); StatusCode(err) != 404 {
			t.Fatalf("attempt %d err = %v", i, err)
		}
	}
	if f.calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", f.calls.Load())
	}
}

func TestTracingPlugin(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	rec := &recorder{}
	c, _ := newTestClient(t, rec)
	c.builder.(*Builder).AddPlugin(TracingPlugin(tp.Tracer("test")))

	resp, err := c.Get(context.Background(), "/items", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d", len(spans))
	}
	if spans[0].Name != "HTTP GET" {
		t.Fatalf("span name = %q", spans[0].Name)
	}
	var sawStatus bool
	for _, kv := range spans[0].Attributes {
		if kv.Key == "http.response.status_code" && kv.Value.AsInt64() == 200 {
			sawStatus = true
		}
	}
	if !sawStatus {
		t.Fatalf("missing status attribute: %v", spans[0].Attributes)
	}
	if rec.last(t).Header.Get("Traceparent") == "" {
		t.Fatalf("trace context not propagated")
	}
}

func TestRetryZeroMaxRetriesUsesDefault(t *testing.T) {
	f := &flaky{statuses: []int{503, 503, 503}}
	c, _ := newTestClient(t, f, WithRetryPluginConfig(RetryPluginConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}))

	_, err := c.Get(context.Background(), "/items", nil)
	if StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
	if got := f.calls.Load(); got != 1+DefaultMaxRetries {
		t.Fatalf("calls = %d, want %d", got, 1+DefaultMaxRetries)
	}
}
