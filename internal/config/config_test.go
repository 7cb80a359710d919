package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashutosh-srijan/connector-code-sample/client/restytransport"
	"github.com/ashutosh-srijan/connector-code-sample/devmode"
)

func TestConfigLoad_Defaults(t *testing.T) {
	t.Setenv("CONNECTOR_TOKEN", "secret")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.Endpoint != "https://api.example.com" || cfg.Auth != AuthBearer || cfg.Transport != TransportNetHTTP {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second || cfg.RetryMaxRetries != 0 || cfg.RetryInitialInterval != 500*time.Millisecond {
		t.Fatalf("unexpected default timings: %+v", cfg)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("CONNECTOR_ENDPOINT", "http://localhost:9000/v2")
	t.Setenv("CONNECTOR_AUTH", "basic")
	t.Setenv("CONNECTOR_USERNAME", "alice")
	t.Setenv("CONNECTOR_PASSWORD", "pw")
	t.Setenv("CONNECTOR_TRANSPORT", "resty")
	t.Setenv("CONNECTOR_TIMEOUT", "5s")
	t.Setenv("CONNECTOR_RETRY_MAX_RETRIES", "3")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.Endpoint != "http://localhost:9000/v2" || cfg.Username != "alice" || cfg.Timeout != 5*time.Second {
		t.Fatalf("env override failed: %+v", cfg)
	}
	if _, ok := cfg.builder().(*restytransport.Builder); !ok {
		t.Fatalf("expected resty builder, got %T", cfg.builder())
	}
	if n := len(cfg.ClientOptions()); n != 2 {
		t.Fatalf("expected builder and retry options, got %d", n)
	}
}

func TestConfigLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing token":   {"CONNECTOR_AUTH": "bearer"},
		"unknown scheme":  {"CONNECTOR_AUTH": "kerberos"},
		"basic no user":   {"CONNECTOR_AUTH": "basic"},
		"bad endpoint":    {"CONNECTOR_AUTH": "anonymous", "CONNECTOR_ENDPOINT": "not a url"},
		"bad transport":   {"CONNECTOR_AUTH": "anonymous", "CONNECTOR_TRANSPORT": "grpc"},
		"negative retry":  {"CONNECTOR_AUTH": "anonymous", "CONNECTOR_RETRY_MAX_RETRIES": "-1"},
		"unparsable dur":  {"CONNECTOR_AUTH": "anonymous", "CONNECTOR_TIMEOUT": "soon"},
		"zero rate burst": {"CONNECTOR_AUTH": "anonymous", "CONNECTOR_RATE_BURST": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := New(); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}

func TestConfig_Authenticator(t *testing.T) {
	cases := []struct {
		cfg    Config
		header string
		want   string
	}{
		{Config{Auth: AuthBearer, Token: "t"}, "Authorization", "Bearer t"},
		{Config{Auth: AuthBasic, Username: "u", Password: "p"}, "Authorization", "Basic dTpw"},
		{Config{Auth: AuthHeader, HeaderName: "X-Api-Key", Token: "k"}, "X-Api-Key", "k"},
		{Config{Auth: AuthAnonymous}, "Authorization", ""},
		{Config{Auth: AuthDevMode}, "Authorization", "Bearer " + devmode.APIKey},
	}
	for _, tc := range cases {
		a, err := tc.cfg.Authenticator()
		if err != nil {
			t.Fatalf("%s: %v", tc.cfg.Auth, err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if err := a.Authenticate(req); err != nil {
			t.Fatalf("%s: authenticate: %v", tc.cfg.Auth, err)
		}
		if got := req.Header.Get(tc.header); got != tc.want {
			t.Fatalf("%s: %s = %q, want %q", tc.cfg.Auth, tc.header, got, tc.want)
		}
	}

	if _, err := (&Config{Auth: "kerberos"}).Authenticator(); err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}

func TestConfig_NewClientSendsRequests(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Api-Key")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	for _, transport := range []string{TransportNetHTTP, TransportResty} {
		cfg := &Config{
			Endpoint:        srv.URL,
			Auth:            AuthHeader,
			HeaderName:      "X-Api-Key",
			Token:           "k-1",
			UserAgentPrefix: "tests/1.0",
			Transport:       transport,
			Timeout:         time.Second,
			RateLimit:       100,
			RateBurst:       1,
		}
		c, err := cfg.NewClient()
		if err != nil {
			t.Fatalf("%s: new client: %v", transport, err)
		}
		resp, err := c.Get(context.Background(), "/ping", nil)
		if err != nil {
			t.Fatalf("%s: get: %v", transport, err)
		}
		_ = resp.Body.Close()
		if gotAuth != "k-1" {
			t.Fatalf("%s: X-Api-Key = %q", transport, gotAuth)
		}
		if gotUA != c.UserAgent() || c.UserAgent() != "tests/1.0 connector-code-sample/1.0.0" {
			t.Fatalf("%s: User-Agent = %q", transport, gotUA)
		}
	}
}
