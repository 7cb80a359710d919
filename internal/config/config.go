// Package config loads API client settings from CONNECTOR_* environment
// variables.
package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ashutosh-srijan/connector-code-sample/client"
	"github.com/ashutosh-srijan/connector-code-sample/client/auth"
	"github.com/ashutosh-srijan/connector-code-sample/client/restytransport"
)

// Authentication schemes accepted in CONNECTOR_AUTH.
const (
	AuthBearer    = "bearer"
	AuthBasic     = "basic"
	AuthHeader    = "header"
	AuthAnonymous = "anonymous"
	AuthDevMode   = "devmode"
)

// Transports accepted in CONNECTOR_TRANSPORT.
const (
	TransportNetHTTP = "net/http"
	TransportResty   = "resty"
)

// Config holds the settings a connector client is built from.
// Environment variables are parsed from the CONNECTOR_ prefix.
type Config struct {
	Endpoint string `envconfig:"ENDPOINT" default:"https://api.example.com" validate:"required,url"`

	Auth       string `envconfig:"AUTH" default:"bearer" validate:"oneof=bearer basic header anonymous devmode"`
	Token      string `envconfig:"TOKEN" validate:"required_if=Auth bearer,required_if=Auth header"`
	Username   string `envconfig:"USERNAME" validate:"required_if=Auth basic"`
	Password   string `envconfig:"PASSWORD"`
	HeaderName string `envconfig:"HEADER_NAME" default:"X-Api-Key"`

	UserAgentPrefix string        `envconfig:"USER_AGENT_PREFIX" validate:"omitempty,printascii,max=256"`
	Transport       string        `envconfig:"TRANSPORT" default:"net/http" validate:"oneof=net/http resty"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"30s" validate:"gt=0"`

	// RetryMaxRetries of zero leaves the retry plugin off.
	RetryMaxRetries      int           `envconfig:"RETRY_MAX_RETRIES" default:"0" validate:"gte=0,lte=100"`
	RetryInitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"500ms" validate:"gte=0"`

	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"0" validate:"gte=0"`
	RateBurst int     `envconfig:"RATE_BURST" default:"1" validate:"gte=1"`

	Debug bool `envconfig:"DEBUG" default:"false"`
}

var validate = validator.New()

// Load parses the environment without validating, for callers that
// override fields before calling Validate.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CONNECTOR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	return &cfg, nil
}

// New parses the environment and validates the result.
func New() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Str("auth", cfg.Auth).
		Str("token_present", func() string {
			if cfg.Token != "" {
				return "true"
			}
			return "false"
		}()).
		Str("transport", cfg.Transport).
		Dur("timeout", cfg.Timeout).
		Int("retry_max_retries", cfg.RetryMaxRetries).
		Float64("rate_limit", cfg.RateLimit).
		Bool("debug", cfg.Debug).
		Msg("Configuration loaded")

	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Authenticator returns the authentication selected by Auth.
func (c *Config) Authenticator() (client.Authenticator, error) {
	switch c.Auth {
	case AuthBearer, "":
		return auth.Bearer(c.Token), nil
	case AuthBasic:
		return auth.Basic(c.Username, c.Password), nil
	case AuthHeader:
		return auth.Header(c.HeaderName, c.Token), nil
	case AuthAnonymous:
		return auth.Anonymous(), nil
	case AuthDevMode:
		return auth.DevMode(), nil
	default:
		return nil, fmt.Errorf("unsupported auth scheme %q", c.Auth)
	}
}

// ClientOptions translates the settings into client options.
func (c *Config) ClientOptions() []client.Option {
	opts := []client.Option{client.WithHTTPClientBuilder(c.builder())}
	if c.UserAgentPrefix != "" {
		opts = append(opts, client.WithUserAgentPrefix(c.UserAgentPrefix))
	}
	if c.RetryMaxRetries > 0 {
		opts = append(opts, client.WithRetryPluginConfig(client.RetryPluginConfig{
			MaxRetries:      c.RetryMaxRetries,
			InitialInterval: c.RetryInitialInterval,
		}))
	}
	return opts
}

// NewClient builds a client from the settings.
func (c *Config) NewClient() (*client.Client, error) {
	a, err := c.Authenticator()
	if err != nil {
		return nil, err
	}
	return client.New(a, c.Endpoint, c.ClientOptions()...)
}

func (c *Config) builder() client.TransportBuilder {
	var plugins []client.Plugin
	if c.RateLimit > 0 {
		plugins = append(plugins, client.RateLimitPlugin(rate.NewLimiter(rate.Limit(c.RateLimit), c.RateBurst)))
	}
	if c.Transport == TransportResty {
		return restytransport.New(resty.New().SetTimeout(c.Timeout)).AddPlugin(plugins...)
	}
	return client.NewBuilder(&http.Client{Timeout: c.Timeout}).AddPlugin(plugins...)
}
