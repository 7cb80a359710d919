package client

// This file defines the options that configure the Client during
// construction. Options can be supplied either as functional Option values
// or as a map keyed by the recognised option names.

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Recognised option keys for NewFromMap and OptionsFromMap.
const (
	OptionUserAgentPrefix   = "user_agent_prefix"
	OptionHTTPClientBuilder = "http_client_builder"
	OptionURIFactory        = "uri_factory"
	OptionRequestFactory    = "request_factory"
	OptionJournal           = "journal"
	OptionErrorFormatter    = "error_formatter"
	OptionRetryPluginConfig = "retry_plugin_config"
)

// Options is the capability set a Client is assembled from. Nil fields are
// filled with defaults by New.
type Options struct {
	UserAgentPrefix   string             `mapstructure:"user_agent_prefix" validate:"omitempty,printascii,max=256"`
	HTTPClientBuilder TransportBuilder   `mapstructure:"http_client_builder" validate:"-"`
	URIFactory        URIFactory         `mapstructure:"uri_factory" validate:"-"`
	RequestFactory    RequestFactory     `mapstructure:"request_factory" validate:"-"`
	Journal           Journal            `mapstructure:"journal" validate:"-"`
	ErrorFormatter    ErrorFormatter     `mapstructure:"error_formatter" validate:"-"`
	RetryPluginConfig *RetryPluginConfig `mapstructure:"retry_plugin_config"`
}

// RetryPluginConfig parameterises the retry plugin installed by the
// transport builder. A nil config disables retries entirely.
type RetryPluginConfig struct {
	// MaxRetries bounds the number of attempts after the first one.
	// Zero selects DefaultMaxRetries, so a configured retry plugin always
	// retries at least once. Leave RetryPluginConfig unset to disable
	// retries.
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0,lte=100"`
	InitialInterval time.Duration `mapstructure:"initial_interval" validate:"gte=0"`
	MaxInterval     time.Duration `mapstructure:"max_interval" validate:"gte=0"`
	Multiplier      float64       `mapstructure:"multiplier" validate:"omitempty,gte=1"`
	// MaxElapsedTime stops retrying once exceeded; zero means no limit.
	MaxElapsedTime time.Duration `mapstructure:"max_elapsed_time" validate:"gte=0"`
}

// DefaultMaxRetries is used when RetryPluginConfig.MaxRetries is zero.
const DefaultMaxRetries = 1

func (c RetryPluginConfig) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		exp.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		exp.MaxInterval = c.MaxInterval
	}
	if c.Multiplier > 0 {
		exp.Multiplier = c.Multiplier
	}
	exp.MaxElapsedTime = c.MaxElapsedTime
	exp.Reset()

	retries := c.MaxRetries
	if retries == 0 {
		retries = DefaultMaxRetries
	}
	return backoff.WithMaxRetries(exp, uint64(retries))
}

// Option configures the Options a Client is built from.
//
// Options are applied in order; a later option overrides an earlier one.
type Option func(*Options) error

// WithUserAgentPrefix prepends prefix to the User-Agent header.
func WithUserAgentPrefix(prefix string) Option {
	return func(o *Options) error {
		o.UserAgentPrefix = prefix
		return nil
	}
}

// WithHTTPClientBuilder replaces the default transport builder.
func WithHTTPClientBuilder(b TransportBuilder) Option {
	return func(o *Options) error {
		if b == nil {
			return &ConfigurationError{Option: OptionHTTPClientBuilder, Err: errors.New("builder is nil")}
		}
		o.HTTPClientBuilder = b
		return nil
	}
}

// WithURIFactory replaces the default URI factory.
func WithURIFactory(f URIFactory) Option {
	return func(o *Options) error {
		if f == nil {
			return &ConfigurationError{Option: OptionURIFactory, Err: errors.New("factory is nil")}
		}
		o.URIFactory = f
		return nil
	}
}

// WithRequestFactory replaces the default request factory.
func WithRequestFactory(f RequestFactory) Option {
	return func(o *Options) error {
		if f == nil {
			return &ConfigurationError{Option: OptionRequestFactory, Err: errors.New("factory is nil")}
		}
		o.RequestFactory = f
		return nil
	}
}

// WithJournal records every exchange in j.
func WithJournal(j Journal) Option {
	return func(o *Options) error {
		o.Journal = j
		return nil
	}
}

// WithErrorFormatter replaces the formatter used to render failed exchanges.
func WithErrorFormatter(f ErrorFormatter) Option {
	return func(o *Options) error {
		o.ErrorFormatter = f
		return nil
	}
}

// WithRetryPluginConfig enables the retry plugin with cfg.
func WithRetryPluginConfig(cfg RetryPluginConfig) Option {
	return func(o *Options) error {
		o.RetryPluginConfig = &cfg
		return nil
	}
}

// WithOptions copies every non-zero field of src over the current options.
func WithOptions(src Options) Option {
	return func(o *Options) error {
		if src.UserAgentPrefix != "" {
			o.UserAgentPrefix = src.UserAgentPrefix
		}
		if src.HTTPClientBuilder != nil {
			o.HTTPClientBuilder = src.HTTPClientBuilder
		}
		if src.URIFactory != nil {
			o.URIFactory = src.URIFactory
		}
		if src.RequestFactory != nil {
			o.RequestFactory = src.RequestFactory
		}
		if src.Journal != nil {
			o.Journal = src.Journal
		}
		if src.ErrorFormatter != nil {
			o.ErrorFormatter = src.ErrorFormatter
		}
		if src.RetryPluginConfig != nil {
			o.RetryPluginConfig = src.RetryPluginConfig
		}
		return nil
	}
}

// OptionsFromMap decodes a map keyed by the recognised option names.
// Unknown keys and values that do not satisfy the expected capability fail
// with a *ConfigurationError. Durations inside retry_plugin_config may be
// given as strings such as "250ms".
func OptionsFromMap(m map[string]any) (Options, error) {
	var o Options
	if len(m) == 0 {
		return o, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &o,
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return o, &ConfigurationError{Err: err}
	}
	if err := dec.Decode(m); err != nil {
		return o, &ConfigurationError{Option: offendingKey(m), Err: err}
	}
	return o, nil
}

// offendingKey names the first key whose value cannot be used, for error
// messages; it returns "" when the culprit cannot be pinpointed.
func offendingKey(m map[string]any) string {
	want := map[string]reflect.Type{
		OptionUserAgentPrefix:   reflect.TypeOf(""),
		OptionHTTPClientBuilder: reflect.TypeOf((*TransportBuilder)(nil)).Elem(),
		OptionURIFactory:        reflect.TypeOf((*URIFactory)(nil)).Elem(),
		OptionRequestFactory:    reflect.TypeOf((*RequestFactory)(nil)).Elem(),
		OptionJournal:           reflect.TypeOf((*Journal)(nil)).Elem(),
		OptionErrorFormatter:    reflect.TypeOf((*ErrorFormatter)(nil)).Elem(),
	}
	for k, v := range m {
		t, known := want[k]
		if k == OptionRetryPluginConfig {
			continue
		}
		if !known {
			return k
		}
		if v != nil && !reflect.TypeOf(v).AssignableTo(t) {
			return k
		}
	}
	if _, ok := m[OptionRetryPluginConfig]; ok {
		return OptionRetryPluginConfig
	}
	return ""
}

var optionsValidator = validator.New()

func (o *Options) validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		return &ConfigurationError{Err: fmt.Errorf("invalid options: %w", err)}
	}
	return nil
}
