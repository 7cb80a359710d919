package rest

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/ashutosh-srijan/connector-code-sample/storage"
)

// Config is the typed form of a REST storage client's configuration.
type Config struct {
	// Endpoint is the collection path, relative to the API client's
	// endpoint or absolute.
	Endpoint string `mapstructure:"endpoint" validate:"required"`
	// SinglePath locates one entity; "{id}" is replaced by the escaped ID.
	// Defaults to Endpoint + "/{id}".
	SinglePath string `mapstructure:"single_path"`
	// Format names the response decoder ("json", "yaml", or a content type).
	Format string `mapstructure:"format" validate:"required"`
	// ListPath is a gjson path to the record list in a query response;
	// empty when the response body is the list itself.
	ListPath string `mapstructure:"list_path"`
	// CountPath is a gjson path to a total count in a query response.
	CountPath string `mapstructure:"count_path"`
	// IDField names the entity field holding its ID.
	IDField string `mapstructure:"id_field" validate:"required"`
	// Parameters are sent with every request.
	Parameters map[string]string `mapstructure:"parameters"`
}

var configValidator = validator.New()

// DefaultConfiguration is the configuration supplied values are merged over.
func DefaultConfiguration() storage.Configuration {
	return storage.Configuration{
		"format":     "json",
		"id_field":   "id",
		"parameters": map[string]any{},
	}
}

// ParseConfig decodes and validates cfg. Unknown keys are rejected.
func ParseConfig(cfg storage.Configuration) (Config, error) {
	var c Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(map[string]any(cfg)); err != nil {
		return Config{}, fmt.Errorf("rest storage configuration: %w", err)
	}
	if err := configValidator.Struct(c); err != nil {
		return Config{}, fmt.Errorf("rest storage configuration: %w", err)
	}
	if c.SinglePath == "" {
		c.SinglePath = strings.TrimRight(c.Endpoint, "/") + "/{id}"
	}
	return c, nil
}
