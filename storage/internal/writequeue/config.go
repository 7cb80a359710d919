package writequeue

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config tunes a Queue. Zero values select the defaults noted per field.
type Config struct {
	Shards         int           `envconfig:"SHARDS" default:"4"`
	QueueSize      int           `envconfig:"QUEUE_SIZE" default:"128"`
	EnqueueTimeout time.Duration `envconfig:"ENQUEUE_TIMEOUT" default:"100ms"`
	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS" default:"8"`
	BaseBackoff    time.Duration `envconfig:"BASE_BACKOFF" default:"100ms"`
	MaxInterval    time.Duration `envconfig:"MAX_INTERVAL" default:"20s"`

	// Permanent reports errors that must not be retried. Context errors
	// are always permanent.
	Permanent func(error) bool `ignored:"true"`

	// ErrorHandler receives the final error of every job that failed.
	ErrorHandler func(key string, err error) `ignored:"true"`
}

// LoadConfig reads CONNECTOR_WRITEQUEUE_* environment variables.
func LoadConfig() (Config, error) {
	var c Config
	if err := envconfig.Process("CONNECTOR_WRITEQUEUE", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) withDefaults() Config {
	if c.Shards <= 0 {
		c.Shards = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 100 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 100 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 20 * time.Second
	}
	return c
}
