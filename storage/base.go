package storage

import (
	"sync"

	"github.com/ashutosh-srijan/connector-code-sample/storage/decoder"
)

// Base carries the state every storage client shares: its plugin
// definition, its configuration and the response decoder factory.
// Concrete clients embed *Base and add Query and the CRUD operations.
//
// Base is safe for concurrent use.
type Base struct {
	def          Definition
	defaults     func() Configuration
	dependencies func() Dependencies
	decoders     *decoder.Factory

	mu     sync.RWMutex
	config Configuration
}

// BaseOption customises a Base.
type BaseOption func(*Base)

// WithDefaults declares the default configuration that supplied
// configuration is merged over.
func WithDefaults(fn func() Configuration) BaseOption {
	return func(b *Base) { b.defaults = fn }
}

// WithDependencies declares how the client computes its dependencies.
func WithDependencies(fn func() Dependencies) BaseOption {
	return func(b *Base) { b.dependencies = fn }
}

// WithDecoderFactory replaces the response decoder factory.
func WithDecoderFactory(f *decoder.Factory) BaseOption {
	return func(b *Base) {
		if f != nil {
			b.decoders = f
		}
	}
}

// NewBase returns a Base for def configured with cfg merged over the
// declared defaults.
func NewBase(def Definition, cfg Configuration, opts ...BaseOption) *Base {
	b := &Base{def: def, decoders: decoder.NewFactory()}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.config = MergeDeep(cfg, b.DefaultConfiguration())
	return b
}

// PluginID returns the ID the plugin is registered under.
func (b *Base) PluginID() string { return b.def.ID }

// Name returns the machine name from the plugin definition.
func (b *Base) Name() string { return b.def.Name }

// Label returns the human readable label from the plugin definition.
func (b *Base) Label() string { return b.def.Label }

// Description returns the plugin description, or "" when none is declared.
func (b *Base) Description() string { return b.def.Description }

// Definition returns the plugin definition.
func (b *Base) Definition() Definition { return b.def }

// Configuration returns a copy of the current configuration.
func (b *Base) Configuration() Configuration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return MergeDeep(b.config, nil)
}

// SetConfiguration replaces the configuration with cfg merged over the
// defaults; values in cfg win.
func (b *Base) SetConfiguration(cfg Configuration) error {
	merged := MergeDeep(cfg, b.DefaultConfiguration())
	b.mu.Lock()
	b.config = merged
	b.mu.Unlock()
	return nil
}

// DefaultConfiguration returns the declared defaults, empty unless
// WithDefaults was given.
func (b *Base) DefaultConfiguration() Configuration {
	if b.defaults == nil {
		return Configuration{}
	}
	if d := b.defaults(); d != nil {
		return d
	}
	return Configuration{}
}

// CalculateDependencies returns the client's dependencies, empty unless
// WithDependencies was given.
func (b *Base) CalculateDependencies() Dependencies {
	if b.dependencies == nil {
		return Dependencies{}
	}
	if d := b.dependencies(); d != nil {
		return d
	}
	return Dependencies{}
}

// ResponseDecoderFactory returns the factory used to decode API responses.
func (b *Base) ResponseDecoderFactory() *decoder.Factory { return b.decoders }
