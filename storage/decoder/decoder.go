// Package decoder turns API response bodies into generic values, selected
// by format name or content type.
package decoder

import (
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for formats no decoder is registered for.
var ErrUnsupportedFormat = errors.New("unsupported response format")

// Format names of the built-in decoders.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decoder decodes one response body. Objects decode to map[string]any,
// arrays to []any.
type Decoder interface {
	Decode(data []byte) (any, error)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func(data []byte) (any, error)

// Decode calls f(data).
func (f DecoderFunc) Decode(data []byte) (any, error) { return f(data) }

// JSON decodes JSON documents.
var JSON Decoder = DecoderFunc(func(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
})

// YAML decodes YAML documents.
var YAML Decoder = DecoderFunc(func(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return v, nil
})

// Factory looks decoders up by format. Lookups accept a format name
// ("json"), a content type ("application/json; charset=utf-8") or a
// structured syntax suffix ("application/hal+json").
type Factory struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewFactory returns a Factory with the JSON and YAML decoders registered.
func NewFactory() *Factory {
	f := &Factory{decoders: make(map[string]Decoder)}
	f.Register(FormatJSON, JSON, "application/json", "text/json")
	f.Register(FormatYAML, YAML, "yml", "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml")
	return f
}

// Register adds d under format and every alias, replacing earlier entries.
func (f *Factory) Register(format string, d Decoder, aliases ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range append([]string{format}, aliases...) {
		f.decoders[strings.ToLower(name)] = d
	}
}

// Get returns the decoder for format.
func (f *Factory) Get(format string) (Decoder, error) {
	key := normalise(format)

	f.mu.RLock()
	defer f.mu.RUnlock()
	if d, ok := f.decoders[key]; ok {
		return d, nil
	}
	if i := strings.LastIndex(key, "+"); i >= 0 {
		if d, ok := f.decoders[key[i+1:]]; ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Decode decodes data with the decoder registered for format.
func (f *Factory) Decode(format string, data []byte) (any, error) {
	d, err := f.Get(format)
	if err != nil {
		return nil, err
	}
	return d.Decode(data)
}

// Formats lists every registered name and alias, sorted.
func (f *Factory) Formats() []string {
	f.mu.RLock()
	out := make([]string, 0, len(f.decoders))
	for k := range f.decoders {
		out = append(out, k)
	}
	f.mu.RUnlock()
	sort.Strings(out)
	return out
}

func normalise(format string) string {
	format = strings.TrimSpace(strings.ToLower(format))
	if strings.Contains(format, "/") {
		if mt, _, err := mime.ParseMediaType(format); err == nil {
			return mt
		}
	}
	return format
}
