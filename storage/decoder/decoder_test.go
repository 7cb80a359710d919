package decoder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryLookup(t *testing.T) {
	f := NewFactory()
	for _, format := range []string{"json", "JSON", "application/json", "application/json; charset=utf-8", "application/hal+json", "yaml", "yml", "application/x-yaml"} {
		_, err := f.Get(format)
		assert.NoError(t, err, format)
	}

	_, err := f.Get("application/xml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestDecodeJSON(t *testing.T) {
	v, err := NewFactory().Decode("json", []byte(`{"items":[{"id":"1","n":2}]}`))
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	items, ok := m["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{"id": "1", "n": float64(2)}, items[0])
}

func TestDecodeYAML(t *testing.T) {
	v, err := NewFactory().Decode("text/yaml", []byte("items:\n  - id: \"1\"\n    title: first\n"))
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	items, ok := m["items"].([]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": "1", "title": "first"}, items[0])
}

func TestDecodeMalformed(t *testing.T) {
	_, err := NewFactory().Decode("json", []byte(`{"unterminated"`))
	assert.Error(t, err)
}

func TestRegisterCustomDecoder(t *testing.T) {
	f := NewFactory()
	f.Register("csv", DecoderFunc(func(data []byte) (any, error) { return string(data), nil }), "text/csv")

	v, err := f.Decode("text/csv; header=present", []byte("a,b"))
	require.NoError(t, err)
	assert.Equal(t, "a,b", v)
	assert.Contains(t, f.Formats(), "csv")
}
