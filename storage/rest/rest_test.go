package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashutosh-srijan/connector-code-sample/client"
	"github.com/ashutosh-srijan/connector-code-sample/client/auth"
	"github.com/ashutosh-srijan/connector-code-sample/storage"
)

// fakeAPI serves an in-memory collection under /articles.
type fakeAPI struct {
	mu       sync.Mutex
	items    map[string]string
	nextID   int
	requests []string
	bodies   []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		items: map[string]string{
			"1": `{"id":"1","title":"First"}`,
			"2": `{"id":"2","title":"Second"}`,
		},
		nextID: 3,
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := io.ReadAll(r.Body)
	f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
	f.bodies = append(f.bodies, string(data))
	w.Header().Set("Content-Type", "application/json")

	id := strings.TrimPrefix(r.URL.Path, "/api/articles/")
	switch {
	case r.URL.Path == "/api/articles" && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"data":[` + f.items["1"] + `,` + f.items["2"] + `],"meta":{"total":42}}`))
	case r.URL.Path == "/api/articles" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"3","title":"Third"}`))
	case r.Method == http.MethodGet:
		body, ok := f.items[id]
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	case r.Method == http.MethodPut:
		f.items[id] = string(data)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete:
		if _, ok := f.items[id]; !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		delete(f.items, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unexpected", http.StatusMethodNotAllowed)
	}
}

func (f *fakeAPI) lastRequest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newStorage(t *testing.T, cfg storage.Configuration) (*Client, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := client.New(auth.Bearer("k"), srv.URL+"/api")
	require.NoError(t, err)

	s, err := New(c, cfg)
	require.NoError(t, err)
	return s, api
}

func baseConfig() storage.Configuration {
	return storage.Configuration{
		"endpoint":   "/articles",
		"list_path":  "data",
		"parameters": map[string]any{"api_key": "abc"},
	}
}

func TestConfigDefaults(t *testing.T) {
	s, _ := newStorage(t, baseConfig())
	cfg := s.Settings()
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "id", cfg.IDField)
	assert.Equal(t, "/articles/{id}", cfg.SinglePath)
	assert.Equal(t, map[string]string{"api_key": "abc"}, cfg.Parameters)

	assert.Equal(t, PluginID, s.PluginID())
	assert.Equal(t, "REST", s.Label())
	assert.Equal(t, "json", s.Configuration()["format"])
}

func TestConfigValidation(t *testing.T) {
	c, err := client.New(auth.Anonymous(), "")
	require.NoError(t, err)

	_, err = New(c, storage.Configuration{})
	assert.Error(t, err, "endpoint is required")

	_, err = New(c, storage.Configuration{"endpoint": "/x", "bogus": true})
	assert.Error(t, err, "unknown keys are rejected")

	_, err = New(c, storage.Configuration{"endpoint": "/x", "format": "xml"})
	assert.Error(t, err, "format needs a decoder")

	_, err = New(nil, baseConfig())
	assert.Error(t, err)
}

func TestSetConfigurationKeepsValidState(t *testing.T) {
	s, _ := newStorage(t, baseConfig())

	require.Error(t, s.SetConfiguration(storage.Configuration{"format": "xml", "endpoint": "/x"}))
	assert.Equal(t, "/articles", s.Settings().Endpoint)

	require.NoError(t, s.SetConfiguration(storage.Configuration{"endpoint": "/posts", "id_field": "uuid"}))
	assert.Equal(t, "/posts", s.Settings().Endpoint)
	assert.Equal(t, "uuid", s.Settings().IDField)
	assert.Equal(t, "/posts", s.Configuration()["endpoint"])
}

func TestLoad(t *testing.T) {
	s, api := newStorage(t, baseConfig())

	e, err := s.Load(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, storage.Entity{"id": "1", "title": "First"}, e)
	assert.Equal(t, "GET /api/articles/1?api_key=abc", api.lastRequest())

	_, err = s.Load(context.Background(), "404")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, client.StatusCode(err))
}

func TestLoadMultiple(t *testing.T) {
	s, _ := newStorage(t, baseConfig())

	got, err := s.LoadMultiple(context.Background(), []string{"1", "missing", "2", "1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Second", got["2"]["title"])
}

func TestQuery(t *testing.T) {
	s, api := newStorage(t, baseConfig())

	got, err := s.Query(context.Background(), storage.Parameters{"page": 2, "tags": []string{"a", "b"}, "api_key": "override"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "First", got[0]["title"])
	assert.Equal(t, "GET /api/articles?api_key=override&page=2&tags=a&tags=b", api.lastRequest())
}

func TestQueryMissingListPath(t *testing.T) {
	cfg := baseConfig()
	cfg["list_path"] = "results"
	s, _ := newStorage(t, cfg)

	got, err := s.Query(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCount(t *testing.T) {
	s, _ := newStorage(t, baseConfig())
	n, err := s.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cfg := baseConfig()
	cfg["count_path"] = "meta.total"
	s, _ = newStorage(t, cfg)
	n, err = s.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	cfg["count_path"] = "meta.missing"
	s, _ = newStorage(t, cfg)
	_, err = s.Count(context.Background(), nil)
	assert.Error(t, err)
}

func TestSaveCreatesAndUpdates(t *testing.T) {
	s, api := newStorage(t, baseConfig())

	created, err := s.Save(context.Background(), storage.Entity{"title": "Third"})
	require.NoError(t, err)
	assert.Equal(t, "3", created["id"])
	assert.Equal(t, "POST /api/articles?api_key=abc", api.lastRequest())
	assert.JSONEq(t, `{"title":"Third"}`, api.bodies[len(api.bodies)-1])

	e := storage.Entity{"id": "1", "title": "Renamed"}
	updated, err := s.Save(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, e, updated)
	assert.Equal(t, "PUT /api/articles/1?api_key=abc", api.lastRequest())

	got, err := s.Load(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got["title"])
}

func TestDelete(t *testing.T) {
	s, api := newStorage(t, baseConfig())

	require.NoError(t, s.Delete(context.Background(), "2"))
	assert.Equal(t, "DELETE /api/articles/2?api_key=abc", api.lastRequest())

	err := s.Delete(context.Background(), "2")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestYAMLFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte("items:\n  - id: a\n    title: Alpha\n  - id: b\n    title: Beta\ntotal: 2\n"))
	}))
	defer srv.Close()

	c, err := client.New(auth.Anonymous(), srv.URL)
	require.NoError(t, err)
	s, err := New(c, storage.Configuration{"endpoint": "/things", "format": "yaml", "list_path": "items", "count_path": "total"})
	require.NoError(t, err)

	got, err := s.Query(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Beta", got[1]["title"])

	n, err := s.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRegister(t *testing.T) {
	c, err := client.New(auth.Anonymous(), "")
	require.NoError(t, err)

	reg := storage.NewRegistry()
	require.NoError(t, Register(reg, c))

	s, err := reg.Create(PluginID, storage.Configuration{"endpoint": "/items"})
	require.NoError(t, err)
	assert.Equal(t, "rest", s.PluginID())

	_, err = reg.Create(PluginID, storage.Configuration{})
	assert.Error(t, err)
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "/x", withQuery("/x", nil, nil))
	assert.Equal(t, "/x?a=1&b=true", withQuery("/x", map[string]string{"a": "1"}, storage.Parameters{"b": true, "skip": nil}))
	assert.Equal(t, "/x?y=1&a=2", withQuery("/x?y=1", nil, storage.Parameters{"a": 2}))
}
