// Package rest is a storage client for remote REST APIs: entities are
// listed from a collection endpoint and loaded, saved and deleted on item
// endpoints, all through a connector API client.
package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/ashutosh-srijan/connector-code-sample/client"
	"github.com/ashutosh-srijan/connector-code-sample/storage"
)

// PluginID is the ID the REST client registers under.
const PluginID = "rest"

// Definition describes the REST storage client plugin.
var Definition = storage.Definition{
	ID:          PluginID,
	Name:        "rest",
	Label:       "REST",
	Description: "Entities served by a remote REST API.",
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// API is the part of client.Client the storage client uses.
type API interface {
	Get(ctx context.Context, uri string, headers http.Header) (*http.Response, error)
	Post(ctx context.Context, uri string, body any, headers http.Header) (*http.Response, error)
	Put(ctx context.Context, uri string, body any, headers http.Header) (*http.Response, error)
	Delete(ctx context.Context, uri string, body any, headers http.Header) (*http.Response, error)
}

// Client is the REST storage client.
type Client struct {
	*storage.Base
	api API

	mu  sync.RWMutex
	cfg Config
}

var _ storage.EntityStorageClient = (*Client)(nil)

// New returns a Client sending requests through api, configured with cfg
// merged over DefaultConfiguration.
func New(api API, cfg storage.Configuration, opts ...storage.BaseOption) (*Client, error) {
	if api == nil {
		return nil, errors.New("rest storage: api client is nil")
	}
	opts = append([]storage.BaseOption{storage.WithDefaults(DefaultConfiguration)}, opts...)
	c := &Client{Base: storage.NewBase(Definition, cfg, opts...), api: api}
	parsed, err := ParseConfig(c.Base.Configuration())
	if err != nil {
		return nil, err
	}
	if _, err := c.ResponseDecoderFactory().Get(parsed.Format); err != nil {
		return nil, fmt.Errorf("rest storage configuration: %w", err)
	}
	c.cfg = parsed
	return c, nil
}

// Register adds the REST client to reg; every instance shares api.
func Register(reg *storage.Registry, api API) error {
	return reg.Register(Definition, func(cfg storage.Configuration) (storage.EntityStorageClient, error) {
		return New(api, cfg)
	})
}

// SetConfiguration validates cfg merged over the defaults and applies it.
// An invalid configuration leaves the current one in place.
func (c *Client) SetConfiguration(cfg storage.Configuration) error {
	parsed, err := ParseConfig(storage.MergeDeep(cfg, c.DefaultConfiguration()))
	if err != nil {
		return err
	}
	if _, err := c.ResponseDecoderFactory().Get(parsed.Format); err != nil {
		return fmt.Errorf("rest storage configuration: %w", err)
	}
	if err := c.Base.SetConfiguration(cfg); err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg = parsed
	c.mu.Unlock()
	return nil
}

// Settings returns the parsed configuration.
func (c *Client) Settings() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Load fetches one entity. A 404 fails with storage.ErrNotFound.
func (c *Client) Load(ctx context.Context, id string) (storage.Entity, error) {
	cfg := c.Settings()
	resp, err := c.api.Get(ctx, c.itemURI(cfg, id), nil)
	if err != nil {
		return nil, notFound(err, id)
	}
	v, err := c.decode(cfg, resp)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", id, err)
	}
	e, err := toEntity(v)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", id, err)
	}
	return e, nil
}

// LoadMultiple fetches each of ids. IDs the API does not know are left out
// of the result; any other failure aborts.
func (c *Client) LoadMultiple(ctx context.Context, ids []string) (map[string]storage.Entity, error) {
	out := make(map[string]storage.Entity, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		e, err := c.Load(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = e
	}
	return out, nil
}

// Save creates e with a POST to the collection when it has no ID, and
// replaces it with a PUT to its item endpoint otherwise. The entity
// returned by the API is decoded when the response has a body; otherwise
// e is returned.
func (c *Client) Save(ctx context.Context, e storage.Entity) (storage.Entity, error) {
	cfg := c.Settings()
	id := entityID(e, cfg.IDField)

	var (
		resp *http.Response
		err  error
	)
	if id == "" {
		resp, err = c.api.Post(ctx, c.collectionURI(cfg, nil), map[string]any(e), nil)
	} else {
		resp, err = c.api.Put(ctx, c.itemURI(cfg, id), map[string]any(e), nil)
	}
	if err != nil {
		return nil, notFound(err, id)
	}

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return e, nil
	}
	v, err := c.ResponseDecoderFactory().Decode(cfg.Format, data)
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	saved, err := toEntity(v)
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return saved, nil
}

// Delete removes one entity. A 404 fails with storage.ErrNotFound.
func (c *Client) Delete(ctx context.Context, id string) error {
	cfg := c.Settings()
	resp, err := c.api.Delete(ctx, c.itemURI(cfg, id), nil, nil)
	if err != nil {
		return notFound(err, id)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Query lists the entities matching params.
func (c *Client) Query(ctx context.Context, params storage.Parameters) ([]storage.Entity, error) {
	cfg := c.Settings()
	doc, err := c.fetchList(ctx, cfg, params)
	if err != nil {
		return nil, err
	}
	list := doc
	if cfg.ListPath != "" {
		res := gjson.GetBytes(doc, cfg.ListPath)
		if !res.Exists() {
			return []storage.Entity{}, nil
		}
		list = []byte(res.Raw)
	}
	var entities []storage.Entity
	if err := json.Unmarshal(list, &entities); err != nil {
		return nil, fmt.Errorf("query: records are not a list of objects: %w", err)
	}
	if entities == nil {
		entities = []storage.Entity{}
	}
	return entities, nil
}

// Count returns the total reported at count_path when configured, and the
// length of the query result otherwise.
func (c *Client) Count(ctx context.Context, params storage.Parameters) (int, error) {
	cfg := c.Settings()
	if cfg.CountPath == "" {
		return storage.CountQuery(ctx, c, params)
	}
	doc, err := c.fetchList(ctx, cfg, params)
	if err != nil {
		return 0, err
	}
	res := gjson.GetBytes(doc, cfg.CountPath)
	if !res.Exists() {
		return 0, fmt.Errorf("count: no value at %q", cfg.CountPath)
	}
	return int(res.Int()), nil
}

// fetchList runs the collection request and returns its body as JSON, so
// gjson paths apply whatever the response format.
func (c *Client) fetchList(ctx context.Context, cfg Config, params storage.Parameters) ([]byte, error) {
	resp, err := c.api.Get(ctx, c.collectionURI(cfg, params), nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	v, err := c.decode(cfg, resp)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return doc, nil
}

func (c *Client) decode(cfg Config, resp *http.Response) (any, error) {
	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	return c.ResponseDecoderFactory().Decode(cfg.Format, data)
}

func (c *Client) collectionURI(cfg Config, params storage.Parameters) string {
	return withQuery(cfg.Endpoint, cfg.Parameters, params)
}

func (c *Client) itemURI(cfg Config, id string) string {
	return withQuery(strings.ReplaceAll(cfg.SinglePath, "{id}", url.PathEscape(id)), cfg.Parameters, nil)
}

// withQuery appends the fixed parameters and params to path. Values in
// params win over fixed ones.
func withQuery(path string, fixed map[string]string, params storage.Parameters) string {
	q := url.Values{}
	for k, v := range fixed {
		q.Set(k, v)
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Del(k)
		switch v := params[k].(type) {
		case nil:
		case []string:
			for _, s := range v {
				q.Add(k, s)
			}
		case []any:
			for _, s := range v {
				q.Add(k, fmt.Sprint(s))
			}
		default:
			q.Set(k, fmt.Sprint(v))
		}
	}
	if len(q) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func toEntity(v any) (storage.Entity, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response is %T, not an object", v)
	}
	return storage.Entity(m), nil
}

func entityID(e storage.Entity, field string) string {
	v, ok := e[field]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func notFound(err error, id string) error {
	if client.StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%q: %w: %w", id, storage.ErrNotFound, err)
	}
	return err
}
