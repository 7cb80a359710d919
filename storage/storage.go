// Package storage is the base for external entity storage clients: plugin
// metadata, configuration merged over declared defaults, and the count
// query shared by every client that can list entities.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports that the remote API has no entity with the
	// requested ID.
	ErrNotFound = errors.New("entity not found")

	// ErrUnknownPlugin reports a plugin ID missing from a Registry.
	ErrUnknownPlugin = errors.New("unknown storage client plugin")

	// ErrDuplicatePlugin reports a second registration under one plugin ID.
	ErrDuplicatePlugin = errors.New("storage client plugin already registered")
)

// Configuration is the free-form settings mapping of a storage client.
type Configuration map[string]any

// Parameters filter and page a query. Values are strings, numbers, booleans
// or slices of those.
type Parameters map[string]any

// Entity is one external record, keyed by field name.
type Entity map[string]any

// Dependencies lists what a configured client depends on, keyed by
// dependency type (for example "module" or "config").
type Dependencies map[string][]string

// Definition is the metadata a storage client plugin is declared with.
type Definition struct {
	ID          string
	Name        string
	Label       string
	Description string
}

// Queryable is implemented by every storage client that can list entities.
type Queryable interface {
	Query(ctx context.Context, params Parameters) ([]Entity, error)
}

// CountQuery counts the entities matching params by running the query and
// measuring its result. Clients whose API reports totals should prefer that.
func CountQuery(ctx context.Context, q Queryable, params Parameters) (int, error) {
	entities, err := q.Query(ctx, params)
	if err != nil {
		return 0, err
	}
	return len(entities), nil
}

// EntityStorageClient is the contract a storage client plugin offers.
type EntityStorageClient interface {
	Queryable

	PluginID() string
	Name() string
	Label() string
	Description() string
	Configuration() Configuration
	SetConfiguration(cfg Configuration) error
	DefaultConfiguration() Configuration
	CalculateDependencies() Dependencies

	Load(ctx context.Context, id string) (Entity, error)
	LoadMultiple(ctx context.Context, ids []string) (map[string]Entity, error)
	Save(ctx context.Context, e Entity) (Entity, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, params Parameters) (int, error)
}
