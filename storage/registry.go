package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory creates a storage client from its configuration.
type Factory func(cfg Configuration) (EntityStorageClient, error)

type registration struct {
	def     Definition
	factory Factory
}

// Registry maps plugin IDs to storage client factories.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]registration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]registration)}
}

// Register adds a plugin. IDs are unique; a second registration fails with
// ErrDuplicatePlugin.
func (r *Registry) Register(def Definition, f Factory) error {
	if def.ID == "" {
		return errors.New("register storage client: empty plugin id")
	}
	if f == nil {
		return fmt.Errorf("register storage client %q: nil factory", def.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[def.ID]; ok {
		return fmt.Errorf("register storage client %q: %w", def.ID, ErrDuplicatePlugin)
	}
	r.plugins[def.ID] = registration{def: def, factory: f}
	return nil
}

// Create instantiates the plugin registered under id.
func (r *Registry) Create(id string, cfg Configuration) (EntityStorageClient, error) {
	r.mu.RLock()
	reg, ok := r.plugins[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("create storage client %q: %w", id, ErrUnknownPlugin)
	}
	c, err := reg.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client %q: %w", id, err)
	}
	return c, nil
}

// Definition returns the definition registered under id.
func (r *Registry) Definition(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.plugins[id]
	return reg.def, ok
}

// Definitions lists every registered plugin, sorted by ID.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defs := make([]Definition, 0, len(r.plugins))
	for _, reg := range r.plugins {
		defs = append(defs, reg.def)
	}
	r.mu.RUnlock()
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}
