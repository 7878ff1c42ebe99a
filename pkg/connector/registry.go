package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/redbco/redb-connector/pkg/dbcapabilities"
)

// Registry maps database types to the adapters that open connections to them.
// Adapters register themselves from an init function.
type Registry struct {
	mu       sync.RWMutex
	adapters map[dbcapabilities.DatabaseID]DatabaseAdapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[dbcapabilities.DatabaseID]DatabaseAdapter)}
}

// Register adds a, replacing any adapter of the same type.
func (r *Registry) Register(a DatabaseAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Type()] = a
}

// Lookup resolves a connection type (canonical id, alias or url scheme) to
// its adapter.
func (r *Registry) Lookup(connectionType string) (DatabaseAdapter, error) {
	dbType, ok := dbcapabilities.ParseID(connectionType)
	if !ok {
		return nil, NewConfigurationError(dbcapabilities.DatabaseID(connectionType), "connectionType",
			fmt.Sprintf("unknown database type: %q", connectionType))
	}

	r.mu.RLock()
	a, ok := r.adapters[dbType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, dbType)
	}
	return a, nil
}

// Connect opens a connection with the adapter registered for
// config.ConnectionType. Adapter failures are returned as connector errors.
func (r *Registry) Connect(ctx context.Context, config ConnectionConfig) (Connection, error) {
	a, err := r.Lookup(config.ConnectionType)
	if err != nil {
		return nil, err
	}

	conn, err := a.Connect(ctx, config)
	if err != nil {
		return nil, WrapError(a.Type(), "connect", err)
	}
	return conn, nil
}

var globalRegistry = NewRegistry()

// Register adds an adapter to the global registry.
func Register(a DatabaseAdapter) {
	globalRegistry.Register(a)
}

// GlobalRegistry returns the registry adapters register themselves with.
func GlobalRegistry() *Registry {
	return globalRegistry
}
