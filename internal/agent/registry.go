package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// ErrUnknownBackend is returned when a requested backend is not registered.
var ErrUnknownBackend = errors.New("agent: unknown backend") //nolint:gochecknoglobals // sentinel error

// ClientFactory creates a Client for one chat session.
type ClientFactory func(ctx context.Context, opts Options) (Client, error)

// Registry manages client factories by backend name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ClientFactory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ClientFactory),
	}
}

// Register adds a client factory for a backend name.
func (r *Registry) Register(backend string, factory ClientFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
}

// Create instantiates a client for the given backend.
func (r *Registry) Create(ctx context.Context, backend string, opts Options) (Client, error) {
	r.mu.RLock()
	factory, ok := r.factories[backend]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("agent.Registry.Create(%q): %w", backend, ErrUnknownBackend)
	}

	client, err := factory(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("agent.Registry.Create(%q): %w", backend, err)
	}

	return client, nil
}

// Has reports whether a backend is registered.
func (r *Registry) Has(backend string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[backend]
	return ok
}

// Available returns registered backend names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Collect(func(yield func(string) bool) {
		for name := range r.factories {
			if !yield(name) {
				return
			}
		}
	})
	sort.Strings(names)

	return names
}
