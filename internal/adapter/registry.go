package adapter

import (
	"fmt"
	"sync"

	"github.com/inboxd/inboxd/internal/model"
)

// Registry maps a lowercase platform name to its Adapter. Platforms whose
// required configuration is missing are registered disabled so the
// binary always starts.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.Platform]Adapter
}

// NewRegistry builds an empty Registry; callers populate it via Register,
// typically using Config to decide which platforms get a live adapter
// versus a DisabledAdapter.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.Platform]Adapter)}
}

// Register adds or replaces the adapter for a platform.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Resolve returns the adapter registered for platform.
func (r *Registry) Resolve(platform model.Platform) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("adapter: platform %q is not registered", platform)
	}
	return a, nil
}

// Platforms lists every registered platform name, in no particular order.
func (r *Registry) Platforms() []model.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]model.Platform, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
