package source

import (
	"fmt"
	"sort"
	"sync"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
)

// Registry maps providers to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Provider]domrepo.SourceAdapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.Provider]domrepo.SourceAdapter)}
}

// Register binds an adapter to a provider, replacing any previous one.
func (r *Registry) Register(p models.Provider, a domrepo.SourceAdapter) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[p] = a
	return r
}

// Adapter returns the adapter of p.
func (r *Registry) Adapter(p models.Provider) (domrepo.SourceAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %s", p)
	}
	return a, nil
}

// Providers lists registered providers in name order.
func (r *Registry) Providers() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
