// Package source contains the adapters that fetch research signals from
// external providers, and the rate limit, retry and instrumentation
// decorators wrapped around them.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// Adapter fetches one kind of signal from one provider.
type Adapter interface {
	// Name identifies the provider in logs, metrics and errors.
	Name() string
	// Category is the signal the adapter produces.
	Category() types.Category
	// Fetch performs a single attempt, or several when decorated with WithRetry.
	Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error)
}

// Registry maps each category to its decorated adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.Category]Adapter
	inFlight map[types.Category]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[types.Category]Adapter),
		inFlight: make(map[types.Category]int),
	}
}

// Register binds an adapter to its category with a maximum number of
// concurrent fetches. maxInFlight <= 0 means 1.
func (r *Registry) Register(a Adapter, maxInFlight int) error {
	if a == nil {
		return fmt.Errorf("register adapter: nil adapter")
	}
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.adapters[a.Category()]; ok {
		return fmt.Errorf("register adapter %s: category %s already served by %s", a.Name(), a.Category(), existing.Name())
	}
	r.adapters[a.Category()] = a
	r.inFlight[a.Category()] = maxInFlight
	return nil
}

// Get returns the adapter serving category.
func (r *Registry) Get(c types.Category) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNoAdapter, c)
	}
	return a, nil
}

// MaxInFlight returns the concurrency bound of category.
func (r *Registry) MaxInFlight(c types.Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inFlight[c]
}

// Categories lists the registered categories in sorted order.
func (r *Registry) Categories() []types.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Category, 0, len(r.adapters))
	for c := range r.adapters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
