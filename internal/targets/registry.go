// Package targets holds the catalog of connected systems firefighter
// access can be requested against, with the risk tier assigned to each.
package targets

import (
	"sort"
	"sync"

	"firegate/internal/domain"
	dErrors "firegate/pkg/domain-errors"
)

// System is one connected target a credential can act on.
type System struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Tier        domain.Tier `json:"tier"`
}

// Registry resolves target system IDs to their catalog entries. The
// catalog is loaded at startup and read-only afterwards; the mutex only
// covers administrative reloads.
type Registry struct {
	mu      sync.RWMutex
	systems map[string]System
}

// NewRegistry builds a registry from the seed catalog.
func NewRegistry(systems []System) *Registry {
	r := &Registry{systems: make(map[string]System, len(systems))}
	for _, s := range systems {
		r.systems[s.ID] = s
	}
	return r
}

// Resolve returns the catalog entry for a target system ID.
func (r *Registry) Resolve(id string) (System, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.systems[id]
	if !ok {
		return System{}, dErrors.Newf(dErrors.CodeValidation, "unknown target system %q", id)
	}
	return s, nil
}

// List returns the catalog ordered by system ID.
func (r *Registry) List() []System {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]System, 0, len(r.systems))
	for _, s := range r.systems {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Replace swaps in a new catalog atomically.
func (r *Registry) Replace(systems []System) {
	next := make(map[string]System, len(systems))
	for _, s := range systems {
		next[s.ID] = s
	}
	r.mu.Lock()
	r.systems = next
	r.mu.Unlock()
}
