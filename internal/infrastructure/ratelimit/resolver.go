package ratelimit

import (
	"sync"

	"github.com/turtacn/edugate/internal/domain/models"
)

// Resolver layers the global default policy, the per-context override and the
// per-call override, later non-zero fields winning.
type Resolver struct {
	mu       sync.RWMutex
	defaults models.Policy
	contexts map[string]models.Policy
}

// NewResolver creates a resolver. contexts may be nil.
func NewResolver(defaults models.Policy, contexts map[string]models.Policy) *Resolver {
	r := &Resolver{}
	r.Update(defaults, contexts)
	return r
}

// Resolve computes default ⊕ contexts[rlContext] ⊕ local. An empty or unknown
// context contributes nothing.
func (r *Resolver) Resolve(rlContext string, local models.Policy) models.Policy {
	r.mu.RLock()
	effective := r.defaults
	if override, ok := r.contexts[rlContext]; ok && rlContext != "" {
		effective = effective.Merge(override)
	}
	r.mu.RUnlock()

	return effective.Merge(local)
}

// Update swaps the policy tables, e.g. after a configuration reload.
func (r *Resolver) Update(defaults models.Policy, contexts map[string]models.Policy) {
	copied := make(map[string]models.Policy, len(contexts))
	for name, p := range contexts {
		copied[name] = p
	}

	r.mu.Lock()
	r.defaults = defaults
	r.contexts = copied
	r.mu.Unlock()
}

// HasContext reports whether an override exists for rlContext.
func (r *Resolver) HasContext(rlContext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.contexts[rlContext]
	return ok
}
