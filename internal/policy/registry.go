package policy

import (
	"fmt"
	"sort"
)

// DefaultPolicyID is the policy used when the configuration names none.
const DefaultPolicyID = "instagram_reels"

// Registry holds all app gating policies.
type Registry struct {
	policies map[string]AppPolicy
}

// NewRegistry creates a registry with all default policies.
func NewRegistry() *Registry {
	r := &Registry{
		policies: make(map[string]AppPolicy),
	}

	r.Register(NewInstagramReelsPolicy())

	return r
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...AppPolicy) *Registry {
	r := &Registry{
		policies: make(map[string]AppPolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy to the registry.
func (r *Registry) Register(p AppPolicy) {
	r.policies[p.ID()] = p
}

// Get returns a policy by ID.
func (r *Registry) Get(id string) (AppPolicy, error) {
	p, ok := r.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", id)
	}
	return p, nil
}

// ByPackage returns the policy monitoring the given package.
func (r *Registry) ByPackage(pkg string) (AppPolicy, bool) {
	for _, p := range r.policies {
		if p.PackageName() == pkg {
			return p, true
		}
	}
	return nil, false
}

// GetAll returns all registered policies ordered by ID.
func (r *Registry) GetAll() []AppPolicy {
	result := make([]AppPolicy, 0, len(r.policies))
	for _, id := range r.List() {
		result = append(result, r.policies[id])
	}
	return result
}

// List returns all policy IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
