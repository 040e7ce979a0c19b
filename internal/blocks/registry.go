package blocks

import (
	"sort"
	"strings"
	"sync"
)

// Registry collects block definitions declared in code so they can be
// registered when a service starts.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]RegisterDefinitionInput
}

// NewRegistry constructs an empty definition registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]RegisterDefinitionInput)}
}

// Register records a definition. A later call with the same name wins.
func (r *Registry) Register(input RegisterDefinitionInput) {
	if r == nil {
		return
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return
	}
	input.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]RegisterDefinitionInput)
	}
	r.entries[name] = input
}

// List returns the registered definitions sorted by name.
func (r *Registry) List() []RegisterDefinitionInput {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RegisterDefinitionInput, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
