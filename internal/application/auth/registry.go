package auth

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// Registry holds the rememberers the host makes available, by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Rememberer
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Rememberer{}}
}

// Register adds or replaces an adapter. Empty names and nil adapters are ignored.
func (r *Registry) Register(name string, rem Rememberer) {
	name = strings.TrimSpace(name)
	if name == "" || rem == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = rem
}

func (r *Registry) Lookup(name string) (Rememberer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rem, ok := r.adapters[strings.TrimSpace(name)]
	return rem, ok
}

// Names returns the registered adapter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Resolve is Lookup with a configuration error for unknown names.
func (r *Registry) Resolve(name string) (Rememberer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrConfiguration("rememberer_name", "rememberer name is required")
	}
	rem, ok := r.Lookup(name)
	if !ok {
		return nil, domain.ErrConfiguration("rememberer_name",
			fmt.Sprintf("no rememberer named %q (available: %s)", name, strings.Join(r.Names(), ", ")))
	}
	return rem, nil
}
