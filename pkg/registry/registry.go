package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"friday/pkg/api"
	"friday/pkg/fallback"
)

var (
	ErrDuplicate = errors.New("capability already registered")
	ErrSealed    = errors.New("registry is sealed")
)

// Registry acts as the central inventory of capabilities and fallback
// families. It is populated at startup, sealed, and read-only afterwards.
type Registry struct {
	mu     sync.RWMutex
	order  []string                  // Registration order, used by List
	caps   map[string]api.Capability // Plain capabilities by name
	chains map[string]fallback.Chain // Fallback families by name
	sealed bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		caps:   make(map[string]api.Capability),
		chains: make(map[string]fallback.Chain),
	}
}

// Register adds a capability. A duplicate name, a missing handler, or
// registering after Seal is a programming error and panics.
func (r *Registry) Register(c api.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Name == "" || c.Handler == nil {
		panic(fmt.Sprintf("registry: capability %q needs a name and a handler", c.Name))
	}
	r.claim(c.Name)
	r.caps[c.Name] = c
}

// RegisterChain adds a fallback family under its own name.
func (r *Registry) RegisterChain(c fallback.Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.claim(c.Family)
	r.chains[c.Family] = c
}

func (r *Registry) claim(name string) {
	if r.sealed {
		panic(fmt.Errorf("registry: %w: cannot register %q", ErrSealed, name))
	}
	_, isCap := r.caps[name]
	_, isChain := r.chains[name]
	if isCap || isChain {
		panic(fmt.Errorf("registry: %w: %q", ErrDuplicate, name))
	}
	r.order = append(r.order, name)
}

// Seal ends the startup phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Get retrieves a capability by name.
func (r *Registry) Get(name string) (api.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	c.Params = api.CloneParams(c.Params)
	return c, ok
}

// Chain retrieves a fallback family by name.
func (r *Registry) Chain(name string) (fallback.Chain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chains[name]
	return c, ok
}

// List returns every entry in registration order.
func (r *Registry) List() []api.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]api.Descriptor, 0, len(r.order))
	for _, name := range r.order {
		if c, ok := r.caps[name]; ok {
			out = append(out, api.Descriptor{
				Name:        c.Name,
				Description: c.Description,
				Params:      api.CloneParams(c.Params),
				Effect:      c.Effect,
			})
			continue
		}
		out = append(out, r.chains[name].Descriptor())
	}
	return out
}

// Describe renders the catalog as one line per entry.
func (r *Registry) Describe() string {
	var sb strings.Builder
	for _, d := range r.List() {
		fmt.Fprintf(&sb, "- %s [%s]: %s", d.Signature(), d.Effect, d.Description)
		if len(d.Providers) > 0 {
			fmt.Fprintf(&sb, " (tries %s)", strings.Join(d.Providers, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
