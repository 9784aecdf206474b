package compose

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps entry point names to their factories.
// Go has no reflective constructor lookup, so applications compiled into
// the launcher register themselves, typically from an init function.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under name. Empty names, nil factories and
// duplicate names are rejected.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("entry point name is empty")
	}
	if factory == nil {
		return fmt.Errorf("entry point %q has a nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("entry point %q is already registered", name)
	}
	r.factories[name] = factory

	return nil
}

// Lookup returns the factory registered under name
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns every registered name in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Default is the registry used when a Composer is not given one
var Default = NewRegistry()

// Register adds a factory to the Default registry
func Register(name string, factory Factory) error {
	return Default.Register(name, factory)
}

// MustRegister is Register for init functions; it panics on error
func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}
