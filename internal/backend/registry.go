package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Registry is a thread-safe name to item store.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Add stores item under name. Names are unique.
func (r *Registry[T]) Add(name string, item T) error {
	if name == "" {
		return ErrEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.items[name] = item
	return nil
}

// Get retrieves the item stored under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[name]
	return item, ok
}

// Remove deletes name. Missing names are ignored.
func (r *Registry[T]) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, name)
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered items.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Module is what a loader hands back: the symbol set a backend exposes.
type Module struct {
	Name    string
	Version string
	Dir     string
	Symbols map[string]any
}

// LoadContext tells a loader where it is being loaded from.
// Dir is empty for named fallback loads.
type LoadContext struct {
	Name       string
	Dir        string
	SearchPath []string
}

// Loader builds a backend module.
type Loader func(LoadContext) (*Module, error)

// Entry is a registered backend module.
type Entry struct {
	Name    string
	Version *semver.Version
	Load    Loader
}

var defaultRegistry = NewRegistry[Entry]()

// DefaultRegistry returns the process-wide registry that backend packages
// register into from init.
func DefaultRegistry() *Registry[Entry] {
	return defaultRegistry
}

// NewEntry validates version and builds an Entry.
func NewEntry(name, version string, load Loader) (Entry, error) {
	if name == "" {
		return Entry{}, ErrEmptyName
	}
	if load == nil {
		return Entry{}, fmt.Errorf("%w: %s has no loader", ErrNilModule, name)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidVersion, name, version, err)
	}
	return Entry{Name: name, Version: v, Load: load}, nil
}

// Register adds a module to the default registry.
// It panics on invalid input and is meant to be called from init.
func Register(name, version string, load Loader) {
	entry, err := NewEntry(name, version, load)
	if err != nil {
		panic(fmt.Sprintf("backend: register %s: %v", name, err))
	}
	if err := defaultRegistry.Add(name, entry); err != nil {
		panic(fmt.Sprintf("backend: register %s: %v", name, err))
	}
}
