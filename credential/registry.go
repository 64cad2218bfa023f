package credential

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory creates a Store from backend options.
type Factory func(opts map[string]any) (Store, error)

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a backend. Names are unique.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errors.New("credential: invalid backend registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("credential: backend %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the named backend.
func (r *Registry) Create(name string, opts map[string]any) (Store, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return factory(opts)
}

// List returns registered backend names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in backends "memory" and "sqlite".
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("memory", newMemoryBackend)
	_ = r.Register("sqlite", newSQLiteBackend)
	return r
}

func newMemoryBackend(opts map[string]any) (Store, error) {
	seed := make(map[string]string)
	if raw, ok := opts["seed"].(map[string]string); ok {
		for k, v := range raw {
			seed[k] = v
		}
	}
	return NewMemoryStore(seed), nil
}

func newSQLiteBackend(opts map[string]any) (Store, error) {
	path, _ := opts["path"].(string)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("credential: sqlite backend requires \"path\"")
	}
	expanded, err := ExpandEnvStrict(path)
	if err != nil {
		return nil, err
	}
	return OpenSQLite(expanded)
}
