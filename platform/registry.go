package platform

import (
	"log/slog"
)

// Options configure a surface at open time.
type Options struct {
	Headless bool
	StateDir string
	Logger   *slog.Logger
}

// Factory opens a fresh browser context against one platform.
type Factory func(opts Options) (Surface, error)

// Registry maps platform identities to surface factories so the driver
// for a target platform is chosen by configuration, not compiled in.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register registers a surface factory under a platform identity.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Open creates a surface for the named platform.
func (r *Registry) Open(name string, opts Options) (Surface, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, Errorf(KindConfig, "registry.open", "unknown platform: %s", name)
	}
	return factory(opts)
}

// Known reports whether a platform identity has a registered driver.
func (r *Registry) Known(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// DefaultRegistry returns a registry with all built-in drivers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NotePlatform, func(opts Options) (Surface, error) {
		return NewNoteSurface(opts)
	})
	return r
}
