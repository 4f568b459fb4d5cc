package loaders

import (
	"fmt"
	"sort"

	"github.com/systmms/secretbox/pkg/loader"
)

// Factory creates a loader instance.
type Factory func(opts ...Option) loader.Loader

// Registry manages loader creation by type name.
type Registry struct {
	factories map[string]Factory
	opts      []Option
}

// NewRegistry creates a registry with every built-in loader. opts are
// passed to each loader it creates.
func NewRegistry(opts ...Option) *Registry {
	registry := &Registry{
		factories: make(map[string]Factory),
		opts:      opts,
	}

	// Register built-in loaders
	registry.RegisterFactory(EnvironName, func(opts ...Option) loader.Loader { return NewEnvironLoader(opts...) })
	registry.RegisterFactory(EnvFileName, func(opts ...Option) loader.Loader { return NewEnvFileLoader(opts...) })
	registry.RegisterFactory(AWSSecretName, func(opts ...Option) loader.Loader { return NewAWSSecretLoader(opts...) })
	registry.RegisterFactory(AWSParameterStoreName, func(opts ...Option) loader.Loader { return NewAWSParameterStoreLoader(opts...) })
	registry.RegisterFactory(GCPSecretName, func(opts ...Option) loader.Loader { return NewGCPSecretLoader(opts...) })
	registry.RegisterFactory(AzureKeyVaultName, func(opts ...Option) loader.Loader { return NewAzureKeyVaultLoader(opts...) })
	registry.RegisterFactory(KeyringName, func(opts ...Option) loader.Loader { return NewKeyringLoader(opts...) })
	registry.RegisterFactory(AkeylessName, func(opts ...Option) loader.Loader { return NewAkeylessLoader(opts...) })

	return registry
}

// RegisterFactory registers a loader factory for a given type
func (r *Registry) RegisterFactory(loaderType string, factory Factory) {
	r.factories[loaderType] = factory
}

// Create creates a loader of the given type.
func (r *Registry) Create(loaderType string) (loader.Loader, error) {
	factory, exists := r.factories[loaderType]
	if !exists {
		return nil, fmt.Errorf("unknown loader type: %s", loaderType)
	}
	return factory(r.opts...), nil
}

// CreateAll creates one loader per type, in order.
func (r *Registry) CreateAll(loaderTypes []string) ([]loader.Loader, error) {
	out := make([]loader.Loader, 0, len(loaderTypes))
	for _, loaderType := range loaderTypes {
		l, err := r.Create(loaderType)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Types returns the supported loader types, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for loaderType := range r.factories {
		types = append(types, loaderType)
	}
	sort.Strings(types)
	return types
}

// IsSupported checks if a loader type is supported
func (r *Registry) IsSupported(loaderType string) bool {
	_, exists := r.factories[loaderType]
	return exists
}
