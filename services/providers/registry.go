package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/upb/llm-compare/models"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry manages provider instances keyed by provider id
type Registry struct {
	mu        sync.RWMutex
	providers map[models.ProviderID]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[models.ProviderID]Provider),
	}
}

// RegisterProvider registers a provider instance
func (r *Registry) RegisterProvider(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := provider.ID()
	if id == "" {
		return errors.New("provider id cannot be empty")
	}

	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, id)
	}

	r.providers[id] = provider
	return nil
}

// GetProvider retrieves a provider by id
func (r *Registry) GetProvider(id models.ProviderID) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[id]
	if !exists {
		return nil, ErrProviderNotFound
	}

	return provider, nil
}

// ListProviders returns all registered provider ids in sorted order
func (r *Registry) ListProviders() []models.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]models.ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// GetProviderCount returns the number of registered providers
func (r *Registry) GetProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

// ProviderBuilder is a function that creates a provider instance
type ProviderBuilder func(config ProviderConfig) (Provider, error)

// RegistryBuilder helps build a registry with multiple providers
type RegistryBuilder struct {
	registry *Registry
	builders map[models.ProviderID]ProviderBuilder
	wrap     []func(Provider) Provider
}

// NewRegistryBuilder creates a new registry builder
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		registry: NewRegistry(),
		builders: make(map[models.ProviderID]ProviderBuilder),
	}
}

// WithProviderBuilder registers a provider builder
func (rb *RegistryBuilder) WithProviderBuilder(id models.ProviderID, builder ProviderBuilder) *RegistryBuilder {
	rb.builders[id] = builder
	return rb
}

// WithDecorator wraps every built provider, e.g. with a throttle
func (rb *RegistryBuilder) WithDecorator(wrap func(Provider) Provider) *RegistryBuilder {
	rb.wrap = append(rb.wrap, wrap)
	return rb
}

// Build creates providers for every config with a known builder and returns the registry
func (rb *RegistryBuilder) Build(configs map[models.ProviderID]ProviderConfig) (*Registry, error) {
	for id, config := range configs {
		builder, exists := rb.builders[id]
		if !exists {
			continue
		}
		provider, err := builder(config)
		if err != nil {
			return nil, fmt.Errorf("failed to build provider %s: %w", id, err)
		}
		for _, wrap := range rb.wrap {
			provider = wrap(provider)
		}
		if err := rb.registry.RegisterProvider(provider); err != nil {
			return nil, fmt.Errorf("failed to register provider %s: %w", id, err)
		}
	}

	return rb.registry, nil
}
