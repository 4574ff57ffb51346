package secrets

import (
	"context"
	"fmt"
	"sync"
)

// Manager orchestrates secret resolution across registered providers.
// The pipeline registers the env provider for real runs and the memory
// provider for tests; step environments name the provider in the reference.
type Manager struct {
	// providers holds the registered providers indexed by name.
	providers map[string]Provider

	// defaultProvider is used for references that name no provider.
	defaultProvider string

	// mu protects concurrent access to the provider registry.
	mu sync.RWMutex
}

// NewManager creates an empty Manager with the given default provider name.
func NewManager(defaultProvider string) *Manager {
	return &Manager{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider adds a provider to the manager's registry.
// Returns an error if a provider with the same name already exists.
func (m *Manager) RegisterProvider(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.providers[name]; exists {
		return fmt.Errorf("provider with name %q already registered", name)
	}

	m.providers[name] = provider
	return nil
}

// Resolve resolves a secret reference, selecting the provider named by the
// reference or falling back to the default provider.
func (m *Manager) Resolve(ctx context.Context, ref SecretRef) (*Secret, error) {
	providerName := ref.Provider
	if providerName == "" {
		providerName = m.defaultProvider
	}
	if providerName == "" {
		return nil, fmt.Errorf("no provider named by %q and no default provider configured", ref.Path)
	}

	m.mu.RLock()
	provider, exists := m.providers[providerName]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("provider %q not found", providerName)
	}

	secret, err := provider.Resolve(ctx, ref)
	if err != nil {
		return nil, NewProviderError(providerName, ref, err)
	}
	return secret, nil
}

// ResolveValue parses a secret://provider/path reference and resolves it.
// This is the entry point the engine uses for step environment values.
func (m *Manager) ResolveValue(ctx context.Context, value string) (*Secret, error) {
	ref, err := ParseRef(value)
	if err != nil {
		return nil, err
	}
	return m.Resolve(ctx, ref)
}

// Exists checks whether a secret reference resolves, without retrieving it.
func (m *Manager) Exists(ctx context.Context, ref SecretRef) (bool, error) {
	providerName := ref.Provider
	if providerName == "" {
		providerName = m.defaultProvider
	}

	m.mu.RLock()
	provider, exists := m.providers[providerName]
	m.mu.RUnlock()

	if !exists {
		return false, fmt.Errorf("provider %q not found", providerName)
	}

	ok, err := provider.Exists(ctx, ref)
	if err != nil {
		return false, NewProviderError(providerName, ref, err)
	}
	return ok, nil
}

// Close gracefully shuts down all registered providers and aggregates any
// errors.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, provider := range m.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	m.providers = make(map[string]Provider)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("errors during shutdown: %v", errs)
}
