// Package memory provides an in-memory secret provider for tests.
// It is thread-safe and supports storing values, which the env provider
// deliberately does not.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/strandlabs/strand/secrets"
)

// Provider implements an in-memory secret store.
type Provider struct {
	// store holds the secrets keyed by path.
	store map[string]*secrets.Secret

	// mu protects concurrent access to the store.
	mu sync.RWMutex
}

// New creates an empty memory provider.
func New() *Provider {
	return &Provider{
		store: make(map[string]*secrets.Secret),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "memory"
}

// Close clears all stored secrets.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for path, secret := range p.store {
		secret.Clear()
		delete(p.store, path)
	}
	return nil
}

// Resolve retrieves a secret by reference path.
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve operation cancelled: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	secret, exists := p.store[ref.Path]
	if !exists {
		return nil, fmt.Errorf("%w: %s", secrets.ErrSecretNotFound, ref.Path)
	}

	// Return a copy to prevent external modification.
	return &secrets.Secret{
		Value:     append([]byte(nil), secret.Value...),
		Version:   secret.Version,
		CreatedAt: secret.CreatedAt,
	}, nil
}

// Exists checks if a secret exists without retrieving its value.
func (p *Provider) Exists(ctx context.Context, ref secrets.SecretRef) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("exists operation cancelled: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	_, exists := p.store[ref.Path]
	return exists, nil
}

// Store saves a secret value under the reference path.
func (p *Provider) Store(ctx context.Context, ref secrets.SecretRef, value []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store operation cancelled: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.store[ref.Path] = &secrets.Secret{
		Value:     append([]byte(nil), value...),
		CreatedAt: time.Now(),
	}
	return nil
}
