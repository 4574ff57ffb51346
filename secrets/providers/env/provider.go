// Package env provides a secret provider backed by the process environment.
// CI systems hand credentials to the orchestrator as environment variables;
// this provider is how step references like secret://env/S3_UPLOAD_CREDENTIALS
// reach them.
package env

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/strandlabs/strand/secrets"
)

// Provider resolves secrets from environment variables. The reference path
// is the variable name.
type Provider struct{}

// New creates an env provider instance.
func New() *Provider {
	return &Provider{}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "env"
}

// Close is a no-op; the provider holds no resources.
func (p *Provider) Close() error {
	return nil
}

// Resolve reads the environment variable named by the reference path.
// An unset or empty variable is a missing secret: CI deliberately leaves
// credentials unset on forks, and that must fail resolution, not inject "".
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve operation cancelled: %w", err)
	}

	value := os.Getenv(ref.Path)
	if value == "" {
		return nil, fmt.Errorf("%w: environment variable %q", secrets.ErrSecretNotFound, ref.Path)
	}

	return &secrets.Secret{
		Value:     []byte(value),
		CreatedAt: time.Now(),
	}, nil
}

// Exists checks whether the environment variable is set and non-empty.
func (p *Provider) Exists(ctx context.Context, ref secrets.SecretRef) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("exists operation cancelled: %w", err)
	}
	return os.Getenv(ref.Path) != "", nil
}
