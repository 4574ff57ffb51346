package secrets

import (
	"errors"
	"fmt"
)

// Standard error types for secret resolution.
// These are variables to enable comparison with errors.Is().
var (
	// ErrSecretNotFound indicates the requested secret was not found in the
	// provider's backing store.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrProviderError indicates a general error inside a provider.
	ErrProviderError = errors.New("provider error")

	// ErrInvalidRef indicates a malformed secret reference.
	ErrInvalidRef = errors.New("invalid secret reference")
)

// ProviderError wraps provider-specific errors with resolution context.
type ProviderError struct {
	Provider string    // Name of the provider where the error occurred
	Ref      SecretRef // The secret reference that caused the error
	Err      error     // The underlying error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q error for secret %q: %v", e.Provider, e.Ref.Path, e.Err)
}

// Unwrap returns the underlying error for error chain traversal.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a ProviderError preserving the original error.
func NewProviderError(provider string, ref SecretRef, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Ref:      ref,
		Err:      err,
	}
}
