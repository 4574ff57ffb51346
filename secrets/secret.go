// Package secrets provides provider-agnostic resolution of the credentials
// the pipeline forwards to steps: values stay opaque to the orchestrator and
// are injected into step environments just-in-time, never logged.
package secrets

import (
	"fmt"
	"strings"
	"time"
)

// refScheme prefixes secret references embedded in step environments.
const refScheme = "secret://"

// Secret represents a resolved secret value with metadata.
type Secret struct {
	// Value contains the secret data as bytes. Never logged or exposed.
	Value []byte

	// Version indicates the version of this secret (empty for latest).
	Version string

	// CreatedAt records when this secret was created.
	CreatedAt time.Time
}

// String returns the secret value as a string copy.
func (s *Secret) String() string {
	if s.Value == nil {
		return ""
	}
	return string(s.Value)
}

// Clear zeroes the secret's memory. Callers clear secrets as soon as the
// value has been handed to the consuming process.
func (s *Secret) Clear() {
	for i := range s.Value {
		s.Value[i] = 0
	}
	s.Value = nil
}

// SecretRef references a secret without containing its value.
type SecretRef struct {
	// Provider names the provider to resolve through. Empty means the
	// manager's default provider.
	Provider string

	// Path identifies the secret within the provider
	// (e.g. "S3_UPLOAD_CREDENTIALS", "GITHUB_HOMEBREW_TOKEN").
	Path string

	// Version specifies which version to retrieve (empty for latest).
	Version string
}

// IsRef reports whether a step environment value is a secret reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, refScheme)
}

// ParseRef parses a secret://provider/path reference as it appears in a
// pipeline definition's step environment.
func ParseRef(value string) (SecretRef, error) {
	if !IsRef(value) {
		return SecretRef{}, fmt.Errorf("%w: missing %s scheme in %q", ErrInvalidRef, refScheme, value)
	}

	rest := strings.TrimPrefix(value, refScheme)
	provider, path, found := strings.Cut(rest, "/")
	if !found || provider == "" || path == "" {
		return SecretRef{}, fmt.Errorf("%w: want secret://provider/path, got %q", ErrInvalidRef, value)
	}

	return SecretRef{Provider: provider, Path: path}, nil
}

// String renders the reference in secret://provider/path form. The value is
// safe to log: it names the secret without containing it.
func (r SecretRef) String() string {
	return refScheme + r.Provider + "/" + r.Path
}
