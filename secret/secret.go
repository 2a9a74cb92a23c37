// Package secret provides the credential bundle used to talk to the remote
// manifest service. The API key is redacted from every textual rendering so
// it cannot leak through logs or error messages.
package secret

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// AuthContext is an immutable credential bundle for one query session:
// the manifest service endpoint and the API key authorizing access to it.
type AuthContext struct {
	endpoint string
	apiKey   string
}

// NewAuthContext creates an AuthContext. The endpoint is normalized by
// stripping any trailing slash so request URLs join cleanly.
func NewAuthContext(endpoint, apiKey string) *AuthContext {
	return &AuthContext{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
	}
}

// Endpoint returns the manifest service base URL.
func (a *AuthContext) Endpoint() string { return a.endpoint }

// APIKey returns the raw key material. Callers must only place it in the
// X-API-Key request header, never in logs or error text.
func (a *AuthContext) APIKey() string { return a.apiKey }

// String renders the context with the key redacted.
func (a *AuthContext) String() string {
	return fmt.Sprintf("AuthContext{endpoint: %s, api_key: [redacted]}", a.endpoint)
}

// LogValue implements slog.LogValuer so structured logging never captures
// the key material.
func (a *AuthContext) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", a.endpoint),
		slog.String("api_key", "[redacted]"),
	)
}

// Provider resolves the credentials for the active session, if any.
// A false return means no credentials are configured; the caller must fall
// through to default table resolution.
type Provider interface {
	Lookup() (*AuthContext, bool)
}

// Environment variable names for the default provider.
const (
	EnvAPIURL = "DUCK_ACCESS_API_URL"
	EnvAPIKey = "DUCK_ACCESS_API_KEY"
)

// EnvProvider reads credentials from the process environment.
type EnvProvider struct{}

// Lookup returns the credentials from DUCK_ACCESS_API_URL and
// DUCK_ACCESS_API_KEY. Both must be non-empty.
func (EnvProvider) Lookup() (*AuthContext, bool) {
	url := os.Getenv(EnvAPIURL)
	key := os.Getenv(EnvAPIKey)
	if url == "" || key == "" {
		return nil, false
	}
	return NewAuthContext(url, key), true
}

// StaticProvider returns a fixed AuthContext; nil means no credentials.
// Used for wiring tests and programmatic configuration.
type StaticProvider struct {
	Auth *AuthContext
}

// Lookup returns the configured context.
func (p StaticProvider) Lookup() (*AuthContext, bool) {
	if p.Auth == nil {
		return nil, false
	}
	return p.Auth, true
}
