package secret

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthContext_TrimsTrailingSlash(t *testing.T) {
	auth := NewAuthContext("https://api.example.com/", "k")
	assert.Equal(t, "https://api.example.com", auth.Endpoint())
}

func TestAuthContext_StringRedactsKey(t *testing.T) {
	auth := NewAuthContext("https://api.example.com", "super-secret-key")
	s := fmt.Sprintf("%v %s", auth, auth)
	assert.NotContains(t, s, "super-secret-key")
	assert.Contains(t, s, "[redacted]")
}

func TestAuthContext_LogValueRedactsKey(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	auth := NewAuthContext("https://api.example.com", "super-secret-key")
	logger.Info("resolving", "auth", auth)

	assert.NotContains(t, buf.String(), "super-secret-key")
	assert.Contains(t, buf.String(), "api.example.com")
}

func TestEnvProvider(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://api.example.com")
	t.Setenv(EnvAPIKey, "k1")

	auth, ok := EnvProvider{}.Lookup()
	require.True(t, ok)
	assert.Equal(t, "https://api.example.com", auth.Endpoint())
	assert.Equal(t, "k1", auth.APIKey())
}

func TestEnvProvider_MissingKey(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://api.example.com")
	t.Setenv(EnvAPIKey, "")

	_, ok := EnvProvider{}.Lookup()
	assert.False(t, ok)
}

func TestStaticProvider(t *testing.T) {
	_, ok := StaticProvider{}.Lookup()
	assert.False(t, ok)

	auth := NewAuthContext("https://api.example.com", "k")
	got, ok := StaticProvider{Auth: auth}.Lookup()
	require.True(t, ok)
	assert.Same(t, auth, got)
}
