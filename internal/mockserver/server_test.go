package mockserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFixture = `
api_keys:
  analyst-key: analyst
  admin-key: admin
tables:
  users:
    files:
      - https://files.example.com/users-0.parquet
    columns:
      - {name: id, type: BIGINT}
      - {name: email, type: VARCHAR}
    row_filters:
      - "region = 'EU'"
    column_masks:
      email: "'***'"
    ttl: 2m
  payroll:
    schema: finance
    files:
      - https://files.example.com/payroll-0.parquet
    deny_roles: [analyst]
`

func newTestServer(t *testing.T, opts ...ServerOption) *httptest.Server {
	t.Helper()
	fx, err := ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	srv := httptest.NewServer(New(fx, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postManifest(t *testing.T, url, apiKey, schema, table string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{"table": table, "schema": schema})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url+"/manifest", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestManifest_Success(t *testing.T) {
	fixed := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(t, WithClock(func() time.Time { return fixed }))

	resp := postManifest(t, srv.URL, "analyst-key", "main", "users")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "users", body["table"])
	assert.Equal(t, "main", body["schema"])
	assert.Equal(t, []any{"https://files.example.com/users-0.parquet"}, body["files"])
	assert.Equal(t, []any{"region = 'EU'"}, body["row_filters"])
	assert.Equal(t, map[string]any{"email": "'***'"}, body["column_masks"])
	assert.Equal(t, "2026-08-23T12:02:00Z", body["expires_at"], "expiry is now + table ttl")
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestManifest_InvalidKey(t *testing.T) {
	srv := newTestServer(t)

	resp := postManifest(t, srv.URL, "wrong-key", "main", "users")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestManifest_MissingKey(t *testing.T) {
	srv := newTestServer(t)

	resp := postManifest(t, srv.URL, "", "main", "users")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestManifest_DeniedRole(t *testing.T) {
	srv := newTestServer(t)

	resp := postManifest(t, srv.URL, "analyst-key", "finance", "payroll")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["message"], `role "analyst" may not read table "payroll"`)

	resp = postManifest(t, srv.URL, "admin-key", "finance", "payroll")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestManifest_UnknownTable(t *testing.T) {
	srv := newTestServer(t)

	resp := postManifest(t, srv.URL, "analyst-key", "main", "ghost")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "table not found on server", body["message"])
}

func TestManifest_SchemaMismatchIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := postManifest(t, srv.URL, "analyst-key", "main", "payroll")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManifest_BadBody(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/manifest", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "analyst-key")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(1, 1))

	first := postManifest(t, srv.URL, "analyst-key", "main", "users")
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := postManifest(t, srv.URL, "analyst-key", "main", "users")
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "1", second.Header.Get("Retry-After"))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestParseFixture_Validation(t *testing.T) {
	t.Run("no keys", func(t *testing.T) {
		_, err := ParseFixture([]byte("tables: {}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_keys")
	})

	t.Run("table without files", func(t *testing.T) {
		_, err := ParseFixture([]byte("api_keys: {k: r}\ntables:\n  t: {files: []}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no files")
	})

	t.Run("bad ttl", func(t *testing.T) {
		_, err := ParseFixture([]byte("api_keys: {k: r}\ntables:\n  t:\n    files: [f]\n    ttl: soonish"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ttl")
	})
}
