package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fetchedAt = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func TestParse_FullManifest(t *testing.T) {
	body := []byte(`{
		"table": "titanic",
		"schema": "analytics",
		"expires_at": "2024-01-15T10:30:00Z",
		"files": ["https://cdn.example.com/a.parquet", "https://cdn.example.com/b.parquet"],
		"row_filters": ["age > 18", "region = 'US'"],
		"column_masks": {"Name": "'***'"},
		"columns": [
			{"name": "Name", "type": "VARCHAR"},
			{"name": "age", "type": "INTEGER"}
		]
	}`)

	m, err := Parse(body, fetchedAt)
	require.NoError(t, err)

	assert.Equal(t, "titanic", m.Table)
	assert.Equal(t, "analytics", m.Schema)
	assert.Equal(t, []string{"https://cdn.example.com/a.parquet", "https://cdn.example.com/b.parquet"}, m.Files)
	assert.Equal(t, []string{"age > 18", "region = 'US'"}, m.RowFilters)
	assert.Equal(t, map[string]string{"Name": "'***'"}, m.ColumnMasks)
	assert.Equal(t, []Column{{Name: "Name", Type: "VARCHAR"}, {Name: "age", Type: "INTEGER"}}, m.Columns)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), m.ExpiresAt)
	assert.Equal(t, fetchedAt, m.FetchedAt)
}

func TestParse_Defaults(t *testing.T) {
	m, err := Parse([]byte(`{"files": ["https://x/a.parquet"]}`), fetchedAt)
	require.NoError(t, err)

	assert.Equal(t, "", m.Table)
	assert.Equal(t, "main", m.Schema)
	assert.Empty(t, m.RowFilters)
	assert.Empty(t, m.ColumnMasks)
	assert.Empty(t, m.Columns)
}

func TestParse_ExpiresAt(t *testing.T) {
	cases := []struct {
		name string
		json string
		want time.Time
	}{
		{"rfc3339 utc", `"2024-06-01T12:00:00Z"`, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", `"2024-06-01T14:00:00+02:00"`, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		{"bare is UTC not local", `"2024-06-01T12:00:00"`, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		{"garbage falls back", `"next tuesday"`, fetchedAt.Add(time.Hour)},
		{"non-string falls back", `12345`, fetchedAt.Add(time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := []byte(`{"files": ["https://x/a.parquet"], "expires_at": ` + tc.json + `}`)
			m, err := Parse(body, fetchedAt)
			require.NoError(t, err)
			assert.True(t, m.ExpiresAt.Equal(tc.want), "got %v, want %v", m.ExpiresAt, tc.want)
		})
	}
}

func TestParse_ExpiresAtAbsent(t *testing.T) {
	m, err := Parse([]byte(`{"files": ["https://x/a.parquet"]}`), fetchedAt)
	require.NoError(t, err)
	assert.True(t, m.ExpiresAt.Equal(fetchedAt.Add(time.Hour)))
}

func TestParse_SkipsNonStringEntries(t *testing.T) {
	body := []byte(`{
		"files": ["https://x/a.parquet", 42, null, {"nested": true}, "https://x/b.parquet"],
		"row_filters": ["age > 18", 7, null],
		"column_masks": {"Name": "'***'", "age": 0, "ssn": null}
	}`)

	m, err := Parse(body, fetchedAt)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://x/a.parquet", "https://x/b.parquet"}, m.Files)
	assert.Equal(t, []string{"age > 18"}, m.RowFilters)
	assert.Equal(t, map[string]string{"Name": "'***'"}, m.ColumnMasks)
}

func TestParse_NonArrayFieldsIgnored(t *testing.T) {
	body := []byte(`{"files": ["https://x/a.parquet"], "row_filters": "not-a-list", "column_masks": []}`)
	m, err := Parse(body, fetchedAt)
	require.NoError(t, err)
	assert.Empty(t, m.RowFilters)
	assert.Empty(t, m.ColumnMasks)
}

func TestParse_Malformed(t *testing.T) {
	for _, body := range []string{`{not json`, `[]`, `"just a string"`, ``} {
		_, err := Parse([]byte(body), fetchedAt)
		assert.ErrorIs(t, err, ErrMalformed, "body: %s", body)
	}
}

// P2: a manifest without data files always fails and is never cached.
func TestParse_NoDataFiles(t *testing.T) {
	cases := []string{
		`{"table": "empty"}`,
		`{"table": "empty", "files": []}`,
		`{"table": "empty", "files": [1, 2, null]}`,
		`{"table": "empty", "files": "nope"}`,
	}
	for _, body := range cases {
		_, err := Parse([]byte(body), fetchedAt)
		var nf *NoDataFilesError
		require.ErrorAs(t, err, &nf, "body: %s", body)
		assert.Equal(t, "empty", nf.Table)
		assert.Contains(t, err.Error(), "empty")
	}
}
