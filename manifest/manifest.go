// Package manifest defines the per-table authorization manifest, its JSON
// parser, and a TTL cache that deduplicates manifest fetches against the
// remote API.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is the validity window assumed when a manifest carries no
// usable expires_at. A missing TTL degrades to a short cache rather than
// blocking access.
const DefaultTTL = time.Hour

// Column describes one column declared by a manifest. Type is informational
// and is not validated here.
type Column struct {
	Name string
	Type string
}

// TableManifest is the authorization and location record for one table.
// It is immutable once constructed: cache entries are replaced wholesale
// and callers share the stored value read-only.
type TableManifest struct {
	Table  string
	Schema string

	// Files are the remote locations (presigned URLs) holding the table
	// data. A valid manifest always has at least one.
	Files []string

	// RowFilters are SQL predicates combined with AND. Order is preserved
	// for deterministic output.
	RowFilters []string

	// ColumnMasks maps a column name to the SQL expression substituted for
	// the raw column value.
	ColumnMasks map[string]string

	// Columns lists the declared columns in output order.
	Columns []Column

	ExpiresAt time.Time
	FetchedAt time.Time // diagnostics only
}

// ErrMalformed indicates the manifest body was not valid structured data.
var ErrMalformed = errors.New("malformed manifest")

// NoDataFilesError indicates a structurally valid manifest that carries no
// file locations. Such a manifest is unusable and is never cached.
type NoDataFilesError struct {
	Table string
}

func (e *NoDataFilesError) Error() string {
	return fmt.Sprintf("manifest contains no data files for table %q", e.Table)
}

// rawManifest is the lenient wire shape. Fields that tolerate partial
// garbage are held as raw JSON and decoded entry by entry.
type rawManifest struct {
	Table       string          `json:"table"`
	Schema      string          `json:"schema"`
	ExpiresAt   json.RawMessage `json:"expires_at"`
	Columns     json.RawMessage `json:"columns"`
	Files       json.RawMessage `json:"files"`
	RowFilters  json.RawMessage `json:"row_filters"`
	ColumnMasks json.RawMessage `json:"column_masks"`
}

// Parse decodes a manifest response body. fetchedAt stamps the manifest and
// anchors the expiry fallback.
//
// Decoding is deliberately permissive at the entry level: non-string file,
// filter and mask entries are skipped rather than failing the parse. Two
// conditions are fatal: a body that is not a JSON object (ErrMalformed) and
// an empty files list (NoDataFilesError). No partial manifest is returned
// on failure.
func Parse(body []byte, fetchedAt time.Time) (*TableManifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m := &TableManifest{
		Table:       raw.Table,
		Schema:      raw.Schema,
		Files:       stringList(raw.Files),
		RowFilters:  stringList(raw.RowFilters),
		ColumnMasks: stringMap(raw.ColumnMasks),
		Columns:     columnList(raw.Columns),
		ExpiresAt:   parseExpiry(raw.ExpiresAt, fetchedAt),
		FetchedAt:   fetchedAt,
	}
	if m.Schema == "" {
		m.Schema = "main"
	}

	if len(m.Files) == 0 {
		return nil, &NoDataFilesError{Table: m.Table}
	}
	return m, nil
}

// parseExpiry reads an ISO-8601 UTC timestamp. Absent or unparsable values
// fall back to fetchedAt + DefaultTTL.
func parseExpiry(raw json.RawMessage, fetchedAt time.Time) time.Time {
	fallback := fetchedAt.Add(DefaultTTL)
	if len(raw) == 0 {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	// Bare form without zone designator is interpreted as UTC, never local.
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC); err == nil {
		return t
	}
	return fallback
}

// stringList decodes a JSON array, keeping string entries and skipping the
// rest. A missing or non-array value yields nil.
func stringList(raw json.RawMessage) []string {
	var entries []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		var s string
		if isJSONNull(e) {
			continue
		}
		if json.Unmarshal(e, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// isJSONNull reports whether a raw value is the JSON null literal, which
// unmarshals into a string without error and must be skipped explicitly.
func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// stringMap decodes a JSON object, keeping entries with string values.
func stringMap(raw json.RawMessage) map[string]string {
	var entries map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	out := make(map[string]string, len(entries))
	for k, v := range entries {
		var s string
		if isJSONNull(v) {
			continue
		}
		if json.Unmarshal(v, &s) == nil {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// columnList decodes the columns array, skipping malformed entries.
func columnList(raw json.RawMessage) []Column {
	var entries []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	var out []Column
	for _, e := range entries {
		var col struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if json.Unmarshal(e, &col) == nil {
			out = append(out, Column{Name: col.Name, Type: col.Type})
		}
	}
	return out
}
