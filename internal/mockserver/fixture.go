// Package mockserver implements a manifest service for local development
// and tests: a YAML fixture declares API keys, tables and policies, and the
// server answers the manifest protocol from it.
package mockserver

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTableTTL applies when a fixture table declares no ttl.
const DefaultTableTTL = 5 * time.Minute

// Fixture is the parsed YAML fixture backing the mock server.
type Fixture struct {
	// APIKeys maps an accepted key to its role name.
	APIKeys map[string]string `yaml:"api_keys"`
	Tables  map[string]Table  `yaml:"tables"`
}

// Column declares one column of a fixture table.
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Table is one fixture table with its files and policies.
type Table struct {
	Schema      string            `yaml:"schema"`
	Files       []string          `yaml:"files"`
	Columns     []Column          `yaml:"columns"`
	RowFilters  []string          `yaml:"row_filters"`
	ColumnMasks map[string]string `yaml:"column_masks"`

	// TTL is a Go duration string controlling the manifest's expires_at.
	TTL string `yaml:"ttl"`

	// DenyRoles lists roles that get a 403 for this table.
	DenyRoles []string `yaml:"deny_roles"`
}

// ExpiryTTL parses the table's ttl, falling back to the default.
func (t Table) ExpiryTTL() time.Duration {
	if t.TTL == "" {
		return DefaultTableTTL
	}
	d, err := time.ParseDuration(t.TTL)
	if err != nil || d <= 0 {
		return DefaultTableTTL
	}
	return d
}

// Denies reports whether the table is denied for the given role.
func (t Table) Denies(role string) bool {
	for _, r := range t.DenyRoles {
		if r == role {
			return true
		}
	}
	return false
}

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(fx.APIKeys) == 0 {
		return nil, fmt.Errorf("fixture declares no api_keys")
	}
	for name, tbl := range fx.Tables {
		if len(tbl.Files) == 0 {
			return nil, fmt.Errorf("fixture table %q has no files", name)
		}
		if tbl.TTL != "" {
			if _, err := time.ParseDuration(tbl.TTL); err != nil {
				return nil, fmt.Errorf("fixture table %q: bad ttl %q", name, tbl.TTL)
			}
		}
	}
	return &fx, nil
}

// lookup finds a table by schema and name. Fixture tables are keyed by bare
// table name; an empty fixture schema means "main".
func (fx *Fixture) lookup(schema, table string) (Table, bool) {
	tbl, ok := fx.Tables[table]
	if !ok {
		return Table{}, false
	}
	tblSchema := tbl.Schema
	if tblSchema == "" {
		tblSchema = "main"
	}
	if schema != "" && schema != tblSchema {
		return Table{}, false
	}
	return tbl, true
}
