// Package engine hosts a DuckDB session and splices rewritten table
// fragments into it. Unresolved table references are materialized as temp
// views over the fragment SQL, so the planner and every downstream feature
// see an ordinary relation.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"duck-access/rewrite"
	"duck-access/secret"
)

// Rewriter resolves a table reference into a query fragment. Implemented
// by rewrite.Engine.
type Rewriter interface {
	Rewrite(ctx context.Context, schema, table string, auth *secret.AuthContext) (*rewrite.Result, error)
}

// maxResolvesPerQuery bounds how many missing tables one query may pull
// in. A query referencing more remote tables than this fails with the
// engine's own catalog error.
const maxResolvesPerQuery = 16

// Session is one DuckDB connection with access-controlled table
// resolution attached.
type Session struct {
	db       *sql.DB
	rewriter Rewriter
	creds    secret.Provider
	logger   *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger for resolution events.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession wraps an open DuckDB handle. The credential provider is
// consulted on every resolution, so rotated credentials take effect
// without reopening the session.
func NewSession(db *sql.DB, rewriter Rewriter, creds secret.Provider, opts ...SessionOption) *Session {
	s := &Session{
		db:       db,
		rewriter: rewriter,
		creds:    creds,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates an in-memory DuckDB database with the httpfs extension
// loaded, so presigned HTTPS file locations are directly scannable.
func Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := db.ExecContext(ctx, "INSTALL httpfs; LOAD httpfs;"); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("load httpfs: %w", err)
	}
	return db, nil
}

// Resolve fetches the manifest for (schema, table) and installs the
// rewritten fragment as a temp view named after the table. Re-resolving
// replaces the view.
func (s *Session) Resolve(ctx context.Context, schema, table string) (*rewrite.Result, error) {
	auth, ok := s.creds.Lookup()
	if !ok {
		return nil, rewrite.ErrNotApplicable
	}

	res, err := s.rewriter.Rewrite(ctx, schema, table, auth)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, ViewSQL(table, res.Fragment)); err != nil {
		return nil, fmt.Errorf("install view for table %q: %w", table, err)
	}

	s.logger.Info("table resolved",
		"schema", schema, "table", table,
		"files", len(res.Manifest.Files),
		"filters", len(res.Manifest.RowFilters),
		"masks", len(res.Manifest.ColumnMasks))
	return res, nil
}

// Query executes sqlQuery, resolving missing tables on demand. When DuckDB
// reports an unknown table, the session tries to resolve it and retries;
// references that cannot be resolved surface the resolution error, or the
// engine's original error when no credentials are configured.
func (s *Session) Query(ctx context.Context, sqlQuery string) (*sql.Rows, error) {
	tried := make(map[string]bool)

	for {
		rows, err := s.db.QueryContext(ctx, sqlQuery)
		if err == nil {
			return rows, nil
		}

		table, ok := MissingTable(err)
		if !ok || tried[table] || len(tried) >= maxResolvesPerQuery {
			return nil, err
		}
		tried[table] = true

		if _, rerr := s.Resolve(ctx, "main", table); rerr != nil {
			if errors.Is(rerr, rewrite.ErrNotApplicable) {
				return nil, err
			}
			return nil, rerr
		}
	}
}

// Forget drops the temp view for a table, so the next reference resolves
// afresh. Missing views are ignored.
func (s *Session) Forget(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, "DROP VIEW IF EXISTS "+quoteIdent(table))
	if err != nil {
		return fmt.Errorf("drop view for table %q: %w", table, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Session) Close() error {
	return s.db.Close()
}

// ViewSQL renders the DDL installing a fragment as a temp view.
func ViewSQL(table string, frag rewrite.Fragment) string {
	return "CREATE OR REPLACE TEMP VIEW " + quoteIdent(table) + " AS " + frag.SelectSQL()
}

func quoteIdent(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, s[i])
	}
	return string(append(out, '"'))
}

// missingTableRe matches DuckDB's catalog error for an unknown table:
//
//	Catalog Error: Table with name events does not exist!
var missingTableRe = regexp.MustCompile(`Table with name "?([A-Za-z_][A-Za-z0-9_]*)"? does not exist`)

// MissingTable extracts the table name from a DuckDB unknown-table error.
func MissingTable(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	m := missingTableRe.FindStringSubmatch(err.Error())
	if m == nil {
		return "", false
	}
	return m[1], true
}
