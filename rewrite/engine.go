package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"duck-access/internal/sqlexpr"
	"duck-access/manifest"
	"duck-access/secret"
)

// ErrNotApplicable signals that no authorization context exists for the
// session: the reference is not ours and the caller must fall through to
// the host engine's default resolution.
var ErrNotApplicable = errors.New("no authorization context for session")

// FailMode decides what happens when a single policy expression (one row
// filter or one column mask) does not parse.
type FailMode int

const (
	// FailOpen drops the offending entry and continues: an unparsable mask
	// serves the column raw, an unparsable filter is skipped. Matches the
	// permissive upstream behavior; every degradation is reported.
	FailOpen FailMode = iota
	// FailClosed aborts the whole rewrite on the first unparsable entry,
	// so a broken policy expression can never widen access.
	FailClosed
)

// Warning records one policy entry that was dropped under FailOpen.
type Warning struct {
	Kind       string // "row_filter" or "column_mask"
	Column     string // set for column masks
	Expression string
	Err        error
}

func (w Warning) String() string {
	if w.Kind == "column_mask" {
		return fmt.Sprintf("column_mask %s on %q dropped: %v", w.Expression, w.Column, w.Err)
	}
	return fmt.Sprintf("row_filter %q dropped: %v", w.Expression, w.Err)
}

// Result is a completed rewrite: the fragment to splice in, the manifest
// it was derived from, and any policy entries degraded under FailOpen.
type Result struct {
	Fragment Fragment
	Manifest *manifest.TableManifest
	Warnings []Warning
}

// Engine resolves unresolved table references into query fragments using
// cached manifests.
type Engine struct {
	cache  *manifest.Cache
	mode   FailMode
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFailMode sets the policy for unparsable filter/mask entries.
func WithFailMode(mode FailMode) EngineOption {
	return func(e *Engine) { e.mode = mode }
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine over the given manifest cache.
func NewEngine(cache *manifest.Cache, opts ...EngineOption) *Engine {
	e := &Engine{
		cache:  cache,
		mode:   FailOpen,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rewrite resolves (schema, table) into a query fragment.
//
// A nil auth returns ErrNotApplicable. Any fetch or parse failure is
// surfaced as an error naming the table: once credentials are configured
// the user intends to use this access path, so failures must never
// silently degrade into "table not found".
func (e *Engine) Rewrite(ctx context.Context, schema, table string, auth *secret.AuthContext) (*Result, error) {
	if auth == nil {
		return nil, ErrNotApplicable
	}
	if schema == "" {
		schema = "main"
	}

	m, err := e.cache.GetOrFetch(ctx, auth, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve table %q: %w", table, err)
	}

	return e.buildFragment(table, m)
}

// buildFragment constructs the output fragment from a manifest.
func (e *Engine) buildFragment(table string, m *manifest.TableManifest) (*Result, error) {
	base := NewParquetScan(m.Files, table)
	res := &Result{Manifest: m}

	if len(m.RowFilters) == 0 && len(m.ColumnMasks) == 0 {
		res.Fragment = base
		return res, nil
	}

	sub := &SubqueryRef{From: base, alias: table}

	projection, err := e.buildProjection(m, res)
	if err != nil {
		return nil, err
	}
	sub.Projection = projection

	where, err := e.buildFilter(m, res)
	if err != nil {
		return nil, err
	}
	sub.Where = where

	res.Fragment = sub
	return res, nil
}

// buildProjection returns one item per declared column, substituting mask
// expressions where they apply. An empty return means project *.
func (e *Engine) buildProjection(m *manifest.TableManifest, res *Result) ([]SelectItem, error) {
	if len(m.ColumnMasks) == 0 {
		return nil, nil
	}

	// Without declared columns there is nothing to substitute masks into;
	// the projection stays *.
	if len(m.Columns) == 0 {
		return nil, nil
	}

	items := make([]SelectItem, 0, len(m.Columns))
	for _, col := range m.Columns {
		raw := SelectItem{Expr: &sqlexpr.ColumnRef{Column: col.Name}}

		maskSQL, ok := m.ColumnMasks[col.Name]
		if !ok {
			items = append(items, raw)
			continue
		}

		expr, err := sqlexpr.ParseExpr(maskSQL)
		if err != nil {
			if e.mode == FailClosed {
				return nil, fmt.Errorf("column mask for %q does not parse: %w", col.Name, err)
			}
			e.warn(res, Warning{Kind: "column_mask", Column: col.Name, Expression: maskSQL, Err: err})
			items = append(items, raw)
			continue
		}
		items = append(items, SelectItem{Expr: expr, Alias: col.Name})
	}
	return items, nil
}

// buildFilter AND-combines the row filters left to right.
func (e *Engine) buildFilter(m *manifest.TableManifest, res *Result) (sqlexpr.Expr, error) {
	var combined sqlexpr.Expr
	for _, filterSQL := range m.RowFilters {
		expr, err := sqlexpr.ParseExpr(filterSQL)
		if err != nil {
			if e.mode == FailClosed {
				return nil, fmt.Errorf("row filter %q does not parse: %w", filterSQL, err)
			}
			e.warn(res, Warning{Kind: "row_filter", Expression: filterSQL, Err: err})
			continue
		}
		if combined == nil {
			combined = expr
		} else {
			combined = &sqlexpr.BinaryExpr{
				Left:  groupForAnd(combined),
				Op:    sqlexpr.TOKEN_AND,
				Right: groupForAnd(expr),
			}
		}
	}
	return combined, nil
}

// groupForAnd parenthesizes an expression whose top-level operator binds
// looser than AND. The formatter renders trees flat, so a disjunctive
// filter must be grouped before conjoining or the AND would capture only
// its right branch and widen the filter.
func groupForAnd(e sqlexpr.Expr) sqlexpr.Expr {
	if b, ok := e.(*sqlexpr.BinaryExpr); ok && b.Op == sqlexpr.TOKEN_OR {
		return &sqlexpr.ParenExpr{Expr: b}
	}
	return e
}

func (e *Engine) warn(res *Result, w Warning) {
	res.Warnings = append(res.Warnings, w)
	e.logger.Warn("policy entry dropped",
		"kind", w.Kind, "column", w.Column, "expression", w.Expression, "error", w.Err)
}
