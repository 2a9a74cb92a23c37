// Package rewrite turns a table manifest into the query fragment that
// replaces an unresolved table reference: a direct scan over the manifest's
// files, or a derived relation applying row filters and column masks.
package rewrite

import (
	"strings"

	"duck-access/internal/sqlexpr"
)

// sourceAlias names the inner scan inside a derived relation so mask and
// filter expressions resolve against it.
const sourceAlias = "__duck_access_src"

// Fragment is an abstract table reference the host engine substitutes for
// the original unresolved name.
type Fragment interface {
	// Ref renders the fragment as a FROM-clause table reference, aliased
	// to the original table name.
	Ref() string
	// SelectSQL renders a full SELECT over the fragment, suitable for a
	// view body.
	SelectSQL() string
	// Alias returns the table name the fragment stands in for.
	Alias() string
}

// TableFunctionRef is a bare scan: read_parquet([...]) AS "table".
// Used when the manifest carries no filters and no masks, so unprotected
// tables pay no rewrite overhead.
type TableFunctionRef struct {
	Call  *sqlexpr.FuncCall
	alias string
}

// NewParquetScan builds the base scan over the manifest's file locations.
// The files appear as a list literal in manifest order.
func NewParquetScan(files []string, alias string) *TableFunctionRef {
	items := make([]sqlexpr.Expr, 0, len(files))
	for _, f := range files {
		items = append(items, &sqlexpr.Literal{Kind: sqlexpr.LiteralString, Value: f})
	}
	return &TableFunctionRef{
		Call: &sqlexpr.FuncCall{
			Name: "read_parquet",
			Args: []sqlexpr.Expr{&sqlexpr.ListExpr{Items: items}},
		},
		alias: alias,
	}
}

func (r *TableFunctionRef) Alias() string { return r.alias }

func (r *TableFunctionRef) Ref() string {
	return sqlexpr.FormatExpr(r.Call) + " AS " + sqlexpr.QuoteIdent(r.alias)
}

func (r *TableFunctionRef) SelectSQL() string {
	return "SELECT * FROM " + r.Ref()
}

// refWithAlias renders the scan with an explicit alias, used for the inner
// source of a derived relation.
func (r *TableFunctionRef) refWithAlias(alias string) string {
	return sqlexpr.FormatExpr(r.Call) + " AS " + sqlexpr.QuoteIdent(alias)
}

// SelectItem is one projected expression, optionally aliased.
type SelectItem struct {
	Expr  sqlexpr.Expr
	Alias string
}

// SubqueryRef is a derived relation enforcing row filters and column
// masks:
//
//	(SELECT <projection> FROM read_parquet([...]) AS __duck_access_src
//	 WHERE <filters>) AS "table"
//
// An empty Projection renders as *.
type SubqueryRef struct {
	From       *TableFunctionRef
	Projection []SelectItem
	Where      sqlexpr.Expr
	alias      string
}

func (r *SubqueryRef) Alias() string { return r.alias }

func (r *SubqueryRef) Ref() string {
	return "(" + r.innerSelect() + ") AS " + sqlexpr.QuoteIdent(r.alias)
}

func (r *SubqueryRef) SelectSQL() string {
	return "SELECT * FROM " + r.Ref()
}

func (r *SubqueryRef) innerSelect() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(r.Projection) == 0 {
		b.WriteString("*")
	} else {
		for i, item := range r.Projection {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(sqlexpr.FormatExpr(item.Expr))
			if item.Alias != "" {
				b.WriteString(" AS ")
				b.WriteString(sqlexpr.QuoteIdent(item.Alias))
			}
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(r.From.refWithAlias(sourceAlias))
	if r.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(sqlexpr.FormatExpr(r.Where))
	}
	return b.String()
}
