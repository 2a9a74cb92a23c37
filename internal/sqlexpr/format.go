package sqlexpr

import (
	"strings"
)

// FormatExpr renders an expression AST back to SQL text. Output is flat and
// deterministic; identifiers are always double-quoted.
func FormatExpr(expr Expr) string {
	f := &formatter{}
	f.formatExpr(expr)
	return strings.TrimSpace(f.buf.String())
}

// QuoteIdent unconditionally double-quotes an identifier, escaping embedded
// double quotes by doubling them.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteString renders a single-quoted SQL string literal, escaping embedded
// single quotes by doubling them.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type formatter struct {
	buf strings.Builder
}

func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

func (f *formatter) commaSep(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		if i > 0 {
			f.write(", ")
		}
		fn(i)
	}
}

func (f *formatter) formatExpr(expr Expr) {
	switch e := expr.(type) {
	case *ColumnRef:
		if e.Table != "" {
			f.write(QuoteIdent(e.Table))
			f.write(".")
		}
		f.write(QuoteIdent(e.Column))

	case *Literal:
		switch e.Kind {
		case LiteralString:
			f.write(QuoteString(e.Value))
		case LiteralNull:
			f.write("NULL")
		case LiteralBool:
			f.write(strings.ToUpper(e.Value))
		default:
			f.write(e.Value)
		}

	case *UnaryExpr:
		if e.Op == TOKEN_NOT {
			f.write("NOT ")
		} else {
			f.write(e.Op.String())
		}
		f.formatExpr(e.Expr)

	case *BinaryExpr:
		f.formatExpr(e.Left)
		f.write(" ")
		f.write(e.Op.String())
		f.write(" ")
		f.formatExpr(e.Right)

	case *ParenExpr:
		f.write("(")
		f.formatExpr(e.Expr)
		f.write(")")

	case *FuncCall:
		f.write(e.Name)
		f.write("(")
		if e.Star {
			f.write("*")
		} else {
			if e.Distinct {
				f.write("DISTINCT ")
			}
			f.commaSep(len(e.Args), func(i int) { f.formatExpr(e.Args[i]) })
		}
		f.write(")")

	case *NamedArg:
		f.write(e.Name)
		f.write(" := ")
		f.formatExpr(e.Value)

	case *ListExpr:
		f.write("[")
		f.commaSep(len(e.Items), func(i int) { f.formatExpr(e.Items[i]) })
		f.write("]")

	case *InExpr:
		f.formatExpr(e.Expr)
		if e.Not {
			f.write(" NOT")
		}
		f.write(" IN (")
		f.commaSep(len(e.Values), func(i int) { f.formatExpr(e.Values[i]) })
		f.write(")")

	case *BetweenExpr:
		f.formatExpr(e.Expr)
		if e.Not {
			f.write(" NOT")
		}
		f.write(" BETWEEN ")
		f.formatExpr(e.Low)
		f.write(" AND ")
		f.formatExpr(e.High)

	case *LikeExpr:
		f.formatExpr(e.Expr)
		if e.Not {
			f.write(" NOT")
		}
		if e.ILike {
			f.write(" ILIKE ")
		} else {
			f.write(" LIKE ")
		}
		f.formatExpr(e.Pattern)

	case *IsNullExpr:
		f.formatExpr(e.Expr)
		if e.Not {
			f.write(" IS NOT NULL")
		} else {
			f.write(" IS NULL")
		}

	case *IsBoolExpr:
		f.formatExpr(e.Expr)
		f.write(" IS ")
		if e.Not {
			f.write("NOT ")
		}
		if e.Value {
			f.write("TRUE")
		} else {
			f.write("FALSE")
		}

	case *CaseExpr:
		f.write("CASE")
		if e.Operand != nil {
			f.write(" ")
			f.formatExpr(e.Operand)
		}
		for _, w := range e.Whens {
			f.write(" WHEN ")
			f.formatExpr(w.Cond)
			f.write(" THEN ")
			f.formatExpr(w.Result)
		}
		if e.Else != nil {
			f.write(" ELSE ")
			f.formatExpr(e.Else)
		}
		f.write(" END")

	case *CastExpr:
		f.write("CAST(")
		f.formatExpr(e.Expr)
		f.write(" AS ")
		f.write(e.TypeName)
		f.write(")")
	}
}
