// Package sqlexpr parses and renders DuckDB SQL expressions.
//
// It is a small hand-written lexer and Pratt parser covering the expression
// subset that row-filter predicates and column-mask expressions are written
// in: comparisons, boolean logic, arithmetic, string operators, IN/BETWEEN/
// LIKE, CASE, casts, function calls and list literals. Statements are out of
// scope; the package exists so policy expressions can be validated and
// re-rendered deterministically before being spliced into generated SQL.
package sqlexpr

// Expr is a SQL expression node.
type Expr interface {
	exprNode()
}

// ColumnRef is a column reference, optionally qualified with a table alias.
type ColumnRef struct {
	Table  string
	Column string
}

// LiteralKind classifies a literal value.
type LiteralKind int

const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal is a constant value. Value holds the raw text for numbers,
// the unescaped content for strings, and "true"/"false" for bools.
type Literal struct {
	Kind  LiteralKind
	Value string
}

// UnaryExpr is NOT x, -x, +x or ~x.
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

// BinaryExpr is left op right for infix operators.
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

// ParenExpr preserves explicit parentheses from the source.
type ParenExpr struct {
	Expr Expr
}

// FuncCall is a function invocation such as substr(name, 1, 3) or
// read_parquet(['a.parquet'], hive_partitioning := true).
type FuncCall struct {
	Name     string
	Distinct bool
	Star     bool // count(*)
	Args     []Expr
}

// NamedArg is a name := value function argument.
type NamedArg struct {
	Name  string
	Value Expr
}

// ListExpr is a DuckDB list literal: [e1, e2, ...].
type ListExpr struct {
	Items []Expr
}

// InExpr is expr [NOT] IN (values).
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr
}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

// LikeExpr is expr [NOT] LIKE/ILIKE pattern.
type LikeExpr struct {
	Expr    Expr
	Not     bool
	ILike   bool
	Pattern Expr
}

// IsNullExpr is expr IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

// IsBoolExpr is expr IS [NOT] TRUE/FALSE.
type IsBoolExpr struct {
	Expr  Expr
	Not   bool
	Value bool
}

// WhenClause is one WHEN cond THEN result arm of a CASE expression.
type WhenClause struct {
	Cond   Expr
	Result Expr
}

// CaseExpr is a simple or searched CASE expression.
type CaseExpr struct {
	Operand Expr // nil for searched CASE
	Whens   []WhenClause
	Else    Expr // nil when absent
}

// CastExpr is CAST(expr AS type) or expr::type.
type CastExpr struct {
	Expr     Expr
	TypeName string
}

func (*ColumnRef) exprNode()   {}
func (*Literal) exprNode()     {}
func (*UnaryExpr) exprNode()   {}
func (*BinaryExpr) exprNode()  {}
func (*ParenExpr) exprNode()   {}
func (*FuncCall) exprNode()    {}
func (*NamedArg) exprNode()    {}
func (*ListExpr) exprNode()    {}
func (*InExpr) exprNode()      {}
func (*BetweenExpr) exprNode() {}
func (*LikeExpr) exprNode()    {}
func (*IsNullExpr) exprNode()  {}
func (*IsBoolExpr) exprNode()  {}
func (*CaseExpr) exprNode()    {}
func (*CastExpr) exprNode()    {}
