package sqlexpr

// TokenType identifies the lexical class of a token.
type TokenType int

// Token types produced by the lexer.
const (
	TOKEN_ILLEGAL TokenType = iota
	TOKEN_EOF

	// Literals and identifiers
	TOKEN_IDENT  // column, function or type name (quoted or unquoted)
	TOKEN_NUMBER // 42, 3.14, 1e-9
	TOKEN_STRING // 'text'

	// Operators
	TOKEN_EQ     // =
	TOKEN_DBLEQ  // ==
	TOKEN_NE     // <> or !=
	TOKEN_LT     // <
	TOKEN_LE     // <=
	TOKEN_GT     // >
	TOKEN_GE     // >=
	TOKEN_PLUS   // +
	TOKEN_MINUS  // -
	TOKEN_STAR   // *
	TOKEN_SLASH  // /
	TOKEN_DSLASH // //
	TOKEN_MOD    // %
	TOKEN_DPIPE  // ||
	TOKEN_DCOLON // ::
	TOKEN_COLONEQ
	TOKEN_TILDE

	// Delimiters
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_LBRACKET
	TOKEN_RBRACKET
	TOKEN_COMMA
	TOKEN_DOT

	// Keywords
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT
	TOKEN_IS
	TOKEN_IN
	TOKEN_BETWEEN
	TOKEN_LIKE
	TOKEN_ILIKE
	TOKEN_NULL
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_CASE
	TOKEN_WHEN
	TOKEN_THEN
	TOKEN_ELSE
	TOKEN_END
	TOKEN_CAST
	TOKEN_AS
	TOKEN_DISTINCT
	TOKEN_FROM
)

// Token is a single lexical token with its raw literal.
type Token struct {
	Type    TokenType
	Literal string
	Quoted  bool // identifier was double-quoted in the source
}

var keywords = map[string]TokenType{
	"and":      TOKEN_AND,
	"or":       TOKEN_OR,
	"not":      TOKEN_NOT,
	"is":       TOKEN_IS,
	"in":       TOKEN_IN,
	"between":  TOKEN_BETWEEN,
	"like":     TOKEN_LIKE,
	"ilike":    TOKEN_ILIKE,
	"null":     TOKEN_NULL,
	"true":     TOKEN_TRUE,
	"false":    TOKEN_FALSE,
	"case":     TOKEN_CASE,
	"when":     TOKEN_WHEN,
	"then":     TOKEN_THEN,
	"else":     TOKEN_ELSE,
	"end":      TOKEN_END,
	"cast":     TOKEN_CAST,
	"as":       TOKEN_AS,
	"distinct": TOKEN_DISTINCT,
	"from":     TOKEN_FROM,
}

// lookupKeyword maps a lowercased identifier to its keyword token type,
// or TOKEN_IDENT if it is not a keyword.
func lookupKeyword(lower string) TokenType {
	if t, ok := keywords[lower]; ok {
		return t
	}
	return TOKEN_IDENT
}

var tokenNames = map[TokenType]string{
	TOKEN_ILLEGAL:  "ILLEGAL",
	TOKEN_EOF:      "EOF",
	TOKEN_IDENT:    "IDENT",
	TOKEN_NUMBER:   "NUMBER",
	TOKEN_STRING:   "STRING",
	TOKEN_EQ:       "=",
	TOKEN_DBLEQ:    "==",
	TOKEN_NE:       "<>",
	TOKEN_LT:       "<",
	TOKEN_LE:       "<=",
	TOKEN_GT:       ">",
	TOKEN_GE:       ">=",
	TOKEN_PLUS:     "+",
	TOKEN_MINUS:    "-",
	TOKEN_STAR:     "*",
	TOKEN_SLASH:    "/",
	TOKEN_DSLASH:   "//",
	TOKEN_MOD:      "%",
	TOKEN_DPIPE:    "||",
	TOKEN_DCOLON:   "::",
	TOKEN_COLONEQ:  ":=",
	TOKEN_TILDE:    "~",
	TOKEN_LPAREN:   "(",
	TOKEN_RPAREN:   ")",
	TOKEN_LBRACKET: "[",
	TOKEN_RBRACKET: "]",
	TOKEN_COMMA:    ",",
	TOKEN_DOT:      ".",
	TOKEN_AND:      "AND",
	TOKEN_OR:       "OR",
	TOKEN_NOT:      "NOT",
	TOKEN_IS:       "IS",
	TOKEN_IN:       "IN",
	TOKEN_BETWEEN:  "BETWEEN",
	TOKEN_LIKE:     "LIKE",
	TOKEN_ILIKE:    "ILIKE",
	TOKEN_NULL:     "NULL",
	TOKEN_TRUE:     "TRUE",
	TOKEN_FALSE:    "FALSE",
	TOKEN_CASE:     "CASE",
	TOKEN_WHEN:     "WHEN",
	TOKEN_THEN:     "THEN",
	TOKEN_ELSE:     "ELSE",
	TOKEN_END:      "END",
	TOKEN_CAST:     "CAST",
	TOKEN_AS:       "AS",
	TOKEN_DISTINCT: "DISTINCT",
	TOKEN_FROM:     "FROM",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Operator precedence levels, lowest binds loosest.
const (
	PrecedenceNone = iota
	PrecedenceOr
	PrecedenceAnd
	PrecedenceNot
	PrecedenceComparison
	PrecedenceAddition
	PrecedenceMultiply
	PrecedenceUnary
	PrecedencePostfix
)
