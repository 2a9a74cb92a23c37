package sqlexpr

import (
	"testing"
)

func collectTokens(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == TOKEN_EOF || tok.Type == TOKEN_ILLEGAL {
			return toks
		}
	}
}

func TestLexer_Operators(t *testing.T) {
	toks := collectTokens("= == <> != < <= > >= || :: := // %")
	want := []TokenType{
		TOKEN_EQ, TOKEN_DBLEQ, TOKEN_NE, TOKEN_NE, TOKEN_LT, TOKEN_LE,
		TOKEN_GT, TOKEN_GE, TOKEN_DPIPE, TOKEN_DCOLON, TOKEN_COLONEQ,
		TOKEN_DSLASH, TOKEN_MOD, TOKEN_EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Type, w)
		}
	}
}

func TestLexer_KeywordsCaseInsensitive(t *testing.T) {
	toks := collectTokens("And OR nOt between")
	want := []TokenType{TOKEN_AND, TOKEN_OR, TOKEN_NOT, TOKEN_BETWEEN, TOKEN_EOF}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Type, w)
		}
	}
}

func TestLexer_QuotedIdentifierPreservesCase(t *testing.T) {
	toks := collectTokens(`"PassengerId"`)
	if toks[0].Type != TOKEN_IDENT || toks[0].Literal != "PassengerId" || !toks[0].Quoted {
		t.Errorf("got %+v, want quoted IDENT PassengerId", toks[0])
	}
}

func TestLexer_StringEscape(t *testing.T) {
	toks := collectTokens("'O''Brien'")
	if toks[0].Type != TOKEN_STRING || toks[0].Literal != "O'Brien" {
		t.Errorf("got %+v, want STRING O'Brien", toks[0])
	}
}

func TestLexer_Numbers(t *testing.T) {
	for _, input := range []string{"42", "3.14", "1e9", "2.5E-3"} {
		toks := collectTokens(input)
		if toks[0].Type != TOKEN_NUMBER || toks[0].Literal != input {
			t.Errorf("lexing %q: got %+v", input, toks[0])
		}
	}
}

func TestLexer_UnterminatedString(t *testing.T) {
	toks := collectTokens("'oops")
	if toks[len(toks)-1].Type != TOKEN_ILLEGAL {
		t.Errorf("expected ILLEGAL token for unterminated string, got %+v", toks)
	}
}
