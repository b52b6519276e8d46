package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qilang.dev/qi/internal/lexer"
	"qilang.dev/qi/internal/token"
)

func kinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	l := lexer.New(src)
	var out []token.Kind
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Kind == token.EOF {
			return out
		}
		out = append(out, tok.Kind)
	}
}

func TestLexesParensAndSymbols(t *testing.T) {
	assert.Equal(t, []token.Kind{token.LPAREN, token.SYMBOL, token.INT, token.INT, token.RPAREN},
		kinds(t, "(+ 1 2)"))
}

func TestLexesPipeOperators(t *testing.T) {
	assert.Equal(t, []token.Kind{token.SYMBOL, token.PIPE, token.SYMBOL}, kinds(t, "x |> f"))
	assert.Equal(t, []token.Kind{token.SYMBOL, token.PIPE_RAIL, token.SYMBOL}, kinds(t, "x |>? f"))
	assert.Equal(t, []token.Kind{token.SYMBOL, token.PIPE_PAR, token.SYMBOL}, kinds(t, "x ||> f"))
}

func TestLexesQuoteFamily(t *testing.T) {
	assert.Equal(t, []token.Kind{token.QUOTE, token.LPAREN, token.INT, token.RPAREN}, kinds(t, "'(1)"))
	assert.Equal(t, []token.Kind{token.BACKTICK, token.LPAREN, token.UNQUOTE, token.SYMBOL, token.RPAREN},
		kinds(t, "`(,x)"))
	assert.Equal(t, []token.Kind{token.UNQUOTE_SPLICE, token.SYMBOL}, kinds(t, ",@xs"))
}

func TestLexesKeywordsAndNumbers(t *testing.T) {
	assert.Equal(t, []token.Kind{token.KEYWORD, token.INT, token.FLOAT}, kinds(t, ":ok 42 3.5"))
}

func TestSkipsCommentsAndWhitespace(t *testing.T) {
	assert.Equal(t, []token.Kind{token.SYMBOL}, kinds(t, "  ; a comment\n  foo  ;; trailing\n"))
}

func TestLexesStringsAndInterpolation(t *testing.T) {
	assert.Equal(t, []token.Kind{token.STRING}, kinds(t, `"plain"`))
	assert.Equal(t, []token.Kind{token.STRING}, kinds(t, `f"hi {name}"`))
}

func TestUnterminatedStringIsError(t *testing.T) {
	l := lexer.New(`"unterminated`)
	_, err := l.Next()
	assert.Error(t, err)
}
