// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package lexer tokenizes Qi source text.
//
// The lexer is byte-accurate: every skipped span of whitespace or
// comment, plus the textual footprint of every emitted token,
// reconstructs the original input. It is rune-based rather than
// byte-based internally (nperez-losp's scanner.Scanner read one rune at
// a time off a bufio.Reader); Qi reads the whole source into a []rune
// slice up front because
// operators here are multi-character ASCII sequences (|>, ||>, ~>, ...)
// that need unbounded lookahead for string interpolation brace nesting,
// which a single-rune-of-pushback reader cannot give cleanly.
package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"qilang.dev/qi/internal/token"
)

// Lexer tokenizes a rune stream.
type Lexer struct {
	src    []rune
	pos    int // index into src
	off    int // byte offset of src[pos] in the original text
	line   int
	col    int
	peeked *token.Token
}

// New creates a Lexer over the given source text.
func New(src string) *Lexer {
	return &Lexer{
		src:  []rune(src),
		line: 1,
		col:  1,
	}
}

func (l *Lexer) atEOF() bool { return l.pos >= len(l.src) }

func (l *Lexer) peekRune() rune {
	if l.atEOF() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekRuneAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	l.off += utf8.RuneLen(r)
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) here() token.Pos {
	return token.Pos{Line: l.line, Column: l.col, Offset: l.off}
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (token.Token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	t, err := l.Next()
	if err != nil {
		return token.Token{}, err
	}
	l.peeked = &t
	return t, nil
}

// Next returns and consumes the next token.
func (l *Lexer) Next() (token.Token, error) {
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		return t, nil
	}
	l.skipWhitespaceAndComments()
	pos := l.here()

	if l.atEOF() {
		return token.Token{Kind: token.EOF, Pos: pos}, nil
	}

	r := l.peekRune()

	switch r {
	case '(':
		l.advance()
		return token.Token{Kind: token.LPAREN, Text: "(", Pos: pos}, nil
	case ')':
		l.advance()
		return token.Token{Kind: token.RPAREN, Text: ")", Pos: pos}, nil
	case '[':
		l.advance()
		return token.Token{Kind: token.LBRACK, Text: "[", Pos: pos}, nil
	case ']':
		l.advance()
		return token.Token{Kind: token.RBRACK, Text: "]", Pos: pos}, nil
	case '{':
		l.advance()
		return token.Token{Kind: token.LBRACE, Text: "{", Pos: pos}, nil
	case '}':
		l.advance()
		return token.Token{Kind: token.RBRACE, Text: "}", Pos: pos}, nil
	case '\'':
		l.advance()
		return token.Token{Kind: token.QUOTE, Text: "'", Pos: pos}, nil
	case '`':
		l.advance()
		return token.Token{Kind: token.BACKTICK, Text: "`", Pos: pos}, nil
	case ',':
		l.advance()
		if l.peekRune() == '@' {
			l.advance()
			return token.Token{Kind: token.UNQUOTE_SPLICE, Text: ",@", Pos: pos}, nil
		}
		return token.Token{Kind: token.UNQUOTE, Text: ",", Pos: pos}, nil
	case '@':
		l.advance()
		return token.Token{Kind: token.DEREF, Text: "@", Pos: pos}, nil
	case ':':
		return l.lexKeyword(pos)
	case '"':
		return l.lexString(pos, false)
	case '#':
		if l.peekRuneAt(1) == '{' {
			l.advance()
			l.advance()
			return token.Token{Kind: token.HASH_BRACE, Text: "#{", Pos: pos}, nil
		}
	}

	if r == 'f' && (l.peekRuneAt(1) == '"') {
		l.advance()
		return l.lexString(pos, true)
	}

	if isDigitStart(r, l.peekRuneAt(1)) {
		return l.lexNumber(pos)
	}

	if isMultiCharOperatorStart(r) {
		if tok, ok := l.tryLexOperator(pos); ok {
			return tok, nil
		}
	}

	return l.lexSymbol(pos)
}

func isDigitStart(r, next rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	if (r == '-' || r == '+') && next >= '0' && next <= '9' {
		return true
	}
	return false
}

func isMultiCharOperatorStart(r rune) bool {
	switch r {
	case '|', '~', '-', '=', '.':
		return true
	}
	return false
}

// tryLexOperator attempts to match one of the multi-character sugar
// operators. Returns ok=false if the runes at pos don't form one, in
// which case the caller falls back to lexSymbol (so that e.g. a bare
// "-" or "->" used as a plain symbol name still lexes, and "..." used
// as a rest-parameter marker lexes distinctly from a bare "." symbol).
func (l *Lexer) tryLexOperator(pos token.Pos) (token.Token, bool) {
	type op struct {
		text string
		kind token.Kind
	}
	// Longest match first so "||>" isn't swallowed as "|>"-then-"|".
	candidates := []op{
		{"||>", token.PIPE_PAR},
		{"|>?", token.PIPE_RAIL},
		{"...", token.ELLIPSIS},
		{"|>", token.PIPE},
		{"~>", token.PIPE_ASYNC},
		{"->", token.ARROW},
		{"=>", token.FAT_ARROW},
	}
	for _, c := range candidates {
		if matchesAt(l.src, l.pos, c.text) {
			for range c.text {
				l.advance()
			}
			return token.Token{Kind: c.kind, Text: c.text, Pos: pos}, true
		}
	}
	return token.Token{}, false
}

func matchesAt(src []rune, pos int, text string) bool {
	rtext := []rune(text)
	if pos+len(rtext) > len(src) {
		return false
	}
	for i, r := range rtext {
		if src[pos+i] != r {
			return false
		}
	}
	return true
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		r := l.peekRune()
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			l.advance()
			continue
		}
		if r == ';' {
			for !l.atEOF() && l.peekRune() != '\n' {
				l.advance()
			}
			continue
		}
		break
	}
}

func isSymbolChar(r rune) bool {
	if token.IsDelimiter(r) {
		return false
	}
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return true
}

func (l *Lexer) lexSymbol(pos token.Pos) (token.Token, error) {
	start := l.pos
	if l.atEOF() {
		return token.Token{}, l.errf(pos, "unexpected end of input")
	}
	for !l.atEOF() && isSymbolChar(l.peekRune()) {
		l.advance()
	}
	text := string(l.src[start:l.pos])
	if text == "" {
		r := l.advance()
		return token.Token{}, l.errf(pos, "unexpected character %q", r)
	}
	return token.Token{Kind: token.SYMBOL, Text: text, Pos: pos}, nil
}

func (l *Lexer) lexKeyword(pos token.Pos) (token.Token, error) {
	l.advance() // ':'
	start := l.pos
	for !l.atEOF() && isSymbolChar(l.peekRune()) {
		l.advance()
	}
	if l.pos == start {
		return token.Token{}, l.errf(pos, "empty keyword")
	}
	return token.Token{Kind: token.KEYWORD, Text: string(l.src[start:l.pos]), Pos: pos}, nil
}

func (l *Lexer) lexNumber(pos token.Pos) (token.Token, error) {
	start := l.pos
	if l.peekRune() == '-' || l.peekRune() == '+' {
		l.advance()
	}
	isFloat := false
	for !l.atEOF() {
		r := l.peekRune()
		if r >= '0' && r <= '9' {
			l.advance()
			continue
		}
		if r == '.' && !isFloat && l.peekRuneAt(1) >= '0' && l.peekRuneAt(1) <= '9' {
			isFloat = true
			l.advance()
			continue
		}
		break
	}
	text := string(l.src[start:l.pos])
	if isFloat {
		return token.Token{Kind: token.FLOAT, Text: text, Pos: pos}, nil
	}
	return token.Token{Kind: token.INT, Text: text, Pos: pos}, nil
}

// lexString lexes "...", """...""", and (when interpolated is true) the
// f-prefixed variants. Triple-quoted strings preserve content verbatim,
// including newlines; regular strings support \n \t \r \\ \" and treat
// any other escape as the literal following character.
func (l *Lexer) lexString(pos token.Pos, interpolated bool) (token.Token, error) {
	triple := matchesAt(l.src, l.pos, `"""`)
	quoteLen := 1
	if triple {
		quoteLen = 3
	}
	for i := 0; i < quoteLen; i++ {
		l.advance()
	}

	var raw strings.Builder
	closed := false
	for !l.atEOF() {
		if triple {
			if matchesAt(l.src, l.pos, `"""`) {
				l.advance()
				l.advance()
				l.advance()
				closed = true
				break
			}
			raw.WriteRune(l.advance())
			continue
		}
		r := l.peekRune()
		if r == '"' {
			l.advance()
			closed = true
			break
		}
		if r == '\\' {
			l.advance()
			if l.atEOF() {
				break
			}
			esc := l.advance()
			switch esc {
			case 'n':
				raw.WriteByte('\n')
			case 't':
				raw.WriteByte('\t')
			case 'r':
				raw.WriteByte('\r')
			case '\\':
				raw.WriteByte('\\')
			case '"':
				raw.WriteByte('"')
			default:
				raw.WriteRune(esc)
			}
			continue
		}
		raw.WriteRune(l.advance())
	}
	if !closed {
		return token.Token{}, l.errf(pos, "unterminated string starting at %s", pos)
	}

	content := raw.String()
	if !interpolated {
		return token.Token{Kind: token.STRING, Text: content, Pos: pos}, nil
	}

	parts, err := splitInterpolation(content)
	if err != nil {
		return token.Token{}, l.errf(pos, "%v", err)
	}
	return token.Token{Kind: token.STRING, Text: content, Parts: parts, Pos: pos}, nil
}

// splitInterpolation splits an f-string's already-unescaped content into
// literal and embedded-expression chunks, tracking brace nesting so that
// literal braces produced by a sub-expression (e.g. a map literal) are
// not mistaken for the interpolation terminator.
func splitInterpolation(content string) ([]token.StringPart, error) {
	var parts []token.StringPart
	runes := []rune(content)
	var lit strings.Builder
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == '{' {
			if lit.Len() > 0 {
				parts = append(parts, token.StringPart{Literal: true, Text: lit.String()})
				lit.Reset()
			}
			depth := 1
			start := i + 1
			i++
			for i < len(runes) && depth > 0 {
				switch runes[i] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth == 0 {
					break
				}
				i++
			}
			if depth != 0 {
				return nil, fmt.Errorf("unterminated interpolation hole")
			}
			parts = append(parts, token.StringPart{Literal: false, Expr: string(runes[start:i])})
			i++ // consume closing '}'
			continue
		}
		lit.WriteRune(r)
		i++
	}
	if lit.Len() > 0 {
		parts = append(parts, token.StringPart{Literal: true, Text: lit.String()})
	}
	return parts, nil
}

func (l *Lexer) errf(pos token.Pos, format string, args ...any) error {
	return fmt.Errorf("lex error at %s: %s", pos, fmt.Sprintf(format, args...))
}
