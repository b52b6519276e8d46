// Package parser builds Qi's typed expression tree (internal/ast) from
// the token stream produced by internal/lexer (§3, §8 "Parsing and
// desugaring").
//
// nperez-losp has no comparable stage: its eval.Evaluator reads tokens
// from a scanner.Scanner and interprets directly off the stream (see
// evalStream in internal/eval/eval.go), never materializing a tree. Qi
// needs a real tree because quote/quasiquote/macro expansion operate on
// code as data (§4.7) — there is no streaming equivalent. The
// recursive-descent shape below is nperez-losp's own style of
// recursive, lookahead-driven parsing (compare evalStream's per-token
// dispatch), just retargeted to build nodes instead of evaluating them.
package parser

import (
	"fmt"

	"qilang.dev/qi/internal/ast"
	"qilang.dev/qi/internal/lexer"
	"qilang.dev/qi/internal/token"
)

// Parser consumes a token stream and produces ast.Expr trees.
type Parser struct {
	lex *lexer.Lexer
}

// New creates a Parser over src.
func New(src string) *Parser {
	return &Parser{lex: lexer.New(src)}
}

// ParseProgram parses every top-level form until EOF.
func (p *Parser) ParseProgram() ([]ast.Expr, error) {
	var exprs []ast.Expr
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.EOF {
			return exprs, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
}

// ParseOne parses a single top-level form (used for embedded string
// interpolation expressions, which are always exactly one form).
func (p *Parser) ParseOne() (ast.Expr, error) {
	return p.parseExpr()
}

func (p *Parser) next() (token.Token, error)  { return p.lex.Next() }
func (p *Parser) peek() (token.Token, error)  { return p.lex.Peek() }

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	tok, err := p.next()
	if err != nil {
		return token.Token{}, err
	}
	if tok.Kind != k {
		return token.Token{}, fmt.Errorf("parse error at %s: expected %s, got %s %q", tok.Pos, k, tok.Kind, tok.Text)
	}
	return tok, nil
}

// parseExpr parses one primary form and then folds in any trailing
// pipeline operators (§4.2 "Pipelines").
func (p *Parser) parseExpr() (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case token.PIPE:
			p.next()
			stage, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			left = threadLast(stage, left, tok.Pos)
		case token.PIPE_RAIL:
			p.next()
			stage, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			left = buildRailStep(stage, left, tok.Pos)
		case token.PIPE_PAR:
			p.next()
			stage, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			left = ast.NewCall(tok.Pos, ast.Symbol{Name: "pmap"}, []ast.Expr{stage, left})
		case token.PIPE_ASYNC:
			p.next()
			stage, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			left = ast.Spawn{Body: threadLast(stage, left, tok.Pos)}
		default:
			return left, nil
		}
	}
}

// threadLast implements thread-last insertion (§4.2, §8's parser
// invariant "every pipeline x |> f parses to a call whose last argument
// is x"): "x |> f" becomes "(f x)"; "x |> (g a)" becomes "(g a x)" (x
// appended as the last argument of an already-parenthesized call stage).
func threadLast(stage, value ast.Expr, pos token.Pos) ast.Expr {
	if call, ok := stage.(ast.Call); ok {
		args := append(append([]ast.Expr{}, call.Args...), value)
		return ast.NewCall(pos, call.Func, args)
	}
	return ast.NewCall(pos, stage, []ast.Expr{value})
}

// buildRailStep implements "x |>? f": f only runs when x is not an
// {:error ...} map (§4.6's "rail" pipe), and x is bound once so the
// check doesn't re-evaluate a side-effecting left-hand side.
func buildRailStep(stage, value ast.Expr, pos token.Pos) ast.Expr {
	const tmp = "__rail__"
	tmpRef := ast.Symbol{Name: tmp}
	test := ast.NewCall(pos, ast.Symbol{Name: "error?"}, []ast.Expr{tmpRef})
	branch := ast.If{
		Test: test,
		Then: tmpRef,
		Else: threadLast(stage, tmpRef, pos),
	}
	return ast.Let{
		Bindings: []ast.Binding{{Name: tmp, Value: value}},
		Body:     []ast.Expr{branch},
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case token.EOF:
		return nil, fmt.Errorf("parse error: unexpected end of input")
	case token.INT:
		return parseIntToken(tok)
	case token.FLOAT:
		return parseFloatToken(tok)
	case token.STRING:
		return p.buildString(tok)
	case token.KEYWORD:
		return ast.Keyword{Name: tok.Text}, nil
	case token.SYMBOL:
		return p.buildSymbolLiteral(tok), nil
	case token.QUOTE:
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.Quote{Body: body}, nil
	case token.BACKTICK:
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.Quasiquote{Body: body}, nil
	case token.UNQUOTE:
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.Unquote{Body: body}, nil
	case token.UNQUOTE_SPLICE:
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.UnquoteSplice{Body: body}, nil
	case token.DEREF:
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewCall(tok.Pos, ast.Symbol{Name: "deref"}, []ast.Expr{body}), nil
	case token.LPAREN:
		return p.parseList(tok.Pos)
	case token.LBRACK:
		return p.parseVector(tok.Pos)
	case token.LBRACE:
		return p.parseMap(tok.Pos)
	case token.HASH_BRACE:
		return p.parseSet(tok.Pos)
	}
	return nil, fmt.Errorf("parse error at %s: unexpected token %s %q", tok.Pos, tok.Kind, tok.Text)
}

func parseIntToken(tok token.Token) (ast.Expr, error) {
	var v int64
	_, err := fmt.Sscanf(tok.Text, "%d", &v)
	if err != nil {
		return nil, fmt.Errorf("parse error at %s: invalid integer %q", tok.Pos, tok.Text)
	}
	return ast.Int{Value: v}, nil
}

func parseFloatToken(tok token.Token) (ast.Expr, error) {
	var v float64
	_, err := fmt.Sscanf(tok.Text, "%g", &v)
	if err != nil {
		return nil, fmt.Errorf("parse error at %s: invalid float %q", tok.Pos, tok.Text)
	}
	return ast.Float{Value: v}, nil
}

func (p *Parser) buildString(tok token.Token) (ast.Expr, error) {
	if tok.Parts == nil {
		return ast.Str{Value: tok.Text}, nil
	}
	chunks := make([]ast.InterpChunk, 0, len(tok.Parts))
	for _, part := range tok.Parts {
		if part.Literal {
			chunks = append(chunks, ast.InterpChunk{Literal: true, Text: part.Text})
			continue
		}
		sub := New(part.Expr)
		e, err := sub.ParseOne()
		if err != nil {
			return nil, fmt.Errorf("parse error in string interpolation at %s: %w", tok.Pos, err)
		}
		chunks = append(chunks, ast.InterpChunk{Expr: e})
	}
	return ast.InterpStr{Chunks: chunks}, nil
}

func (p *Parser) buildSymbolLiteral(tok token.Token) ast.Expr {
	switch tok.Text {
	case "nil":
		return ast.Nil{}
	case "true":
		return ast.Bool{Value: true}
	case "false":
		return ast.Bool{Value: false}
	}
	return ast.Symbol{Name: tok.Text}
}

func (p *Parser) parseVector(pos token.Pos) (ast.Expr, error) {
	var elems []ast.Expr
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RBRACK {
			p.next()
			return ast.Vector{Elems: elems}, nil
		}
		if tok.Kind == token.EOF {
			return nil, fmt.Errorf("parse error at %s: unterminated vector", pos)
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
}

func (p *Parser) parseMap(pos token.Pos) (ast.Expr, error) {
	var entries []ast.MapEntry
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RBRACE {
			p.next()
			return ast.Map{Entries: entries}, nil
		}
		if tok.Kind == token.EOF {
			return nil, fmt.Errorf("parse error at %s: unterminated map", pos)
		}
		k, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ast.MapEntry{Key: k, Value: v})
	}
}

func (p *Parser) parseSet(pos token.Pos) (ast.Expr, error) {
	var elems []ast.Expr
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RBRACE {
			p.next()
			return ast.Set{Elems: elems}, nil
		}
		if tok.Kind == token.EOF {
			return nil, fmt.Errorf("parse error at %s: unterminated set", pos)
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
}

// parseList dispatches "(" on its leading symbol to a special form, or
// else treats it as a function call.
func (p *Parser) parseList(pos token.Pos) (ast.Expr, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.RPAREN {
		p.next()
		return ast.List{}, nil // "()" is the empty list literal
	}
	if tok.Kind == token.SYMBOL {
		if fn, ok := specialForms[tok.Text]; ok {
			p.next()
			return fn(p, pos)
		}
	}
	return p.parseCall(pos)
}

func (p *Parser) parseCall(pos token.Pos) (ast.Expr, error) {
	fn, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var args []ast.Expr
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RPAREN {
			p.next()
			return ast.NewCall(pos, fn, args), nil
		}
		if tok.Kind == token.EOF {
			return nil, fmt.Errorf("parse error at %s: unterminated call", pos)
		}
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
}

// specialForms maps a leading symbol inside "(" to its dedicated parse
// function. Populated in specialforms.go.
var specialForms map[string]func(*Parser, token.Pos) (ast.Expr, error)
