package parser

import (
	"fmt"

	"qilang.dev/qi/internal/ast"
	"qilang.dev/qi/internal/token"
)

// parsePattern parses one pattern tree (§4.5 "Pattern matching").
func (p *Parser) parsePattern() (ast.Pattern, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case token.SYMBOL:
		switch tok.Text {
		case "_":
			return ast.WildcardPattern{}, nil
		case "nil":
			return ast.NilPattern{}, nil
		case "true":
			return ast.BoolPattern{Value: true}, nil
		case "false":
			return ast.BoolPattern{Value: false}, nil
		}
		return ast.VarPattern{Name: tok.Text}, nil
	case token.KEYWORD:
		return ast.KeywordPattern{Name: tok.Text}, nil
	case token.INT:
		e, err := parseIntToken(tok)
		if err != nil {
			return nil, err
		}
		return ast.IntPattern{Value: e.(ast.Int).Value}, nil
	case token.FLOAT:
		e, err := parseFloatToken(tok)
		if err != nil {
			return nil, err
		}
		return ast.FloatPattern{Value: e.(ast.Float).Value}, nil
	case token.STRING:
		return ast.StrPattern{Value: tok.Text}, nil
	case token.LBRACK:
		return p.parseVectorPattern()
	case token.LBRACE:
		return p.parseMapPattern()
	case token.LPAREN:
		return p.parseGroupedPattern()
	}
	return nil, fmt.Errorf("parse error at %s: malformed pattern (unexpected %s)", tok.Pos, tok.Kind)
}

// parseVectorPattern parses "[p1 p2 ...rest]"; an ELLIPSIS immediately
// before the final element marks a rest-binding SeqRestPattern instead
// of a fixed-arity VectorPattern.
func (p *Parser) parseVectorPattern() (ast.Pattern, error) {
	var elems []ast.Pattern
	rest := ""
	hasRest := false
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RBRACK {
			p.next()
			if hasRest {
				return ast.SeqRestPattern{Elems: elems, Rest: rest}, nil
			}
			return ast.VectorPattern{Elems: elems}, nil
		}
		if tok.Kind == token.ELLIPSIS {
			p.next()
			nameTok, err := p.expect(token.SYMBOL)
			if err != nil {
				return nil, err
			}
			rest = nameTok.Text
			hasRest = true
			continue
		}
		sub, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, sub)
	}
}

// parseMapPattern parses "{:key pat :key2 pat2}"; extra keys present in
// the matched value are ignored (§4.5).
func (p *Parser) parseMapPattern() (ast.Pattern, error) {
	var entries []ast.MapPatternEntry
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RBRACE {
			p.next()
			return ast.MapPattern{Entries: entries}, nil
		}
		keyExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sub, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ast.MapPatternEntry{Key: keyExpr, Pattern: sub})
	}
}

// parseGroupedPattern parses "(" pattern ("|" pattern)* | "as" name ")",
// i.e. a parenthesized pattern optionally combined into an or-pattern
// across "|" alternatives, or bound to an extra name via "as".
func (p *Parser) parseGroupedPattern() (ast.Pattern, error) {
	first, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	alternatives := []ast.Pattern{first}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case token.PIPE:
			p.next()
			next, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			alternatives = append(alternatives, next)
		case token.SYMBOL:
			if tok.Text == "|" {
				p.next()
				next, err := p.parsePattern()
				if err != nil {
					return nil, err
				}
				alternatives = append(alternatives, next)
				continue
			}
			if tok.Text != "as" {
				return p.finishGroupedPattern(alternatives)
			}
			p.next()
			nameTok, err := p.expect(token.SYMBOL)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			return ast.AsPattern{Sub: collapsePattern(alternatives), Name: nameTok.Text}, nil
		default:
			return p.finishGroupedPattern(alternatives)
		}
	}
}

func collapsePattern(alternatives []ast.Pattern) ast.Pattern {
	if len(alternatives) == 1 {
		return alternatives[0]
	}
	return ast.OrPattern{Alternatives: alternatives}
}

func (p *Parser) finishGroupedPattern(alternatives []ast.Pattern) (ast.Pattern, error) {
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return collapsePattern(alternatives), nil
}
