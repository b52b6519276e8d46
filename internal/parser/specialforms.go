package parser

import (
	"fmt"

	"qilang.dev/qi/internal/ast"
	"qilang.dev/qi/internal/token"
)

func init() {
	specialForms = map[string]func(*Parser, token.Pos) (ast.Expr, error){
		"def":     parseDef,
		"defn":    parseDefn,
		"defn-":   parseDefn,
		"fn":      parseFn,
		"let":     parseLet,
		"if":      parseIf,
		"when":    parseWhen,
		"do":      parseDo,
		"while":   parseWhile,
		"until":   parseUntil,
		"match":   parseMatch,
		"loop":    parseLoop,
		"recur":   parseRecur,
		"try":     parseTry,
		"defer":   parseDefer,
		"quote":   parseQuoteForm,
		"quasiquote": parseQuasiquoteForm,
		"unquote":  parseUnquoteForm,
		"go":       parseGo,
		"module":   parseModule,
		"export":   parseExport,
		"use":      parseUse,
		"mac":      parseMacroDef,
		"macro":    parseMacroDef,
		"and":      parseAnd,
		"or":       parseOr,
	}
}

func expectRparen(p *Parser, pos token.Pos, form string) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Kind != token.RPAREN {
		return fmt.Errorf("parse error at %s: malformed %s, expected ')', got %s", tok.Pos, form, tok.Kind)
	}
	return nil
}

func parseDef(p *Parser, pos token.Pos) (ast.Expr, error) {
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := expectRparen(p, pos, "def"); err != nil {
		return nil, err
	}
	return ast.Def{Name: nameTok.Text, Value: value}, nil
}

// parseDefn desugars "(defn name [params] docstring? body...)" into
// "(def name (fn name [params] body...))" (§4.5's named-function
// sugar).
func parseDefn(p *Parser, pos token.Pos) (ast.Expr, error) {
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, err
	}
	params, rest, variadic, err := p.parseParamVector()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBodyUntilRparen(pos, "defn")
	if err != nil {
		return nil, err
	}
	fn := ast.Fn{Name: nameTok.Text, Params: params, Rest: rest, IsVariadic: variadic, Body: dropLeadingDocstring(body)}
	return ast.Def{Name: nameTok.Text, Value: fn}, nil
}

// dropLeadingDocstring discards a leading bare string literal when more
// body expressions follow, treating it as documentation rather than a
// meaningful no-op statement.
func dropLeadingDocstring(body []ast.Expr) []ast.Expr {
	if len(body) > 1 {
		if _, ok := body[0].(ast.Str); ok {
			return body[1:]
		}
	}
	return body
}

func parseFn(p *Parser, pos token.Pos) (ast.Expr, error) {
	name := ""
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.SYMBOL {
		p.next()
		name = tok.Text
	}
	params, rest, variadic, err := p.parseParamVector()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBodyUntilRparen(pos, "fn")
	if err != nil {
		return nil, err
	}
	return ast.Fn{Name: name, Params: params, Rest: rest, IsVariadic: variadic, Body: body}, nil
}

// parseParamVector parses "[a b ...rest]"; an ELLIPSIS token must
// immediately precede the final (rest) parameter.
func (p *Parser) parseParamVector() ([]ast.Param, string, bool, error) {
	if _, err := p.expect(token.LBRACK); err != nil {
		return nil, "", false, err
	}
	var params []ast.Param
	rest := ""
	variadic := false
	for {
		tok, err := p.next()
		if err != nil {
			return nil, "", false, err
		}
		switch tok.Kind {
		case token.RBRACK:
			return params, rest, variadic, nil
		case token.ELLIPSIS:
			nameTok, err := p.expect(token.SYMBOL)
			if err != nil {
				return nil, "", false, err
			}
			rest = nameTok.Text
			variadic = true
		case token.SYMBOL:
			params = append(params, ast.Param{Name: tok.Text})
		default:
			return nil, "", false, fmt.Errorf("parse error at %s: malformed parameter list", tok.Pos)
		}
	}
}

func (p *Parser) parseBodyUntilRparen(pos token.Pos, form string) ([]ast.Expr, error) {
	var body []ast.Expr
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RPAREN {
			p.next()
			return body, nil
		}
		if tok.Kind == token.EOF {
			return nil, fmt.Errorf("parse error at %s: unterminated %s", pos, form)
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body = append(body, e)
	}
}

// parseBindingVector parses "[name expr name expr ...]" for let/loop.
func (p *Parser) parseBindingVector() ([]ast.Binding, error) {
	if _, err := p.expect(token.LBRACK); err != nil {
		return nil, err
	}
	var bindings []ast.Binding
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RBRACK {
			p.next()
			return bindings, nil
		}
		nameTok, err := p.expect(token.SYMBOL)
		if err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.Binding{Name: nameTok.Text, Value: value})
	}
}

func parseLet(p *Parser, pos token.Pos) (ast.Expr, error) {
	bindings, err := p.parseBindingVector()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBodyUntilRparen(pos, "let")
	if err != nil {
		return nil, err
	}
	return ast.Let{Bindings: bindings, Body: body}, nil
}

func parseIf(p *Parser, pos token.Pos) (ast.Expr, error) {
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var elseExpr ast.Expr
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != token.RPAREN {
		elseExpr, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := expectRparen(p, pos, "if"); err != nil {
		return nil, err
	}
	return ast.If{Test: test, Then: then, Else: elseExpr}, nil
}

// parseWhen desugars "(when test body...)" into "(if test (do body...) nil)".
func parseWhen(p *Parser, pos token.Pos) (ast.Expr, error) {
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBodyUntilRparen(pos, "when")
	if err != nil {
		return nil, err
	}
	return ast.If{Test: test, Then: ast.Do{Exprs: body}, Else: ast.Nil{}}, nil
}

func parseDo(p *Parser, pos token.Pos) (ast.Expr, error) {
	body, err := p.parseBodyUntilRparen(pos, "do")
	if err != nil {
		return nil, err
	}
	return ast.Do{Exprs: body}, nil
}

// parseWhile desugars "(while test body...)" into a zero-arg loop that
// recurs while test holds (spec's loop/recur is the only primitive
// iteration construct; while/until are sugar over it).
func parseWhile(p *Parser, pos token.Pos) (ast.Expr, error) {
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBodyUntilRparen(pos, "while")
	if err != nil {
		return nil, err
	}
	return whileLoop(test, body), nil
}

func parseUntil(p *Parser, pos token.Pos) (ast.Expr, error) {
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBodyUntilRparen(pos, "until")
	if err != nil {
		return nil, err
	}
	negated := ast.NewCall(pos, ast.Symbol{Name: "not"}, []ast.Expr{test})
	return whileLoop(negated, body), nil
}

func whileLoop(test ast.Expr, body []ast.Expr) ast.Expr {
	loopBody := append(append([]ast.Expr{}, body...), ast.Recur{})
	then := ast.Do{Exprs: loopBody}
	return ast.Loop{
		Bindings: nil,
		Body:     []ast.Expr{ast.If{Test: test, Then: then, Else: ast.Nil{}}},
	}
}

func parseLoop(p *Parser, pos token.Pos) (ast.Expr, error) {
	bindings, err := p.parseBindingVector()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBodyUntilRparen(pos, "loop")
	if err != nil {
		return nil, err
	}
	return ast.Loop{Bindings: bindings, Body: body}, nil
}

func parseRecur(p *Parser, pos token.Pos) (ast.Expr, error) {
	var args []ast.Expr
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RPAREN {
			p.next()
			return ast.Recur{Args: args}, nil
		}
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
}

func parseTry(p *Parser, pos token.Pos) (ast.Expr, error) {
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := expectRparen(p, pos, "try"); err != nil {
		return nil, err
	}
	return ast.Try{Body: body}, nil
}

func parseDefer(p *Parser, pos token.Pos) (ast.Expr, error) {
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := expectRparen(p, pos, "defer"); err != nil {
		return nil, err
	}
	return ast.Defer{Body: body}, nil
}

func parseGo(p *Parser, pos token.Pos) (ast.Expr, error) {
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := expectRparen(p, pos, "go"); err != nil {
		return nil, err
	}
	return ast.Spawn{Body: body}, nil
}

func parseQuoteForm(p *Parser, pos token.Pos) (ast.Expr, error) {
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := expectRparen(p, pos, "quote"); err != nil {
		return nil, err
	}
	return ast.Quote{Body: body}, nil
}

func parseQuasiquoteForm(p *Parser, pos token.Pos) (ast.Expr, error) {
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := expectRparen(p, pos, "quasiquote"); err != nil {
		return nil, err
	}
	return ast.Quasiquote{Body: body}, nil
}

func parseUnquoteForm(p *Parser, pos token.Pos) (ast.Expr, error) {
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := expectRparen(p, pos, "unquote"); err != nil {
		return nil, err
	}
	return ast.Unquote{Body: body}, nil
}

func parseMacroDef(p *Parser, pos token.Pos) (ast.Expr, error) {
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, err
	}
	params, rest, variadic, err := p.parseParamVector()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBodyUntilRparen(pos, "macro")
	if err != nil {
		return nil, err
	}
	return ast.MacroDef{Name: nameTok.Text, Params: params, Rest: rest, IsVariadic: variadic, Body: body}, nil
}

func parseModule(p *Parser, pos token.Pos) (ast.Expr, error) {
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, err
	}
	if err := expectRparen(p, pos, "module"); err != nil {
		return nil, err
	}
	return ast.ModuleDecl{Name: nameTok.Text}, nil
}

func parseExport(p *Parser, pos token.Pos) (ast.Expr, error) {
	var names []string
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RPAREN {
			return ast.Export{Names: names}, nil
		}
		if tok.Kind != token.SYMBOL {
			return nil, fmt.Errorf("parse error at %s: malformed export, expected symbol", tok.Pos)
		}
		names = append(names, tok.Text)
	}
}

// parseUse parses "(use path)", "(use path :only [a b])", and
// "(use path :as alias)" (§4.8's three import modes).
func parseUse(p *Parser, pos token.Pos) (ast.Expr, error) {
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.RPAREN {
		p.next()
		return ast.Use{Module: nameTok.Text, Mode: ast.UseAll}, nil
	}
	if tok.Kind != token.KEYWORD {
		return nil, fmt.Errorf("parse error at %s: malformed use", tok.Pos)
	}
	p.next()
	switch tok.Text {
	case "only":
		if _, err := p.expect(token.LBRACK); err != nil {
			return nil, err
		}
		var names []string
		for {
			nt, err := p.next()
			if err != nil {
				return nil, err
			}
			if nt.Kind == token.RBRACK {
				break
			}
			if nt.Kind != token.SYMBOL {
				return nil, fmt.Errorf("parse error at %s: malformed use :only list", nt.Pos)
			}
			names = append(names, nt.Text)
		}
		if err := expectRparen(p, pos, "use"); err != nil {
			return nil, err
		}
		return ast.Use{Module: nameTok.Text, Mode: ast.UseOnly, Names: names}, nil
	case "as":
		aliasTok, err := p.expect(token.SYMBOL)
		if err != nil {
			return nil, err
		}
		if err := expectRparen(p, pos, "use"); err != nil {
			return nil, err
		}
		return ast.Use{Module: nameTok.Text, Mode: ast.UseAliased, Alias: aliasTok.Text}, nil
	}
	return nil, fmt.Errorf("parse error at %s: unknown use modifier :%s", tok.Pos, tok.Text)
}

// parseAnd desugars "(and a b c)" into nested short-circuiting lets:
// "(let [t a] (if t (let [t b] (if t c t)) t))", so no operand after the
// first falsy one is ever evaluated (§4.3 "and/or short-circuit").
func parseAnd(p *Parser, pos token.Pos) (ast.Expr, error) {
	operands, err := p.parseBodyUntilRparen(pos, "and")
	if err != nil {
		return nil, err
	}
	if len(operands) == 0 {
		return ast.Bool{Value: true}, nil
	}
	return foldShortCircuit(operands, true), nil
}

// parseOr desugars "(or a b c)" the same way and/or: the first truthy
// operand's value is returned without evaluating the rest.
func parseOr(p *Parser, pos token.Pos) (ast.Expr, error) {
	operands, err := p.parseBodyUntilRparen(pos, "or")
	if err != nil {
		return nil, err
	}
	if len(operands) == 0 {
		return ast.Bool{Value: false}, nil
	}
	return foldShortCircuit(operands, false), nil
}

// foldShortCircuit builds the nested let/if chain shared by and (stopOn
// falsy) and or (stopOn truthy, i.e. stopOnFalsy=false).
func foldShortCircuit(operands []ast.Expr, stopOnFalsy bool) ast.Expr {
	const tmp = "and-or-tmp"
	if len(operands) == 1 {
		return operands[0]
	}
	rest := foldShortCircuit(operands[1:], stopOnFalsy)
	binding := ast.Binding{Name: tmp, Value: operands[0]}
	tmpRef := ast.Symbol{Name: tmp}
	if stopOnFalsy {
		return ast.Let{Bindings: []ast.Binding{binding}, Body: []ast.Expr{ast.If{Test: tmpRef, Then: rest, Else: tmpRef}}}
	}
	return ast.Let{Bindings: []ast.Binding{binding}, Body: []ast.Expr{ast.If{Test: tmpRef, Then: tmpRef, Else: rest}}}
}

func parseMatch(p *Parser, pos token.Pos) (ast.Expr, error) {
	subject, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var arms []ast.MatchArm
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.RPAREN {
			p.next()
			return ast.Match{Subject: subject, Arms: arms}, nil
		}
		arm, err := p.parseMatchArm()
		if err != nil {
			return nil, err
		}
		arms = append(arms, arm)
	}
}

// parseMatchArm parses "(pattern [when guard] -> body)".
func (p *Parser) parseMatchArm() (ast.MatchArm, error) {
	armPos, err := p.expect(token.LPAREN)
	if err != nil {
		return ast.MatchArm{}, err
	}
	pat, err := p.parsePattern()
	if err != nil {
		return ast.MatchArm{}, err
	}
	var guard ast.Expr
	tok, err := p.peek()
	if err != nil {
		return ast.MatchArm{}, err
	}
	if tok.Kind == token.SYMBOL && tok.Text == "when" {
		p.next()
		guard, err = p.parseExpr()
		if err != nil {
			return ast.MatchArm{}, err
		}
	}
	if _, err := p.expect(token.ARROW); err != nil {
		return ast.MatchArm{}, fmt.Errorf("parse error at %s: expected '->' in match arm: %w", armPos.Pos, err)
	}
	body, err := p.parseExpr()
	if err != nil {
		return ast.MatchArm{}, err
	}
	if err := expectRparen(p, armPos.Pos, "match arm"); err != nil {
		return ast.MatchArm{}, err
	}
	return ast.MatchArm{Pattern: pat, Guard: guard, Body: body}, nil
}
