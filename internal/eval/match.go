package eval

import (
	"sort"

	"qilang.dev/qi/internal/ast"
	"qilang.dev/qi/internal/qerrors"
	"qilang.dev/qi/internal/value"
)

// evalMatch evaluates the subject once, then tries each arm's pattern in
// order against it in a fresh child frame; the first pattern that binds
// successfully (and whose optional guard, if any, is truthy) has its
// body evaluated in that frame (§4.4 "Pattern matching"). No arm
// matching is a MatchFailure error, not a silent nil.
func (e *Evaluator) evalMatch(n ast.Match, frame *value.Frame) (value.Value, error) {
	subject, err := e.Eval(n.Subject, frame)
	if err != nil {
		return nil, err
	}
	for _, arm := range n.Arms {
		if err := checkOrPatternVars(arm.Pattern); err != nil {
			return nil, err
		}
		child := frame.Child()
		if !e.matchPattern(arm.Pattern, subject, child) {
			continue
		}
		if arm.Guard != nil {
			g, err := e.Eval(arm.Guard, child)
			if err != nil {
				return nil, err
			}
			if !value.Truthy(g) {
				continue
			}
		}
		return e.Eval(arm.Body, child)
	}
	return nil, qerrors.New(qerrors.MatchFailure, n.Pos(), "no match arm matched value %s", subject.String())
}

// checkOrPatternVars walks p looking for an ast.OrPattern whose
// alternatives don't all bind the same set of variable names, which
// §4.5 calls for diagnosing at match time ("the set of variable names
// bound must be identical across all alternatives"). It's a static check
// over the pattern tree, independent of the value being matched, so it
// runs before matchPattern attempts anything.
func checkOrPatternVars(p ast.Pattern) error {
	switch pat := p.(type) {
	case ast.OrPattern:
		for _, alt := range pat.Alternatives {
			if err := checkOrPatternVars(alt); err != nil {
				return err
			}
		}
		if len(pat.Alternatives) == 0 {
			return nil
		}
		want := patternVars(pat.Alternatives[0])
		for _, alt := range pat.Alternatives[1:] {
			got := patternVars(alt)
			if !sameVarSet(want, got) {
				return qerrors.New(qerrors.MatchFailure, pat.Pos(),
					"or-pattern alternatives bind different variables: %v vs %v",
					sortedKeys(want), sortedKeys(got))
			}
		}
		return nil
	case ast.VectorPattern:
		for _, sub := range pat.Elems {
			if err := checkOrPatternVars(sub); err != nil {
				return err
			}
		}
	case ast.SeqRestPattern:
		for _, sub := range pat.Elems {
			if err := checkOrPatternVars(sub); err != nil {
				return err
			}
		}
	case ast.MapPattern:
		for _, entry := range pat.Entries {
			if err := checkOrPatternVars(entry.Pattern); err != nil {
				return err
			}
		}
	case ast.AsPattern:
		return checkOrPatternVars(pat.Sub)
	}
	return nil
}

// patternVars collects every variable name p would bind on a successful
// match (VarPattern, AsPattern, and a SeqRestPattern's rest name),
// recursing into sub-patterns.
func patternVars(p ast.Pattern) map[string]bool {
	vars := make(map[string]bool)
	var walk func(ast.Pattern)
	walk = func(p ast.Pattern) {
		switch pat := p.(type) {
		case ast.VarPattern:
			vars[pat.Name] = true
		case ast.VectorPattern:
			for _, sub := range pat.Elems {
				walk(sub)
			}
		case ast.SeqRestPattern:
			for _, sub := range pat.Elems {
				walk(sub)
			}
			vars[pat.Rest] = true
		case ast.MapPattern:
			for _, entry := range pat.Entries {
				walk(entry.Pattern)
			}
		case ast.OrPattern:
			if len(pat.Alternatives) > 0 {
				walk(pat.Alternatives[0])
			}
		case ast.AsPattern:
			walk(pat.Sub)
			vars[pat.Name] = true
		}
	}
	walk(p)
	return vars
}

func sameVarSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// matchPattern reports whether p matches v, binding any pattern
// variables into frame as a side effect. A failed match may still have
// bound some variables in frame, but the caller (evalMatch) discards
// that frame entirely on failure, so partial bindings are never visible.
func (e *Evaluator) matchPattern(p ast.Pattern, v value.Value, frame *value.Frame) bool {
	switch pat := p.(type) {
	case ast.WildcardPattern:
		return true
	case ast.NilPattern:
		_, ok := v.(value.Nil)
		return ok
	case ast.BoolPattern:
		b, ok := v.(value.Bool)
		return ok && bool(b) == pat.Value
	case ast.IntPattern:
		switch n := v.(type) {
		case value.Int:
			return int64(n) == pat.Value
		case value.Float:
			return float64(n) == float64(pat.Value)
		}
		return false
	case ast.FloatPattern:
		switch n := v.(type) {
		case value.Float:
			return float64(n) == pat.Value
		case value.Int:
			return float64(n) == pat.Value
		}
		return false
	case ast.StrPattern:
		s, ok := v.(value.Str)
		return ok && string(s) == pat.Value
	case ast.KeywordPattern:
		k, ok := v.(value.Keyword)
		return ok && string(k) == pat.Name
	case ast.VarPattern:
		frame.Define(pat.Name, v)
		return true
	case ast.VectorPattern:
		elems, ok := value.Seq(v)
		if !ok || len(elems) != len(pat.Elems) {
			return false
		}
		for i, sub := range pat.Elems {
			if !e.matchPattern(sub, elems[i], frame) {
				return false
			}
		}
		return true
	case ast.SeqRestPattern:
		elems, ok := value.Seq(v)
		if !ok || len(elems) < len(pat.Elems) {
			return false
		}
		for i, sub := range pat.Elems {
			if !e.matchPattern(sub, elems[i], frame) {
				return false
			}
		}
		frame.Define(pat.Rest, value.NewList(elems[len(pat.Elems):]...))
		return true
	case ast.MapPattern:
		m, ok := v.(*value.Map)
		if !ok {
			return false
		}
		for _, entry := range pat.Entries {
			keyVal, err := e.Eval(entry.Key, frame)
			if err != nil {
				return false
			}
			fieldVal, present := m.Get(keyVal)
			if !present {
				return false
			}
			if !e.matchPattern(entry.Pattern, fieldVal, frame) {
				return false
			}
		}
		return true
	case ast.OrPattern:
		for _, alt := range pat.Alternatives {
			if e.matchPattern(alt, v, frame) {
				return true
			}
		}
		return false
	case ast.AsPattern:
		if !e.matchPattern(pat.Sub, v, frame) {
			return false
		}
		frame.Define(pat.Name, v)
		return true
	}
	return false
}
