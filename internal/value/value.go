// Package value implements Qi's runtime value model (§3 "Value")
// and the lexical environment it is bound through (§4.4
// "Environment and scoping").
//
// The two live in one package deliberately: §9 calls out that
// "user-level closures may reference each other through shared
// environments" and a Function value's captured Frame can in turn hold
// that same function — a cyclic value graph. Modeling Value and Frame
// in separate packages would force an import cycle (Function needs a
// Frame field, Frame needs to store Values); nperez-losp sidesteps this
// by keeping its own runtime value (expr.Expr) and its namespace
// (eval.Namespace) adjacent under internal/eval, and other_examples'
// minimal Scheme interpreter (launix-de/memcp's scm package) takes the
// same single-package approach for the identical reason. Qi follows
// suit.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is the interpreter's runtime sum type (§3).
type Value interface {
	// Type returns a short type tag used in type-error messages.
	Type() string
	// String returns a printable (re-readable where practical)
	// representation, used by SAY-equivalent natives and diagnostics.
	String() string
	valueNode()
}

// Truthy implements §4.3: only false and nil are falsy.
func Truthy(v Value) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case Nil:
		return false
	case Bool:
		return bool(t)
	}
	return true
}

// --- Scalars ---

type Nil struct{}

func (Nil) Type() string   { return "nil" }
func (Nil) String() string { return "nil" }
func (Nil) valueNode()     {}

type Bool bool

func (Bool) Type() string { return "boolean" }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) valueNode() {}

type Int int64

func (Int) Type() string     { return "integer" }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (Int) valueNode()       {}

type Float float64

func (Float) Type() string     { return "float" }
func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (Float) valueNode()       {}

type Str string

func (Str) Type() string     { return "string" }
func (s Str) String() string { return string(s) }
func (Str) valueNode()       {}

// Keyword is an interned symbolic constant (":name" surface syntax).
type Keyword string

func (Keyword) Type() string     { return "keyword" }
func (k Keyword) String() string { return ":" + string(k) }
func (Keyword) valueNode()       {}

// Sym is a symbol treated as first-class data, produced by quoting code
// and consumed by the macro expander (§4.7 "code as data"); it is
// distinct from Str and Keyword so quoted source faithfully round-trips.
type Sym string

func (Sym) Type() string     { return "symbol" }
func (s Sym) String() string { return string(s) }
func (Sym) valueNode()       {}

// --- Collections ---

// List is an ordered, logically-immutable sequence built by (quote ...)
// and list literals; operations return new Lists rather than mutating.
type List struct {
	Elems []Value
}

func NewList(elems ...Value) *List { return &List{Elems: elems} }

func (*List) Type() string { return "list" }
func (l *List) String() string {
	return "(" + joinValues(l.Elems, " ") + ")"
}
func (*List) valueNode() {}

// Vector is an ordered, indexed, logically-immutable sequence.
type Vector struct {
	Elems []Value
}

func NewVector(elems ...Value) *Vector { return &Vector{Elems: elems} }

func (*Vector) Type() string { return "vector" }
func (v *Vector) String() string {
	return "[" + joinValues(v.Elems, " ") + "]"
}
func (*Vector) valueNode() {}

func joinValues(vs []Value, sep string) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = nestedString(v)
	}
	return strings.Join(parts, sep)
}

// nestedString renders v as an element of a printed collection: a Str is
// quoted there (so {:error "boom"} stays re-readable), while a top-level
// Str still prints raw through its own String.
func nestedString(v Value) string {
	if s, ok := v.(Str); ok {
		return strconv.Quote(string(s))
	}
	return v.String()
}

// MapKey returns the canonical lookup key for a scalar Value used as a
// Map/Set member, and whether v is hashable. Keyword and string forms of
// the same name are distinct (§4.3), so the tag is part of the key.
func MapKey(v Value) (string, bool) {
	switch t := v.(type) {
	case Nil:
		return "nil:", true
	case Bool:
		return fmt.Sprintf("bool:%v", bool(t)), true
	case Int:
		return fmt.Sprintf("int:%d", int64(t)), true
	case Float:
		return fmt.Sprintf("float:%v", float64(t)), true
	case Str:
		return "str:" + string(t), true
	case Keyword:
		return "kw:" + string(t), true
	case Sym:
		return "sym:" + string(t), true
	}
	return "", false
}

// Map preserves insertion order; lookups are keyed canonically via MapKey.
type Map struct {
	keys   []Value
	vals   []Value
	index  map[string]int
}

func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

func (*Map) Type() string { return "map" }

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(nestedString(k))
		sb.WriteByte(' ')
		sb.WriteString(nestedString(m.vals[i]))
	}
	sb.WriteByte('}')
	return sb.String()
}
func (*Map) valueNode() {}

// Set stores the entry, overwriting the value if the key already exists
// and returning a new Map so the receiver stays logically immutable.
func (m *Map) Set(k, v Value) *Map {
	out := m.Clone()
	key, ok := MapKey(k)
	if !ok {
		key = k.String()
	}
	if i, exists := out.index[key]; exists {
		out.vals[i] = v
		return out
	}
	out.index[key] = len(out.keys)
	out.keys = append(out.keys, k)
	out.vals = append(out.vals, v)
	return out
}

// Get looks up k, returning (value, true) or (Nil{}, false).
func (m *Map) Get(k Value) (Value, bool) {
	key, ok := MapKey(k)
	if !ok {
		key = k.String()
	}
	i, exists := m.index[key]
	if !exists {
		return Nil{}, false
	}
	return m.vals[i], true
}

// Delete returns a new Map with k removed.
func (m *Map) Delete(k Value) *Map {
	key, ok := MapKey(k)
	if !ok {
		key = k.String()
	}
	i, exists := m.index[key]
	if !exists {
		return m.Clone()
	}
	out := NewMap()
	for j := range m.keys {
		if j == i {
			continue
		}
		out = out.Set(m.keys[j], m.vals[j])
	}
	return out
}

func (m *Map) Clone() *Map {
	out := &Map{
		keys:  append([]Value{}, m.keys...),
		vals:  append([]Value{}, m.vals...),
		index: make(map[string]int, len(m.index)),
	}
	for k, v := range m.index {
		out.index[k] = v
	}
	return out
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []Value { return m.keys }

// Entries returns (key, value) pairs in insertion order.
func (m *Map) Entries() ([]Value, []Value) { return m.keys, m.vals }

func (m *Map) Len() int { return len(m.keys) }

// Set (the collection) is an unordered collection of unique values.
// Qi preserves first-insertion order internally purely for deterministic
// printing; spec does not require iteration order for Set.
type Set struct {
	elems []Value
	index map[string]int
}

func NewSet(elems ...Value) *Set {
	s := &Set{index: make(map[string]int)}
	for _, e := range elems {
		s = s.Add(e)
	}
	return s
}

func (*Set) Type() string { return "set" }
func (s *Set) String() string {
	return "#{" + joinValues(s.elems, " ") + "}"
}
func (*Set) valueNode() {}

func (s *Set) Add(v Value) *Set {
	key, ok := MapKey(v)
	if !ok {
		key = v.String()
	}
	if _, exists := s.index[key]; exists {
		return s.Clone()
	}
	out := s.Clone()
	out.index[key] = len(out.elems)
	out.elems = append(out.elems, v)
	return out
}

func (s *Set) Has(v Value) bool {
	key, ok := MapKey(v)
	if !ok {
		key = v.String()
	}
	_, exists := s.index[key]
	return exists
}

func (s *Set) Clone() *Set {
	out := &Set{
		elems: append([]Value{}, s.elems...),
		index: make(map[string]int, len(s.index)),
	}
	for k, v := range s.index {
		out.index[k] = v
	}
	return out
}

func (s *Set) Elems() []Value { return s.elems }
func (s *Set) Len() int       { return len(s.elems) }

// Seq returns v's elements if it is a List or Vector, and ok=true.
func Seq(v Value) (elems []Value, ok bool) {
	switch t := v.(type) {
	case *List:
		return t.Elems, true
	case *Vector:
		return t.Elems, true
	}
	return nil, false
}

// Equal implements §4.3 equality: structural on scalars and
// immutable compounds, identity-based on mutable-with-identity values
// (Atom, Channel, ThreadHandle, Scope), pointer identity on Opaque.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Nil:
		_, ok := b.(Nil)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Int:
		switch y := b.(type) {
		case Int:
			return x == y
		case Float:
			return float64(x) == float64(y)
		}
		return false
	case Float:
		switch y := b.(type) {
		case Float:
			return x == y
		case Int:
			return float64(x) == float64(y)
		}
		return false
	case Str:
		y, ok := b.(Str)
		return ok && x == y
	case Keyword:
		y, ok := b.(Keyword)
		return ok && x == y
	case Sym:
		y, ok := b.(Sym)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		if !ok || len(y.Elems) != len(x.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Vector:
		y, ok := b.(*Vector)
		if !ok || len(y.Elems) != len(x.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || y.Len() != x.Len() {
			return false
		}
		for i, k := range x.keys {
			yv, exists := y.Get(k)
			if !exists || !Equal(x.vals[i], yv) {
				return false
			}
		}
		return true
	case *Set:
		y, ok := b.(*Set)
		if !ok || y.Len() != x.Len() {
			return false
		}
		for _, e := range x.elems {
			if !y.Has(e) {
				return false
			}
		}
		return true
	}
	// Mutable-with-identity and opaque values: pointer identity.
	return a == b
}
