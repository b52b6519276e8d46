// Package qerrors implements Qi's error taxonomy and stack-trace
// accumulation (§4.6 "Error model and propagation").
//
// nperez-losp has no typed error hierarchy: errors are plain
// fmt.Errorf-wrapped strings threaded with %w (see eval.go's
// evalBodyForDeferredStore). Qi keeps that wrapping discipline but gives
// it a typed Kind and a growing call-site Stack, so the top-level
// reporter can show kind, formatted message, and the stack of source
// positions from the innermost native call outward — information a
// bare error string cannot carry.
package qerrors

import (
	"fmt"
	"os"
	"strings"

	"qilang.dev/qi/internal/token"

	"go.uber.org/multierr"
)

// kindCatalog translates a Kind's label for the diagnostic message
// catalog selected by QI_LANG (§6 "a language selector affecting
// the message catalog used for diagnostics"). Only the kind label is
// localized; Message text itself is produced by call sites and stays in
// whatever language the caller wrote it in, same as nperez-losp never
// localized its own fmt.Errorf strings.
var kindCatalog = map[string]map[Kind]string{
	"es": {
		Syntax:          "sintaxis",
		NameUnbound:     "nombre-no-ligado",
		Arity:           "aridad",
		Type:            "tipo",
		Arithmetic:      "aritmetica",
		MatchFailure:    "fallo-de-coincidencia",
		IndexOutOfRange: "indice-fuera-de-rango",
		IO:              "e-s",
		Concurrency:     "concurrencia",
		Module:          "modulo",
		Native:          "nativo",
		User:            "usuario",
	},
}

// locale holds QI_LANG, read once at package initialization rather than
// re-reading the environment on every error formatted.
var locale = os.Getenv("QI_LANG")

// localizedKind returns k's label in the QI_LANG locale if a catalog
// entry exists, otherwise k's default (English) String().
func localizedKind(k Kind) string {
	if table, ok := kindCatalog[locale]; ok {
		if label, ok := table[k]; ok {
			return label
		}
	}
	return k.String()
}

// Kind is the error taxonomy of §4.6.
type Kind int

const (
	Syntax Kind = iota
	NameUnbound
	Arity
	Type
	Arithmetic
	MatchFailure
	IndexOutOfRange
	IO
	Concurrency
	Module
	Native
	User
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "syntax"
	case NameUnbound:
		return "name-unbound"
	case Arity:
		return "arity"
	case Type:
		return "type"
	case Arithmetic:
		return "arithmetic"
	case MatchFailure:
		return "match-failure"
	case IndexOutOfRange:
		return "index-out-of-range"
	case IO:
		return "io"
	case Concurrency:
		return "concurrency"
	case Module:
		return "module"
	case Native:
		return "native"
	case User:
		return "user"
	}
	return "unknown"
}

// Frame is one call/apply site recorded as an error unwinds.
type Frame struct {
	FuncName string
	Pos      token.Pos
}

// Error is Qi's structured runtime/diagnostic error.
type Error struct {
	Kind    Kind
	Message string
	Pos     token.Pos
	Stack   []Frame
	cause   error
}

func New(kind Kind, pos token.Pos, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

func Wrap(kind Kind, pos token.Pos, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos, cause: cause}
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s (at %s)", localizedKind(e.Kind), e.Message, e.Pos)
	if e.cause != nil {
		fmt.Fprintf(&sb, ": %v", e.cause)
	}
	for _, f := range e.Stack {
		fmt.Fprintf(&sb, "\n  at %s (%s)", f.FuncName, f.Pos)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.cause }

// WithFrame returns a copy of e with one more call-site frame appended,
// innermost-first (matching how the evaluator discovers frames as it
// unwinds outward through nested calls).
func (e *Error) WithFrame(funcName string, pos token.Pos) *Error {
	cp := *e
	cp.Stack = append(append([]Frame{}, e.Stack...), Frame{FuncName: funcName, Pos: pos})
	return &cp
}

// As reports whether err is (or wraps) a *Error, per the errors.As protocol.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// CombineUnwind merges a secondary error raised by a deferred expression
// during unwinding with the original error being propagated, without
// letting the secondary error replace the original (§4.6: "a
// deferred expression that itself errors does not replace the original
// error — it is logged and unwinding continues"). The caller is expected
// to log deferErr and keep propagating the combined value's primary
// (original) message; the combined error keeps both, so callers that do
// want the full picture (e.g. top-level reporting) can see both.
func CombineUnwind(original, deferErr error) error {
	if deferErr == nil {
		return original
	}
	if original == nil {
		return deferErr
	}
	return multierr.Append(original, deferErr)
}
