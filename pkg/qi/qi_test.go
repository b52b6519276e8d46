package qi_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qilang.dev/qi/pkg/qi"
)

func eval(t *testing.T, src string) fmt.Stringer {
	t.Helper()
	rt, err := qi.New()
	require.NoError(t, err)
	defer rt.Close()
	v, err := rt.Eval(src)
	require.NoError(t, err)
	return v
}

func TestArithmeticAndComparison(t *testing.T) {
	assert.Equal(t, "6", eval(t, "(+ 1 2 3)").String())
	assert.Equal(t, "1.5", eval(t, "(/ 3 2)").String())
	assert.Equal(t, "true", eval(t, "(< 1 2 3)").String())
	assert.Equal(t, "false", eval(t, "(< 1 3 2)").String())
}

func TestLetIfFn(t *testing.T) {
	assert.Equal(t, "3", eval(t, "(let [x 1 y 2] (+ x y))").String())
	assert.Equal(t, "yes", eval(t, `(if true "yes" "no")`).String())
	assert.Equal(t, "5", eval(t, "(let [f (fn [a b] (+ a b))] (f 2 3))").String())
}

func TestLoopRecur(t *testing.T) {
	assert.Equal(t, "10", eval(t, "(loop [i 0 acc 0] (if (= i 5) acc (recur (+ i 1) (+ acc i))))").String())
}

func TestMatch(t *testing.T) {
	assert.Equal(t, "one", eval(t, `(match 1 (1 -> "one") (_ -> "other"))`).String())
	assert.Equal(t, "other", eval(t, `(match 2 (1 -> "one") (_ -> "other"))`).String())
}

func TestQuoteQuasiquote(t *testing.T) {
	assert.Equal(t, "(1 2 3)", eval(t, "(quote (1 2 3))").String())
	assert.Equal(t, "(1 4 3)", eval(t, "(let [x 4] (quasiquote (1 (unquote x) 3)))").String())
}

func TestMacro(t *testing.T) {
	src := `
(mac unless [test body] (quasiquote (if (unquote test) nil (unquote body))))
(unless false 42)
`
	assert.Equal(t, "42", eval(t, src).String())
}

func TestAndOrShortCircuit(t *testing.T) {
	assert.Equal(t, "false", eval(t, "(and true false (error-should-not-run))").String())
	assert.Equal(t, "true", eval(t, "(or false true (error-should-not-run))").String())
}

func TestTryCatchesError(t *testing.T) {
	v := eval(t, `(try (/ 1 0))`)
	assert.Contains(t, v.String(), ":error")
}

func TestTryReturnsRawValueOnSuccess(t *testing.T) {
	assert.Equal(t, "3", eval(t, "(try (+ 1 2))").String())
}

func TestUserErrorNative(t *testing.T) {
	assert.Equal(t, `{:error "boom"}`, eval(t, `(try (error "boom"))`).String())
}

func TestCollections(t *testing.T) {
	assert.Equal(t, "3", eval(t, "(count [1 2 3])").String())
	assert.Equal(t, "[2 4 6]", eval(t, "(map (fn [x] (* x 2)) [1 2 3])").String())
	assert.Equal(t, "[2 4]", eval(t, "(filter (fn [x] (= (mod x 2) 0)) [1 2 3 4])").String())
	assert.Equal(t, "6", eval(t, "(reduce (fn [a b] (+ a b)) 0 [1 2 3])").String())
}

func TestKeywordInFunctionPositionLooksUpMap(t *testing.T) {
	assert.Equal(t, "1", eval(t, "(:a {:a 1 :b 2})").String())
	assert.Equal(t, "nil", eval(t, "(:missing {:a 1})").String())
}

func TestConcurrencyAtomDerefAndSwap(t *testing.T) {
	assert.Equal(t, "1", eval(t, "(deref (atom 1))").String())
	assert.Equal(t, "2", eval(t, "(swap! (atom 1) (fn [x] (+ x 1)))").String())
}

func TestChanSendRecvClose(t *testing.T) {
	src := `(def ch (chan 1)) (send! ch :x) (close! ch) [(recv! ch) (recv! ch)]`
	assert.Equal(t, "[:x nil]", eval(t, src).String())
}

func TestFanOutFanIn(t *testing.T) {
	src := `
(def outs (fan-out 9 3))
(recv! (fan-in outs))
`
	assert.Equal(t, "9", eval(t, src).String())
}

func TestPrintWritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	rt, err := qi.New(qi.WithOutput(&buf))
	require.NoError(t, err)
	defer rt.Close()
	_, err = rt.Eval(`(println "hello")`)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", buf.String())
}

func TestModuleUseAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mathx.qi"), []byte(`
(module mathx)
(def square (fn [x] (* x x)))
(export square)
`), 0o644))

	rt, err := qi.New(qi.WithModuleSearchDir(dir))
	require.NoError(t, err)
	defer rt.Close()

	v, err := rt.Eval("(use mathx) (square 5)")
	require.NoError(t, err)
	assert.Equal(t, "25", v.String())
}

func TestModuleUseAliased(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mathx.qi"), []byte(`
(module mathx)
(def square (fn [x] (* x x)))
(export square)
`), 0o644))

	rt, err := qi.New(qi.WithModuleSearchDir(dir))
	require.NoError(t, err)
	defer rt.Close()

	v, err := rt.Eval("(use mathx :as m) (m/square 4)")
	require.NoError(t, err)
	assert.Equal(t, "16", v.String())
}

func TestOrPatternAlternativesMustBindSameVars(t *testing.T) {
	rt, err := qi.New()
	require.NoError(t, err)
	defer rt.Close()
	_, err = rt.Eval(`(match 1 (((x as a) | (y as b)) -> a))`)
	assert.Error(t, err)
}

func TestPipeOperators(t *testing.T) {
	assert.Equal(t, "4", eval(t, "2 |> (fn [x] (* x 2))").String())
}

func TestPipeThreadsLastIntoCallStage(t *testing.T) {
	src := "[1 2 3 4 5] |> (filter (fn [x] (> x 2))) |> (map (fn [x] (* x 10)))"
	assert.Equal(t, "[30 40 50]", eval(t, src).String())
}

func TestRailPipeShortCircuitsOnError(t *testing.T) {
	assert.Equal(t, `{:error "boom"}`, eval(t, `(try (error "boom")) |>? (fn [x] (* x 2))`).String())
	assert.Equal(t, "8", eval(t, `(try 4) |>? (fn [x] (* x 2))`).String())
}

func TestModuleNotExportedIsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "priv.qi"), []byte(`
(module priv)
(def secret 1)
`), 0o644))

	rt, err := qi.New(qi.WithModuleSearchDir(dir))
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Eval("(use priv) secret")
	assert.Error(t, err)
}
