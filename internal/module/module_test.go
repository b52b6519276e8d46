package module_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qilang.dev/qi/internal/module"
	"qilang.dev/qi/internal/value"
)

func TestBeginThenFinishMarksLoaded(t *testing.T) {
	reg := module.NewRegistry(value.NewFrame())

	m, alreadyLoaded, err := reg.Begin("mathx")
	require.NoError(t, err)
	assert.False(t, alreadyLoaded)

	_, ok := reg.Get("mathx")
	assert.False(t, ok, "module isn't visible via Get until Finish")

	reg.Finish("mathx")
	got, ok := reg.Get("mathx")
	assert.True(t, ok)
	assert.Same(t, m, got)
}

func TestBeginWhileLoadingIsCyclicError(t *testing.T) {
	reg := module.NewRegistry(value.NewFrame())
	_, _, err := reg.Begin("a")
	require.NoError(t, err)

	_, _, err = reg.Begin("a")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}

func TestReBeginAfterFinishIsNoOp(t *testing.T) {
	reg := module.NewRegistry(value.NewFrame())
	m, _, err := reg.Begin("a")
	require.NoError(t, err)
	reg.Finish("a")

	again, alreadyLoaded, err := reg.Begin("a")
	require.NoError(t, err)
	assert.True(t, alreadyLoaded)
	assert.Same(t, m, again)
}

func TestLookupRequiresExport(t *testing.T) {
	reg := module.NewRegistry(value.NewFrame())
	m, _, err := reg.Begin("a")
	require.NoError(t, err)
	m.Frame.Define("secret", value.Int(1))
	m.Frame.Define("pub", value.Int(2))
	m.Export("pub")
	reg.Finish("a")

	_, _, err = m.Lookup("secret")
	assert.Error(t, err)

	v, ok, err := m.Lookup("pub")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, value.Int(2), v)
}

func TestExportedNames(t *testing.T) {
	reg := module.NewRegistry(value.NewFrame())
	m, _, _ := reg.Begin("a")
	m.Export("x", "y")
	assert.ElementsMatch(t, []string{"x", "y"}, m.ExportedNames())
}
