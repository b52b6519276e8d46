package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"qilang.dev/qi/internal/value"
)

func TestEqualDistinguishesListsFromVectors(t *testing.T) {
	list := value.NewList(value.Int(1), value.Int(2))
	vec := value.NewVector(value.Int(1), value.Int(2))
	assert.False(t, value.Equal(list, vec), "a list and a vector with equal elements are still distinct types")
	assert.False(t, value.Equal(vec, list))
}

func TestEqualMatchesSameTypeSameElements(t *testing.T) {
	assert.True(t, value.Equal(value.NewList(value.Int(1)), value.NewList(value.Int(1))))
	assert.True(t, value.Equal(value.NewVector(value.Int(1)), value.NewVector(value.Int(1))))
}
