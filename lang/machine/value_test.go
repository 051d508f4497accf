package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueStrings(t *testing.T) {
	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, "-7", Int(-7).String())
	assert.Equal(t, "true", True.String())
	assert.Equal(t, "false", False.String())
	assert.Equal(t, "()", Unit.String())

	assert.Equal(t, "int", Int(0).Type())
	assert.Equal(t, "bool", True.Type())
	assert.Equal(t, "unit", Unit.Type())
	assert.Equal(t, "block", NewBlock(nil).Type())
	assert.Equal(t, "closure", (&Closure{}).Type())
}

func TestBlockFields(t *testing.T) {
	b := NewBlock([]Value{Int(10), Int(20)})
	require.Equal(t, 2, b.Len())

	v, err := b.Field(1)
	require.NoError(t, err)
	assert.Equal(t, Int(20), v)

	_, err = b.Field(2)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = b.Field(-1)
	require.ErrorIs(t, err, ErrOutOfRange)

	require.NoError(t, b.SetField(1, Int(99)))
	v, err = b.Field(1)
	require.NoError(t, err)
	assert.Equal(t, Int(99), v)

	require.ErrorIs(t, b.SetField(5, Int(0)), ErrOutOfRange)
}

func TestBlockAliasing(t *testing.T) {
	b := NewBlock([]Value{Int(1)})
	alias := Value(b)

	require.NoError(t, b.SetField(0, Int(9)))
	v, err := alias.(*Block).Field(0)
	require.NoError(t, err)
	assert.Equal(t, Int(9), v)
}
