package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackPushPeekPop(t *testing.T) {
	var s Stack
	s.Push(Int(1))
	s.Push(Int(2))
	s.Push(Int(3))
	require.Equal(t, 3, s.Len())

	// index 0 is the top
	v, err := s.Peek(0)
	require.NoError(t, err)
	assert.Equal(t, Int(3), v)
	v, err = s.Peek(2)
	require.NoError(t, err)
	assert.Equal(t, Int(1), v)

	_, err = s.Peek(3)
	require.ErrorIs(t, err, ErrOutOfRange)

	v, err = s.Pop()
	require.NoError(t, err)
	assert.Equal(t, Int(3), v)
	require.Equal(t, 2, s.Len())
}

func TestStackPopEmpty(t *testing.T) {
	var s Stack
	_, err := s.Pop()
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestStackPushAllOrder(t *testing.T) {
	var s Stack
	s.Push(Int(9))
	s.PushAll([]Value{Int(1), Int(2), Int(3)})

	// the first element of the sequence becomes the new top
	require.Equal(t, 4, s.Len())
	v, _ := s.Peek(0)
	assert.Equal(t, Int(1), v)
	v, _ = s.Peek(2)
	assert.Equal(t, Int(3), v)
	v, _ = s.Peek(3)
	assert.Equal(t, Int(9), v)
}

func TestStackPopN(t *testing.T) {
	var s Stack
	s.PushAll([]Value{Int(1), Int(2), Int(3)})

	vs := s.PopN(2)
	require.Equal(t, []Value{Int(1), Int(2)}, vs)
	require.Equal(t, 1, s.Len())

	// n beyond the size drains what is available
	vs = s.PopN(5)
	require.Equal(t, []Value{Int(3)}, vs)
	require.Equal(t, 0, s.Len())
}

func TestStackPopNPushAllRoundtrip(t *testing.T) {
	var s Stack
	s.PushAll([]Value{Int(1), Int(2), Int(3)})
	vs := s.PopN(3)
	s.PushAll(vs)

	v, _ := s.Peek(0)
	assert.Equal(t, Int(1), v)
	v, _ = s.Peek(2)
	assert.Equal(t, Int(3), v)
}

func TestStackSetAt(t *testing.T) {
	var s Stack
	s.PushAll([]Value{Int(1), Int(2), Int(3)})

	require.NoError(t, s.SetAt(1, Int(9)))
	v, _ := s.Peek(1)
	assert.Equal(t, Int(9), v)
	require.Equal(t, 3, s.Len())

	require.ErrorIs(t, s.SetAt(3, Int(0)), ErrOutOfRange)
}

func TestStackTruncateTo(t *testing.T) {
	var s Stack
	s.PushAll([]Value{Int(1), Int(2), Int(3), Int(4)})

	s.TruncateTo(2)
	require.Equal(t, 2, s.Len())
	v, _ := s.Peek(0)
	assert.Equal(t, Int(3), v)

	// larger than the size is a no-op
	s.TruncateTo(10)
	require.Equal(t, 2, s.Len())
}
