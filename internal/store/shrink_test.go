package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShrinkMapBasicOps(t *testing.T) {
	m := NewShrinkMap[string, int](8)
	m.Set("a", 1)
	m.Set("b", 2)
	require.Equal(t, 2, m.Len())

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	m.Delete("a")
	require.Equal(t, 1, m.Len())
	_, ok = m.Get("a")
	require.False(t, ok)
}

func TestShrinkMapRebuildsAfterSustainedRemovals(t *testing.T) {
	m := NewShrinkMap[int, [1024]byte](1024)
	for i := 0; i < 100; i++ {
		m.Set(i, [1024]byte{})
	}
	for i := 0; i < 90; i++ {
		m.Delete(i)
	}
	require.Equal(t, 10, m.Len())
	// The 60th removal found 60 entries' worth of waste and rebuilt the
	// map, resetting its high-water mark to the 40 entries left then.
	require.Equal(t, 40, m.highLen)
}

func TestShrinkVecBasicOps(t *testing.T) {
	v := NewShrinkVec[int](8)
	v.Push(1)
	v.Push(2)
	v.Push(3)
	require.Equal(t, 3, v.Len())

	v.RemoveAt(1)
	require.Equal(t, []int{1, 3}, v.All())
}

func TestShrinkVecClearShrinksCapacity(t *testing.T) {
	v := NewShrinkVec[[1024]byte](1024)
	for i := 0; i < 100; i++ {
		v.Push([1024]byte{})
	}
	v.Clear()
	require.Equal(t, 0, v.Len())
	require.Zero(t, cap(v.s))
}
