package siamese

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitSetSetClearTest(t *testing.T) {
	b := NewBitSet(100)
	require.False(t, b.Test(5))

	b.Set(5)
	require.True(t, b.Test(5))
	require.False(t, b.Test(4))
	require.False(t, b.Test(6))

	b.Clear(5)
	require.False(t, b.Test(5))
}

func TestBitSetGrowsOnSet(t *testing.T) {
	b := NewBitSet(4)
	require.Equal(t, 4, b.Bits())

	b.Set(200)
	require.GreaterOrEqual(t, b.Bits(), 201)
	require.True(t, b.Test(200))
}

func TestBitSetOutOfRangeReadsClear(t *testing.T) {
	b := NewBitSet(10)
	require.False(t, b.Test(-1))
	require.False(t, b.Test(1000))
}

func TestBitSetClearBeyondCapacityIsNoop(t *testing.T) {
	b := NewBitSet(10)
	b.Clear(1000) // must not panic
}

func TestBitSetResetAll(t *testing.T) {
	b := NewBitSet(128)
	for i := 0; i < 128; i += 3 {
		b.Set(i)
	}
	b.ResetAll()
	for i := 0; i < 128; i++ {
		require.False(t, b.Test(i))
	}
}

func TestBitSetCountRange(t *testing.T) {
	b := NewBitSet(70)
	for _, i := range []int{0, 1, 63, 64, 65, 69} {
		b.Set(i)
	}
	require.Equal(t, 6, b.CountRange(0, 70))
	require.Equal(t, 2, b.CountRange(0, 2))
	require.Equal(t, 3, b.CountRange(63, 66))
	require.Equal(t, 0, b.CountRange(2, 63))
}

func TestBitSetFindFirstSet(t *testing.T) {
	b := NewBitSet(130)
	require.Equal(t, -1, b.FindFirstSet(0, 130))

	b.Set(70)
	require.Equal(t, 70, b.FindFirstSet(0, 130))
	require.Equal(t, -1, b.FindFirstSet(0, 70))
	require.Equal(t, 70, b.FindFirstSet(70, 130))
	require.Equal(t, -1, b.FindFirstSet(71, 130))
}

func TestBitSetFindFirstClear(t *testing.T) {
	b := NewBitSet(130)
	for i := 0; i < 130; i++ {
		b.Set(i)
	}
	require.Equal(t, -1, b.FindFirstClear(0, 130))

	b.Clear(75)
	require.Equal(t, 75, b.FindFirstClear(0, 130))
	require.Equal(t, -1, b.FindFirstClear(0, 75))
}

func TestBitSetFindAcrossWordBoundary(t *testing.T) {
	b := NewBitSet(200)
	for i := 60; i < 70; i++ {
		b.Set(i)
	}
	require.Equal(t, 60, b.FindFirstSet(0, 200))
	require.Equal(t, -1, b.FindFirstClear(60, 70))
	require.Equal(t, 70, b.FindFirstClear(60, 200))
}
