package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameReorder(t *testing.T) {
	f := NewFrame(2, 1, RGB)
	copy(f.Pix, []uint8{1, 2, 3, 4, 5, 6})

	bgr := f.Reorder(BGR)
	require.Equal(t, BGR, bgr.Order)
	require.Equal(t, []uint8{3, 2, 1, 6, 5, 4}, bgr.Pix)
	require.Equal(t, []uint8{1, 2, 3, 4, 5, 6}, f.Pix)

	require.Same(t, f, f.Reorder(RGB))
}

func TestFrameValid(t *testing.T) {
	require.True(t, NewFrame(3, 2, RGB).Valid())
	require.False(t, (&Frame{Width: 3, Height: 2, Pix: make([]uint8, 5)}).Valid())
	require.False(t, (*Frame)(nil).Valid())
}

func TestFrameOffset(t *testing.T) {
	f := NewFrame(4, 3, RGB)
	require.Equal(t, 0, f.Offset(0, 0))
	require.Equal(t, (1*4+2)*3, f.Offset(2, 1))
}
