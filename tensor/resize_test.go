package tensor

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelShuffle(t *testing.T) {
	// 4 channels of 1x1 become one 2x2 channel in row-major order
	x := must.M1(NewTensor([]int{1, 4, 1, 1}, []float64{1, 2, 3, 4}))
	out := must.M1(PixelShuffle(x, 2))
	assert.Equal(t, []int{1, 1, 2, 2}, out.GetShape())
	assert.Equal(t, []float64{1, 2, 3, 4}, out.GetData())

	// [1, 4, 1, 2]: each input channel lands on one phase of the 2x4 output
	x = must.M1(NewTensor([]int{1, 4, 1, 2}, []float64{
		1, 2, // (i=0, j=0)
		3, 4, // (i=0, j=1)
		5, 6, // (i=1, j=0)
		7, 8, // (i=1, j=1)
	}))
	out = must.M1(PixelShuffle(x, 2))
	assert.Equal(t, []int{1, 1, 2, 4}, out.GetShape())
	assert.Equal(t, []float64{
		1, 3, 2, 4,
		5, 7, 6, 8,
	}, out.GetData())

	_, err := PixelShuffle(must.M1(Zeros(1, 3, 2, 2)), 2)
	require.Error(t, err)
}

func TestPixelShuffleKeepsBatches(t *testing.T) {
	x := must.M1(Zeros(2, 256, 3, 5))
	for i := range x.data {
		x.data[i] = float64(i)
	}
	out := must.M1(PixelShuffle(x, 2))
	assert.Equal(t, []int{2, 64, 6, 10}, out.GetShape())
	// out[1, 63, 5, 9] = in[1, 63*4 + 1*2 + 1, 2, 4]
	want := x.data[((1*256+63*4+3)*3+2)*5+4]
	got := out.data[((1*64+63)*6+5)*10+9]
	assert.Equal(t, want, got)
}

func TestResizeBilinear(t *testing.T) {
	// 2x2 -> 4x4 with align_corners=false, as torch computes it.
	x := must.M1(NewTensor([]int{1, 1, 2, 2}, []float64{1, 2, 3, 4}))
	out := must.M1(ResizeBilinear(x, 4, 4))
	assert.Equal(t, []int{1, 1, 4, 4}, out.GetShape())
	assert.InDeltaSlice(t, []float64{
		1.0, 1.25, 1.75, 2.0,
		1.5, 1.75, 2.25, 2.5,
		2.5, 2.75, 3.25, 3.5,
		3.0, 3.25, 3.75, 4.0,
	}, out.GetData(), 1e-12)

	// same size is the identity
	y := must.M1(NewTensor([]int{1, 2, 2, 3}, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}))
	same := must.M1(ResizeBilinear(y, 2, 3))
	assert.InDeltaSlice(t, y.GetData(), same.GetData(), 1e-12)

	// 4 -> 2 averages neighbouring pairs
	z := must.M1(NewTensor([]int{1, 1, 1, 4}, []float64{0, 2, 4, 6}))
	down := must.M1(ResizeBilinear(z, 1, 2))
	assert.InDeltaSlice(t, []float64{1, 5}, down.GetData(), 1e-12)

	_, err := ResizeBilinear(x, 0, 4)
	require.Error(t, err)
}
