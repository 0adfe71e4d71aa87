package tensor

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n, c, h, w int) *Batch {
	b := New(n, c, h, w)
	for i := range b.Data {
		b.Data[i] = float32(i)
	}
	return b
}

func TestResizeNearest(t *testing.T) {
	t.Parallel()

	t.Run("Downsample", func(t *testing.T) {
		b := seq(1, 1, 4, 4)
		down := ResizeNearest(b, 2, 2)
		assert.Equal(t, []float32{0, 2, 8, 10}, down.Data)
	})

	t.Run("Upsample", func(t *testing.T) {
		b := seq(1, 1, 2, 2)
		up := ResizeNearest(b, 4, 4)
		assert.Equal(t, []float32{
			0, 0, 1, 1,
			0, 0, 1, 1,
			2, 2, 3, 3,
			2, 2, 3, 3,
		}, up.Data)
	})

	t.Run("RoundTripKeepsLowFrequency", func(t *testing.T) {
		b := seq(2, 3, 8, 8)
		rt := ResizeNearest(ResizeNearest(b, 4, 4), 8, 8)
		require.True(t, rt.SameShape(b))
		assert.Equal(t, b.At(1, 2, 0, 0), rt.At(1, 2, 1, 1))
	})
}

func TestResizeNearestGrad(t *testing.T) {
	t.Parallel()

	grad := Full(1, 1, 4, 4, 1)
	g := ResizeNearestGrad(grad, 2, 2)
	assert.Equal(t, []float32{4, 4, 4, 4}, g.Data)

	g = ResizeNearestGrad(Full(1, 1, 2, 2, 1), 4, 4)
	assert.Equal(t, float32(1), g.At(0, 0, 0, 0))
	assert.Equal(t, float32(0), g.At(0, 0, 1, 1))
}

func TestLerp(t *testing.T) {
	t.Parallel()

	a := Full(1, 1, 2, 2, 1)
	b := Full(1, 1, 2, 2, 3)

	out, err := Lerp(a, b, 0.25)
	require.NoError(t, err)
	for _, v := range out.Data {
		assert.InDelta(t, 2.5, v, 1e-6)
	}

	_, err = Lerp(a, New(1, 1, 4, 4), 0.5)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMSE(t *testing.T) {
	t.Parallel()

	pred := &Batch{N: 2, C: 1, H: 1, W: 1, Data: []float32{1, 3}}
	target := Full(2, 1, 1, 1, 1)

	loss, grad, err := MSE(pred, target)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, loss, 1e-9)
	assert.InDelta(t, 0.0, grad.Data[0], 1e-9)
	assert.InDelta(t, 2.0, grad.Data[1], 1e-6)
}

func TestFillNormal(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	b := New(64, 1, 8, 8)
	b.FillNormal(rng, 0.5)
	assert.True(t, b.IsFinite())
	assert.InDelta(t, 0, b.Mean(), 0.05)

	c := b.Clone()
	require.NoError(t, c.AddScaled(b, -1))
	for _, v := range c.Data {
		assert.Zero(t, v)
	}
}
