package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/tensor"
)

func newEngine(t *testing.T, seed int64) *Engine {
	t.Helper()
	e, err := New(Config{NZ: 8, Features: 6, Seed: seed})
	require.NoError(t, err)
	return e
}

func latent(n, nz int, seed uint64) *tensor.Batch {
	z := tensor.New(n, nz, 1, 1)
	z.FillNormal(rand.New(rand.NewPCG(seed, 1)), 1)
	return z
}

func TestNew(t *testing.T) {
	_, err := New(Config{NZ: 0})
	require.Error(t, err)
	_, err = New(Config{NZ: 4, Features: -1})
	require.Error(t, err)

	e, err := New(Config{NZ: 4})
	require.NoError(t, err)
	assert.Equal(t, DefaultFeatures, e.gen.features)
	assert.Equal(t, core.MinLevel, e.gen.Level())
	assert.Equal(t, core.MinLevel, e.dis.Level())
}

func TestGrowFlush_ParamCount(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 1)
	for _, net := range []core.Network{e.Generator(), e.Discriminator()} {
		assert.Equal(t, 4, net.ParamCount())
		_, ok := net.FadeIn()
		assert.False(t, ok)

		require.NoError(t, net.Grow(ctx, 3))
		assert.Equal(t, 8, net.ParamCount())
		h, ok := net.FadeIn()
		require.True(t, ok)
		assert.Zero(t, h.Alpha())

		require.NoError(t, net.Flush(ctx))
		assert.Equal(t, 6, net.ParamCount())
		_, ok = net.FadeIn()
		assert.False(t, ok)

		// Flushing twice is a no-op.
		require.NoError(t, net.Flush(ctx))
		assert.Equal(t, 6, net.ParamCount())

		// Growing with a pending fade-in flushes it first.
		require.NoError(t, net.Grow(ctx, 4))
		require.NoError(t, net.Grow(ctx, 5))
		assert.Equal(t, 12, net.ParamCount())

		assert.ErrorIs(t, net.Grow(ctx, 7), ErrGrowth)
		assert.ErrorIs(t, net.Grow(ctx, 5), ErrGrowth)
	}
}

func TestGenerator_Forward(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 2)
	g := e.Generator()

	out, err := g.Forward(ctx, latent(3, 8, 1))
	require.NoError(t, err)
	assert.Equal(t, [4]int{3, 3, 4, 4}, [4]int{out.N, out.C, out.H, out.W})
	for _, v := range out.Data {
		assert.LessOrEqual(t, math.Abs(float64(v)), 1.0)
	}

	_, err = g.Forward(ctx, tensor.New(3, 7, 1, 1))
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = newEngine(t, 2).Generator().Backward(ctx, out)
	require.ErrorIs(t, err, ErrNoForward)
}

func TestGenerator_FadeInStartsFromPreviousOutput(t *testing.T) {
	ctx := context.Background()
	g := newEngine(t, 3).Generator()
	z := latent(2, 8, 7)

	before, err := g.Forward(ctx, z)
	require.NoError(t, err)

	require.NoError(t, g.Grow(ctx, 3))
	after, err := g.Forward(ctx, z)
	require.NoError(t, err)
	require.Equal(t, 8, after.H)

	want := tensor.ResizeNearest(before, 8, 8)
	assert.InDeltaSlice(t, want.Data, after.Data, 1e-6)

	h, _ := g.FadeIn()
	h.UpdateAlpha(1)
	full, err := g.Forward(ctx, z)
	require.NoError(t, err)
	assert.NotEqual(t, after.Data, full.Data)
}

func TestDiscriminator_FadeInStartsFromPreviousScore(t *testing.T) {
	ctx := context.Background()
	d := newEngine(t, 4).Discriminator()

	x := tensor.New(2, 3, 8, 8)
	x.FillNormal(rand.New(rand.NewPCG(5, 5)), 0.5)

	before, err := d.Forward(ctx, tensor.ResizeNearest(x, 4, 4))
	require.NoError(t, err)

	require.NoError(t, d.Grow(ctx, 3))
	after, err := d.Forward(ctx, x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, before.Data, after.Data, 1e-6)

	_, err = d.Forward(ctx, tensor.New(2, 3, 4, 4))
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func sum(b *tensor.Batch) float64 {
	var s float64
	for _, v := range b.Data {
		s += float64(v)
	}
	return s
}

func TestDiscriminator_InputGradient(t *testing.T) {
	ctx := context.Background()
	d := newEngine(t, 6).Discriminator()
	require.NoError(t, d.Grow(ctx, 3))
	h, _ := d.FadeIn()
	h.UpdateAlpha(0.4)

	x := tensor.New(1, 3, 8, 8)
	x.FillNormal(rand.New(rand.NewPCG(9, 9)), 0.5)

	out, err := d.Forward(ctx, x)
	require.NoError(t, err)
	gx, err := d.Backward(ctx, tensor.Full(out.N, out.C, out.H, out.W, 1))
	require.NoError(t, err)
	require.True(t, gx.SameShape(x))

	const eps = 1e-2
	for _, pix := range [][3]int{{0, 0, 0}, {1, 1, 1}, {2, 4, 6}, {0, 7, 3}} {
		i := x.Index(0, pix[0], pix[1], pix[2])
		orig := x.Data[i]

		x.Data[i] = orig + eps
		up, err := d.Forward(ctx, x)
		require.NoError(t, err)
		x.Data[i] = orig - eps
		down, err := d.Forward(ctx, x)
		require.NoError(t, err)
		x.Data[i] = orig

		numeric := (sum(up) - sum(down)) / (2 * eps)
		assert.InDelta(t, numeric, float64(gx.Data[i]), 1e-3, "pixel %v", pix)
	}
}

func TestGenerator_LatentGradient(t *testing.T) {
	ctx := context.Background()
	g := newEngine(t, 8).Generator()
	require.NoError(t, g.Grow(ctx, 3))
	h, _ := g.FadeIn()
	h.UpdateAlpha(0.3)

	z := latent(1, 8, 3)
	out, err := g.Forward(ctx, z)
	require.NoError(t, err)
	gz, err := g.Backward(ctx, tensor.Full(out.N, out.C, out.H, out.W, 1))
	require.NoError(t, err)
	require.True(t, gz.SameShape(z))

	const eps = 1e-2
	for i := range z.Data {
		orig := z.Data[i]
		z.Data[i] = orig + eps
		up, err := g.Forward(ctx, z)
		require.NoError(t, err)
		z.Data[i] = orig - eps
		down, err := g.Forward(ctx, z)
		require.NoError(t, err)
		z.Data[i] = orig

		numeric := (sum(up) - sum(down)) / (2 * eps)
		assert.InDelta(t, numeric, float64(gz.Data[i]), 1e-2*max(1, math.Abs(numeric)), "latent %d", i)
	}
}

func TestStateDict(t *testing.T) {
	ctx := context.Background()
	a, b := newEngine(t, 10), newEngine(t, 11)
	for _, e := range []*Engine{a, b} {
		require.NoError(t, e.Generator().Grow(ctx, 3))
	}

	blob, err := a.Generator().StateDict()
	require.NoError(t, err)
	require.NoError(t, b.Generator().LoadStateDict(blob))

	z := latent(2, 8, 4)
	outA, err := a.Generator().Forward(ctx, z)
	require.NoError(t, err)
	outB, err := b.Generator().Forward(ctx, z)
	require.NoError(t, err)
	assert.Equal(t, outA.Data, outB.Data)

	// A flushed set no longer fits a network with an active fade-in.
	require.NoError(t, a.Generator().Flush(ctx))
	blob, err = a.Generator().StateDict()
	require.NoError(t, err)
	require.Error(t, b.Generator().LoadStateDict(blob))
	require.Error(t, b.Generator().LoadStateDict([]byte("{")))
}

func TestAdam(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 12)
	d := e.Discriminator()
	opt, err := e.NewOptimizer(d, core.OptimizerOptions{LearningRate: 0.01, Beta1: 0, Beta2: 0.99})
	require.NoError(t, err)

	bias := e.dis.params.entries["fc.b"]
	before := bias.data[0]
	bias.grad[0] = 3
	require.NoError(t, opt.Step(ctx))
	assert.InDelta(t, float64(before)-0.01, float64(bias.data[0]), 1e-6)

	d.ZeroGrad()
	assert.Zero(t, bias.grad[0])

	blob, err := opt.StateDict()
	require.NoError(t, err)
	other, err := e.NewOptimizer(d, core.OptimizerOptions{LearningRate: 0.01, Beta1: 0, Beta2: 0.99})
	require.NoError(t, err)
	require.NoError(t, other.LoadStateDict(blob))
	assert.Equal(t, int64(1), other.(*Adam).state.Step)
	assert.Len(t, other.(*Adam).state.V["fc.b"], 1)
	require.Error(t, other.LoadStateDict([]byte("nope")))
}

func TestAdam_SkipsFlushedParams(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 13)
	g := e.Generator()
	require.NoError(t, g.Grow(ctx, 3))
	opt, err := e.NewOptimizer(g, core.OptimizerOptions{LearningRate: 0.001, Beta1: 0.5, Beta2: 0.99})
	require.NoError(t, err)

	require.NoError(t, g.Flush(ctx))
	require.NoError(t, opt.Step(ctx))
	_, ok := opt.(*Adam).state.M["torgb2.w"]
	assert.False(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, opt.Step(cancelled), context.Canceled)
}

type foreignNet struct{ core.Network }

func TestNewOptimizer_ForeignNetwork(t *testing.T) {
	_, err := newEngine(t, 14).NewOptimizer(foreignNet{}, core.OptimizerOptions{})
	require.ErrorIs(t, err, ErrForeignNetwork)
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	_, err := NewLoader(0, 10, 1)
	require.Error(t, err)
	_, err = NewLoader(2, 0, 1)
	require.Error(t, err)

	l, err := NewLoader(4, 6, 42)
	require.NoError(t, err)
	assert.Equal(t, 4, l.BatchSize())
	assert.Equal(t, 6, l.DatasetSize())
	assert.Equal(t, 4, l.ImageSize())

	first, err := l.Batch(ctx)
	require.NoError(t, err)
	assert.Equal(t, [4]int{4, 3, 4, 4}, [4]int{first.N, first.C, first.H, first.W})
	for _, v := range first.Data {
		assert.LessOrEqual(t, math.Abs(float64(v)), 0.8+1e-6)
	}

	// The second batch wraps: samples 4, 5, 0, 1.
	second, err := l.Batch(ctx)
	require.NoError(t, err)
	size := first.Sample()
	assert.Equal(t, first.Data[:size], second.Data[2*size:3*size])
	assert.Equal(t, first.Data[size:2*size], second.Data[3*size:])

	require.NoError(t, l.Renew(ctx, 5))
	assert.Equal(t, 32, l.ImageSize())
	big, err := l.Batch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 32, big.H)

	require.ErrorIs(t, l.Renew(ctx, 1), ErrGrowth)
	require.ErrorIs(t, l.Renew(ctx, 11), ErrGrowth)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Batch(cancelled)
	require.ErrorIs(t, err, context.Canceled)
}
