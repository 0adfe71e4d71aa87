package sim

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/tensor"
)

// Discriminator scores 3-channel images of side 2^level. Each level has its
// own from-RGB head feeding a stack of dense tanh blocks that step down one
// level at a time to a linear score. While a fade-in is active the input of
// the second block blends the newest path with the previous head applied to
// the input downsampled by two.
type Discriminator struct {
	features int
	level    int
	params   *paramSet
	fade     *core.Blend
	rng      *rand.Rand
	cache    *disCache
}

type disCache struct {
	n, size int
	v       [][]float64
	vlow    [][]float64
	hs      [][][]float64 // indexed by level
	top     [][]float64   // output of the newest block before blending
	low     [][]float64
	score   [][]float64
	alpha   float64
}

func newDiscriminator(features int, rng *rand.Rand) *Discriminator {
	d := &Discriminator{features: features, level: core.MinLevel, params: newParamSet(), rng: rng}
	d.params.addLayer(layerName("fromrgb", core.MinLevel), 3, features, rng)
	d.params.addLayer("fc", features, 1, rng)
	return d
}

// Level returns the current input level.
func (d *Discriminator) Level() int { return d.level }

// Grow adds the from-RGB head and block for level and starts a fade-in.
// A fade-in still in progress is flushed first.
func (d *Discriminator) Grow(ctx context.Context, level int) error {
	if level != d.level+1 {
		return fmt.Errorf("%w: discriminator at level %d cannot grow to %d", ErrGrowth, d.level, level)
	}
	if err := d.Flush(ctx); err != nil {
		return err
	}
	d.params.addLayer(layerName("fromrgb", level), 3, d.features, d.rng)
	d.params.addLayer(layerName("block", level), d.features, d.features, d.rng)
	d.level = level
	d.fade = &core.Blend{}
	d.cache = nil
	return nil
}

// Flush drops the previous from-RGB head.
func (d *Discriminator) Flush(_ context.Context) error {
	if d.fade == nil {
		return nil
	}
	d.params.removeLayer(layerName("fromrgb", d.level-1))
	d.fade = nil
	d.cache = nil
	return nil
}

func (d *Discriminator) FadeIn() (core.FadeIn, bool) {
	if d.fade == nil {
		return nil, false
	}
	return d.fade, true
}

func (d *Discriminator) Forward(_ context.Context, x *tensor.Batch) (*tensor.Batch, error) {
	size := 1 << d.level
	if x.C != 3 || x.H != size || x.W != size {
		return nil, fmt.Errorf("%w: image batch %s, expected 3×%d×%d", tensor.ErrShapeMismatch, x.Shape(), size, size)
	}
	c := &disCache{n: x.N, size: size, hs: make([][][]float64, d.level+1)}
	c.v = pool(x, true)
	c.hs[d.level] = d.params.forward(layerName("fromrgb", d.level), c.v, true)
	if d.fade != nil {
		c.alpha = d.fade.Alpha()
		c.vlow = pool(tensor.ResizeNearest(x, size/2, size/2), true)
		c.low = d.params.forward(layerName("fromrgb", d.level-1), c.vlow, true)
	}
	for l := d.level; l > core.MinLevel; l-- {
		t := d.params.forward(layerName("block", l), c.hs[l], true)
		if d.fade != nil && l == d.level {
			c.top = t
			t = mix(c.alpha, t, c.low)
		}
		c.hs[l-1] = t
	}
	c.score = d.params.forward("fc", c.hs[core.MinLevel], false)
	d.cache = c
	return fromRows(c.score, 1, 1), nil
}

func (d *Discriminator) Backward(_ context.Context, gradOut *tensor.Batch) (*tensor.Batch, error) {
	c := d.cache
	if c == nil {
		return nil, ErrNoForward
	}
	if gradOut.N != c.n || gradOut.Sample() != 1 {
		return nil, fmt.Errorf("%w: gradient %s for %d scores", tensor.ErrShapeMismatch, gradOut.Shape(), c.n)
	}
	gh := d.params.backward("fc", c.hs[core.MinLevel], c.score, rows(gradOut), false)
	var gvlow [][]float64
	for l := core.MinLevel + 1; l <= d.level; l++ {
		name := layerName("block", l)
		if c.top != nil && l == d.level {
			gvlow = d.params.backward(layerName("fromrgb", l-1), c.vlow, c.low, scale(1-c.alpha, gh), true)
			gh = d.params.backward(name, c.hs[l], c.top, scale(c.alpha, gh), true)
			continue
		}
		gh = d.params.backward(name, c.hs[l], c.hs[l-1], gh, true)
	}
	gv := d.params.backward(layerName("fromrgb", d.level), c.v, c.hs[d.level], gh, true)

	area := float64(c.size * c.size)
	gx := broadcast(scale(1/area, gv), c.size)
	if gvlow != nil {
		half := c.size / 2
		glow := broadcast(scale(1/float64(half*half), gvlow), half)
		if err := gx.AddScaled(tensor.ResizeNearestGrad(glow, c.size, c.size), 1); err != nil {
			return nil, err
		}
	}
	return gx, nil
}

func (d *Discriminator) ZeroGrad() { d.params.zeroGrad() }

func (d *Discriminator) ParamCount() int { return len(d.params.entries) }

func (d *Discriminator) StateDict() ([]byte, error) { return d.params.marshal() }

func (d *Discriminator) LoadStateDict(data []byte) error { return d.params.unmarshal(data) }

func (d *Discriminator) parameters() *paramSet { return d.params }

var _ core.Network = (*Discriminator)(nil)
