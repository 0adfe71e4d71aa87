package sim

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/tensor"
)

// Generator maps a latent vector to a 3-channel image of side 2^level. The
// trunk is a stack of dense tanh layers, one per level above the first, and
// each level has its own to-RGB head. While a fade-in is active the output
// blends the newest head with the previous one upsampled.
type Generator struct {
	nz, features int
	level        int
	params       *paramSet
	fade         *core.Blend
	rng          *rand.Rand
	cache        *genCache
}

type genCache struct {
	z     [][]float64
	hs    [][][]float64 // trunk activations, index 0 is level 2
	hi    [][]float64
	low   [][]float64
	alpha float64
	size  int
}

func newGenerator(nz, features int, rng *rand.Rand) *Generator {
	g := &Generator{nz: nz, features: features, level: core.MinLevel, params: newParamSet(), rng: rng}
	g.params.addLayer("fc", nz, features, rng)
	g.params.addLayer(layerName("torgb", core.MinLevel), features, 3, rng)
	return g
}

// Level returns the current output level.
func (g *Generator) Level() int { return g.level }

// Grow adds the trunk block and to-RGB head for level and starts a fade-in.
// A fade-in still in progress is flushed first.
func (g *Generator) Grow(ctx context.Context, level int) error {
	if level != g.level+1 {
		return fmt.Errorf("%w: generator at level %d cannot grow to %d", ErrGrowth, g.level, level)
	}
	if err := g.Flush(ctx); err != nil {
		return err
	}
	g.params.addLayer(layerName("block", level), g.features, g.features, g.rng)
	g.params.addLayer(layerName("torgb", level), g.features, 3, g.rng)
	g.level = level
	g.fade = &core.Blend{}
	g.cache = nil
	return nil
}

// Flush drops the previous to-RGB head.
func (g *Generator) Flush(_ context.Context) error {
	if g.fade == nil {
		return nil
	}
	g.params.removeLayer(layerName("torgb", g.level-1))
	g.fade = nil
	g.cache = nil
	return nil
}

func (g *Generator) FadeIn() (core.FadeIn, bool) {
	if g.fade == nil {
		return nil, false
	}
	return g.fade, true
}

func (g *Generator) Forward(_ context.Context, z *tensor.Batch) (*tensor.Batch, error) {
	if z.Sample() != g.nz {
		return nil, fmt.Errorf("%w: latent batch %s, expected %d values per sample", tensor.ErrShapeMismatch, z.Shape(), g.nz)
	}
	c := &genCache{z: rows(z), size: 1 << g.level}
	h := g.params.forward("fc", c.z, true)
	c.hs = append(c.hs, h)
	for l := core.MinLevel + 1; l <= g.level; l++ {
		h = g.params.forward(layerName("block", l), h, true)
		c.hs = append(c.hs, h)
	}
	c.hi = g.params.forward(layerName("torgb", g.level), h, true)
	rgb := c.hi
	if g.fade != nil {
		c.alpha = g.fade.Alpha()
		c.low = g.params.forward(layerName("torgb", g.level-1), c.hs[len(c.hs)-2], true)
		rgb = mix(c.alpha, c.hi, c.low)
	}
	g.cache = c
	return broadcast(rgb, c.size), nil
}

func (g *Generator) Backward(_ context.Context, gradOut *tensor.Batch) (*tensor.Batch, error) {
	c := g.cache
	if c == nil {
		return nil, ErrNoForward
	}
	if gradOut.N != len(c.z) || gradOut.C != 3 || gradOut.H != c.size || gradOut.W != c.size {
		return nil, fmt.Errorf("%w: gradient %s for output of side %d", tensor.ErrShapeMismatch, gradOut.Shape(), c.size)
	}
	grgb := pool(gradOut, false)
	ghi := grgb
	top := len(c.hs) - 1
	var glow [][]float64
	if c.low != nil {
		ghi = scale(c.alpha, grgb)
		glow = g.params.backward(layerName("torgb", g.level-1), c.hs[top-1], c.low, scale(1-c.alpha, grgb), true)
	}
	gh := g.params.backward(layerName("torgb", g.level), c.hs[top], c.hi, ghi, true)
	for i := top; i >= 1; i-- {
		gh = g.params.backward(layerName("block", core.MinLevel+i), c.hs[i-1], c.hs[i], gh, true)
		if i-1 == top-1 && glow != nil {
			addInto(gh, glow)
		}
	}
	gz := g.params.backward("fc", c.z, c.hs[0], gh, true)
	return fromRows(gz, 1, 1), nil
}

func (g *Generator) ZeroGrad() { g.params.zeroGrad() }

func (g *Generator) ParamCount() int { return len(g.params.entries) }

func (g *Generator) StateDict() ([]byte, error) { return g.params.marshal() }

func (g *Generator) LoadStateDict(data []byte) error { return g.params.unmarshal(data) }

func (g *Generator) parameters() *paramSet { return g.params }

var _ core.Network = (*Generator)(nil)
