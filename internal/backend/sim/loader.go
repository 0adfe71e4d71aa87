package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/tensor"
)

// Loader serves a synthetic dataset of smooth colour gratings. Sample i is
// the same picture at every resolution, rendered at the loader's level, so
// progressive training sees a consistent dataset as it grows.
type Loader struct {
	batchSize int
	size      int
	seed      uint64
	level     int
	cursor    int
}

// NewLoader returns a loader over size samples at the initial level.
func NewLoader(batchSize, size int, seed int64) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if size <= 0 {
		return nil, fmt.Errorf("dataset size must be positive, got %d", size)
	}
	return &Loader{batchSize: batchSize, size: size, seed: uint64(seed), level: core.MinLevel}, nil
}

// Renew switches the loader to images of side 2^level.
func (l *Loader) Renew(_ context.Context, level int) error {
	if level < core.MinLevel || level > maxLevel {
		return fmt.Errorf("%w: level %d outside [%d, %d]", ErrGrowth, level, core.MinLevel, maxLevel)
	}
	l.level = level
	return nil
}

// Batch returns the next batchSize samples, wrapping around the dataset.
func (l *Loader) Batch(ctx context.Context) (*tensor.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	side := l.ImageSize()
	out := tensor.New(l.batchSize, 3, side, side)
	for n := range l.batchSize {
		l.render(out, n, l.cursor)
		l.cursor = (l.cursor + 1) % l.size
	}
	return out, nil
}

func (l *Loader) render(out *tensor.Batch, n, sample int) {
	rng := rand.New(rand.NewPCG(l.seed, uint64(sample)))
	fx, fy := rng.Float64()*2, rng.Float64()*2
	var phase [3]float64
	for c := range phase {
		phase[c] = rng.Float64() * 2 * math.Pi
	}
	side := float64(out.H)
	for c := range 3 {
		for y := range out.H {
			py := (float64(y) + 0.5) / side
			for x := range out.W {
				px := (float64(x) + 0.5) / side
				out.Data[out.Index(n, c, y, x)] = float32(0.8 * math.Sin(2*math.Pi*(fx*px+fy*py)+phase[c]))
			}
		}
	}
}

func (l *Loader) BatchSize() int { return l.batchSize }

func (l *Loader) DatasetSize() int { return l.size }

func (l *Loader) ImageSize() int { return 1 << l.level }

var _ core.DataLoader = (*Loader)(nil)
