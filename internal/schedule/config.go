package schedule

import (
	"errors"
	"fmt"

	"github.com/pggan-go/pggan/internal/core"
)

// MaxSupportedLevel bounds the final level at 1024×1024 images.
const MaxSupportedLevel = 10

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid schedule configuration")

// Config holds the schedule parameters. They must stay unchanged across
// resumes for a checkpoint to continue where it left off; the batch size
// may change freely.
type Config struct {
	// MaxLevel is the last level to grow to.
	MaxLevel int
	// Tick is the number of images per tick.
	Tick int64
	// TransitionTicks and StabilizeTicks size the four bands of one cycle.
	TransitionTicks int
	StabilizeTicks  int
	// InitialTransitionTicks and InitialStabilizeTicks replace the regular
	// counts while the level is 2. Zero means use the regular counts.
	InitialTransitionTicks int
	InitialStabilizeTicks  int
	// LRDecay multiplies the learning rate at each growth.
	LRDecay float64
}

// Validate rejects configurations the scheduler cannot run.
func (c Config) Validate() error {
	switch {
	case c.MaxLevel < core.MinLevel || c.MaxLevel > MaxSupportedLevel:
		return fmt.Errorf("%w: max level must be within [%d, %d], got %d",
			ErrInvalidConfig, core.MinLevel, MaxSupportedLevel, c.MaxLevel)
	case c.Tick <= 0:
		return fmt.Errorf("%w: tick must be positive, got %d", ErrInvalidConfig, c.Tick)
	case c.TransitionTicks <= 0 || c.StabilizeTicks <= 0:
		return fmt.Errorf("%w: transition and stabilize ticks must be positive, got %d and %d",
			ErrInvalidConfig, c.TransitionTicks, c.StabilizeTicks)
	case c.InitialTransitionTicks < 0 || c.InitialStabilizeTicks < 0:
		return fmt.Errorf("%w: initial ticks must not be negative", ErrInvalidConfig)
	case c.LRDecay <= 0 || c.LRDecay > 1:
		return fmt.Errorf("%w: lr decay must be in (0, 1], got %g", ErrInvalidConfig, c.LRDecay)
	}
	return nil
}

// ValidateBatchSize rejects a batch size the tick counter cannot follow.
// A batch may fill at most one tick.
func (c Config) ValidateBatchSize(batchSize int) error {
	switch {
	case batchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, batchSize)
	case int64(batchSize) > c.Tick:
		return fmt.Errorf("%w: batch size %d exceeds tick %d", ErrInvalidConfig, batchSize, c.Tick)
	}
	return nil
}

// Bands describes the partition of one growth cycle at a given level.
// Each field is the lower edge of a band on the fractional resolution; the
// generator transition band starts at 0.
type Bands struct {
	TransitionTicks int
	StabilizeTicks  int
	// Delta is the resolution increase per tick.
	Delta         float64
	GenStabilize  float64
	DisTransition float64
	DisStabilize  float64
}

// Bands returns the band layout used while the run is at level.
func (c Config) Bands(level int) Bands {
	trns, stab := c.TransitionTicks, c.StabilizeTicks
	if level == core.MinLevel {
		if c.InitialTransitionTicks > 0 {
			trns = c.InitialTransitionTicks
		}
		if c.InitialStabilizeTicks > 0 {
			stab = c.InitialStabilizeTicks
		}
	}
	delta := 1.0 / float64(2*trns+2*stab)
	return Bands{
		TransitionTicks: trns,
		StabilizeTicks:  stab,
		Delta:           delta,
		GenStabilize:    float64(trns) * delta,
		DisTransition:   float64(trns+stab) * delta,
		DisStabilize:    float64(stab+2*trns) * delta,
	}
}

// Phase returns the band a fractional resolution falls into.
func (b Bands) Phase(frac float64) core.Phase {
	switch {
	case frac < b.GenStabilize:
		return core.PhaseGenTransition
	case frac < b.DisTransition:
		return core.PhaseGenStabilize
	case frac < b.DisStabilize:
		return core.PhaseDisTransition
	default:
		return core.PhaseDisStabilize
	}
}

// AlphaStep is the fade-in increment applied for one batch.
func (c Config) AlphaStep(b Bands, batchSize int) float64 {
	return float64(batchSize) / float64(b.TransitionTicks) / float64(c.Tick)
}

// Ceiling is the largest resolution the schedule reaches. It is also the
// value the resolution is pinned to once the run is final.
func (c Config) Ceiling(b Bands) float64 {
	return float64(c.MaxLevel) + b.DisStabilize
}
