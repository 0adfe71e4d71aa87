package trainer

import (
	"errors"
	"fmt"

	"github.com/pggan-go/pggan/internal/cmn/config"
	"github.com/pggan-go/pggan/internal/schedule"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid trainer configuration")

// Config holds the settings of one training run.
type Config struct {
	Schedule schedule.Config

	NZ           int
	LearningRate float64
	Beta1        float64
	Beta2        float64
	// AddNoise enables adaptive noise on the real batch.
	AddNoise bool
	Seed     int64

	// SnapshotInterval is the tick interval between checkpoints.
	SnapshotInterval int64
	// SaveImageEvery is the iteration interval between previews. Zero disables them.
	SaveImageEvery int64
	// PreviewDir receives preview images. Empty disables them.
	PreviewDir string
	// FinalTicks stops Run this many ticks after the final phase is
	// reached. Zero runs every stage.
	FinalTicks int64
}

// Validate rejects settings the trainer cannot run with.
func (c Config) Validate() error {
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	switch {
	case c.NZ <= 0:
		return fmt.Errorf("%w: nz must be positive, got %d", ErrInvalidConfig, c.NZ)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidConfig, c.LearningRate)
	case c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1:
		return fmt.Errorf("%w: betas must be in [0, 1), got %g and %g", ErrInvalidConfig, c.Beta1, c.Beta2)
	case c.SnapshotInterval < 0 || c.SaveImageEvery < 0 || c.FinalTicks < 0:
		return fmt.Errorf("%w: intervals must not be negative", ErrInvalidConfig)
	}
	return nil
}

// StageIterations returns the number of batches in one outer stage.
func (c Config) StageIterations(batchSize int) int64 {
	images := int64(2*c.Schedule.TransitionTicks+2*c.Schedule.StabilizeTicks) * c.Schedule.Tick
	bs := int64(batchSize)
	return (images + bs - 1) / bs
}

// Stages returns the number of outer stages Run performs.
func (c Config) Stages() int {
	return c.Schedule.MaxLevel + 1 + 5 - 2
}

// FromAppConfig maps the application configuration onto trainer settings.
func FromAppConfig(cfg *config.Config) Config {
	t := cfg.Train
	return Config{
		Schedule: schedule.Config{
			MaxLevel:               t.MaxResolution,
			Tick:                   t.Tick,
			TransitionTicks:        t.TransitionTicks,
			StabilizeTicks:         t.StabilizeTicks,
			InitialTransitionTicks: t.InitialTransitionTicks,
			InitialStabilizeTicks:  t.InitialStabilizeTicks,
			LRDecay:                t.LRDecay,
		},
		NZ:               t.NZ,
		LearningRate:     t.LearningRate,
		Beta1:            t.Beta1,
		Beta2:            t.Beta2,
		AddNoise:         t.AddNoise,
		Seed:             t.Seed,
		SnapshotInterval: t.SnapshotInterval,
		SaveImageEvery:   t.SaveImageEvery,
		PreviewDir:       cfg.Paths.PreviewDir,
		FinalTicks:       t.FinalTicks,
	}
}
