package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure so callers can
// tell configuration mistakes apart from runtime failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the overall configuration for the application.
type Config struct {
	Core     Core
	Paths    PathsConfig
	Train    Train
	Data     Data
	Resume   Resume
	Metrics  Metrics
	Warnings []string
}

// Core contains process wide settings.
type Core struct {
	// Debug enables debug level logging and source locations.
	Debug bool
	// LogFormat is "text" or "json".
	LogFormat string
	// TZ is the timezone used when checkpoint timestamps are displayed.
	TZ string
	// Location is the resolved time.Location for TZ.
	Location *time.Location
	// TzOffsetInSec is the offset of Location from UTC in seconds.
	TzOffsetInSec int
}

// PathsConfig holds the filesystem locations used by a training run.
type PathsConfig struct {
	HomeDir        string
	ConfigFileUsed string
	// ModelDir receives checkpoint records.
	ModelDir string
	// PreviewDir receives preview image grids.
	PreviewDir string
}

// Train holds hyperparameters of the progressive training schedule.
type Train struct {
	// NZ is the latent vector length.
	NZ int
	// LearningRate is the initial learning rate, decayed at every growth.
	LearningRate float64
	// LRDecay multiplies the learning rate at each growth.
	LRDecay float64
	Beta1   float64
	Beta2   float64
	// MaxResolution is the final level; images reach 2^MaxResolution pixels a side.
	MaxResolution int
	// Tick is the number of images that make up one tick.
	Tick int64
	// TransitionTicks is the length of one fade-in band in ticks.
	TransitionTicks int
	// StabilizeTicks is the length of one stabilize band in ticks.
	StabilizeTicks int
	// InitialTransitionTicks and InitialStabilizeTicks apply while the level is 2.
	InitialTransitionTicks int
	InitialStabilizeTicks  int
	// SnapshotInterval is the tick interval between checkpoints.
	SnapshotInterval int64
	// SaveImageEvery is the iteration interval between preview grids. Zero disables previews.
	SaveImageEvery int64
	BatchSize      int
	// AddNoise enables adaptive noise on the real batch.
	AddNoise bool
	Seed     int64
	// FinalTicks stops the run this many ticks after the final phase is reached.
	// Zero keeps training until the stage loop ends.
	FinalTicks int64
}

// Data describes the training data source.
type Data struct {
	// Size is the number of images in one epoch.
	Size int
}

// Resume points at a checkpoint pair to continue from.
type Resume struct {
	Discriminator string
	Generator     string
}

// Enabled reports whether a resume was requested.
func (r Resume) Enabled() bool {
	return r.Discriminator != "" || r.Generator != ""
}

// Metrics configures the prometheus endpoint.
type Metrics struct {
	// Listen is the address of the metrics HTTP server. Empty disables it.
	Listen string
}

// Validate performs basic validation on the configuration to ensure required fields are set
// and that numerical values fall within acceptable ranges.
func (c *Config) Validate() error {
	if err := c.validateCore(); err != nil {
		return err
	}
	if err := c.validateTrain(); err != nil {
		return err
	}
	if c.Data.Size <= 0 {
		return fmt.Errorf("%w: data size must be positive, got %d", ErrInvalidConfig, c.Data.Size)
	}
	if err := c.validateResume(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCore() error {
	switch c.Core.LogFormat {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Core.LogFormat)
	}
}

// validateTrain checks the schedule hyperparameters.
func (c *Config) validateTrain() error {
	t := c.Train
	switch {
	case t.MaxResolution < 2:
		return fmt.Errorf("%w: max resolution must be at least 2, got %d", ErrInvalidConfig, t.MaxResolution)
	case t.Tick <= 0:
		return fmt.Errorf("%w: tick must be positive, got %d", ErrInvalidConfig, t.Tick)
	case t.TransitionTicks <= 0 || t.StabilizeTicks <= 0:
		return fmt.Errorf("%w: transition and stabilize ticks must be positive, got %d and %d",
			ErrInvalidConfig, t.TransitionTicks, t.StabilizeTicks)
	case t.InitialTransitionTicks <= 0 || t.InitialStabilizeTicks <= 0:
		return fmt.Errorf("%w: initial transition and stabilize ticks must be positive, got %d and %d",
			ErrInvalidConfig, t.InitialTransitionTicks, t.InitialStabilizeTicks)
	case t.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidConfig, t.LearningRate)
	case t.LRDecay <= 0 || t.LRDecay > 1:
		return fmt.Errorf("%w: lr decay must be in (0, 1], got %g", ErrInvalidConfig, t.LRDecay)
	case t.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, t.BatchSize)
	case int64(t.BatchSize) > t.Tick:
		return fmt.Errorf("%w: batch size %d exceeds tick %d", ErrInvalidConfig, t.BatchSize, t.Tick)
	case t.NZ <= 0:
		return fmt.Errorf("%w: nz must be positive, got %d", ErrInvalidConfig, t.NZ)
	case t.SnapshotInterval <= 0:
		return fmt.Errorf("%w: snapshot interval must be positive, got %d", ErrInvalidConfig, t.SnapshotInterval)
	case t.SaveImageEvery < 0:
		return fmt.Errorf("%w: save image interval must not be negative, got %d", ErrInvalidConfig, t.SaveImageEvery)
	case t.FinalTicks < 0:
		return fmt.Errorf("%w: final ticks must not be negative, got %d", ErrInvalidConfig, t.FinalTicks)
	}
	return nil
}

// validateResume rejects a resume that names only one of the two records.
func (c *Config) validateResume() error {
	r := c.Resume
	if (r.Discriminator == "") != (r.Generator == "") {
		return fmt.Errorf("%w: resume requires both a discriminator and a generator checkpoint", ErrInvalidConfig)
	}
	return nil
}
