// Package sim is a small CPU backend of dense tanh networks. It grows,
// fades in and flushes exactly like a convolutional backend would, which
// makes it suitable for exercising the training loop end to end.
package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/pggan-go/pggan/internal/core"
)

const (
	// DefaultFeatures is the trunk width used when Config.Features is zero.
	DefaultFeatures = 32

	maxLevel = 10
)

var (
	// ErrGrowth is returned for a growth step that skips or repeats a level.
	ErrGrowth = errors.New("invalid growth step")
	// ErrNoForward is returned by Backward when no forward pass is cached.
	ErrNoForward = errors.New("backward called without a forward pass")
	// ErrForeignNetwork is returned when an optimizer is requested for a
	// network another backend built.
	ErrForeignNetwork = errors.New("network does not belong to the sim backend")
)

// Config sizes the networks.
type Config struct {
	NZ       int
	Features int
	Seed     int64
}

// Engine owns one generator and one discriminator.
type Engine struct {
	gen *Generator
	dis *Discriminator
}

// New builds both networks at the initial level. Weights are drawn from a
// generator seeded with cfg.Seed.
func New(cfg Config) (*Engine, error) {
	if cfg.NZ <= 0 {
		return nil, fmt.Errorf("latent size must be positive, got %d", cfg.NZ)
	}
	if cfg.Features == 0 {
		cfg.Features = DefaultFeatures
	}
	if cfg.Features < 0 {
		return nil, fmt.Errorf("feature width must be positive, got %d", cfg.Features)
	}
	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), 0x5eed))
	return &Engine{
		gen: newGenerator(cfg.NZ, cfg.Features, rng),
		dis: newDiscriminator(cfg.Features, rng),
	}, nil
}

func (e *Engine) Generator() core.Network { return e.gen }

func (e *Engine) Discriminator() core.Network { return e.dis }

type parameterized interface {
	parameters() *paramSet
}

// NewOptimizer returns an Adam optimizer over the current parameters of net.
func (e *Engine) NewOptimizer(net core.Network, opts core.OptimizerOptions) (core.Optimizer, error) {
	p, ok := net.(parameterized)
	if !ok {
		return nil, ErrForeignNetwork
	}
	return newAdam(p.parameters(), opts), nil
}

var _ core.Engine = (*Engine)(nil)
