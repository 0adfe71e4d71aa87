package core

import (
	"context"

	"github.com/pggan-go/pggan/internal/tensor"
)

// FadeIn is a handle on the blend unit inserted by the most recent growth.
// Alpha starts at 0 and is raised towards 1 as the new block fades in.
type FadeIn interface {
	UpdateAlpha(delta float64)
	Alpha() float64
}

// GrowthPort grows and flushes one network.
type GrowthPort interface {
	// Grow adds the blocks for level and inserts a fade-in unit.
	Grow(ctx context.Context, level int) error
	// Flush removes the fade-in unit so only the newest path remains.
	Flush(ctx context.Context) error
	// FadeIn returns the active fade-in unit, if any.
	FadeIn() (FadeIn, bool)
}

// Network is a trainable generator or discriminator.
type Network interface {
	GrowthPort

	// Forward runs a batch through the network and caches what Backward needs.
	Forward(ctx context.Context, in *tensor.Batch) (*tensor.Batch, error)
	// Backward accumulates parameter gradients for the last Forward and
	// returns the gradient with respect to its input.
	Backward(ctx context.Context, gradOut *tensor.Batch) (*tensor.Batch, error)
	ZeroGrad()

	// ParamCount is the number of entries in the serialized parameter set.
	ParamCount() int
	StateDict() ([]byte, error)
	LoadStateDict(data []byte) error
}

// OptimizerOptions configures a new optimizer.
type OptimizerOptions struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
}

// Optimizer updates the parameters of one network from accumulated gradients.
type Optimizer interface {
	Step(ctx context.Context) error
	StateDict() ([]byte, error)
	LoadStateDict(data []byte) error
}

// Engine builds the networks and optimizers of a backend.
type Engine interface {
	Generator() Network
	Discriminator() Network
	// NewOptimizer binds an optimizer to the current trainable parameters of net.
	NewOptimizer(net Network, opts OptimizerOptions) (Optimizer, error)
}

// DataLoader yields batches of real images at the current level.
type DataLoader interface {
	// Renew switches the loader to images of side 2^level.
	Renew(ctx context.Context, level int) error
	Batch(ctx context.Context) (*tensor.Batch, error)
	BatchSize() int
	DatasetSize() int
	ImageSize() int
}
