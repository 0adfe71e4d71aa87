package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/tensor"
)

// noiseState tracks the running mean of the discriminator output on
// generated images that drives the adaptive noise strength.
type noiseState struct {
	avg      float64
	started  bool
	lastFake float64
}

// next folds the latest fake score into the running mean and returns the
// noise strength. The first call starts the mean at zero.
func (n *noiseState) next() float64 {
	if n.started {
		n.avg = 0.9*n.avg + 0.1*n.lastFake
	} else {
		n.avg = 0
		n.started = true
	}
	d := max(0, n.avg-0.5)
	return 0.2 * d * d
}

// Step performs one iteration: it advances the schedule, updates the
// discriminator on a real and a generated batch and then updates the
// generator through the discriminator.
func (t *Trainer) Step(ctx context.Context) (StepResult, error) {
	start := time.Now()
	bs := t.loader.BatchSize()

	t.sched.BeginIteration(bs, t.loader.DatasetSize())
	if err := t.sched.Advance(ctx, bs); err != nil {
		return StepResult{}, err
	}
	state := t.sched.State()
	gen, dis := t.engine.Generator(), t.engine.Discriminator()

	gen.ZeroGrad()
	dis.ZeroGrad()

	x, err := t.loader.Batch(ctx)
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to fetch batch: %w", err)
	}
	if x, err = t.blendInput(state, x); err != nil {
		return StepResult{}, err
	}
	var strength float64
	if t.cfg.AddNoise {
		strength = t.noise.next()
		noise := tensor.New(x.N, x.C, x.H, x.W)
		noise.FillNormal(t.rng, 1)
		if err := x.AddScaled(noise, strength); err != nil {
			return StepResult{}, err
		}
	}

	t.z.FillNormal(t.rng, 1)
	fake, err := gen.Forward(ctx, t.z)
	if err != nil {
		return StepResult{}, fmt.Errorf("generator forward: %w", err)
	}

	// Discriminator update. The generated batch is treated as a constant.
	realOut, lossReal, err := t.scoreAndBackprop(ctx, dis, x, t.ones)
	if err != nil {
		return StepResult{}, err
	}
	fakeOut, lossFake, err := t.scoreAndBackprop(ctx, dis, fake, t.zeros)
	if err != nil {
		return StepResult{}, err
	}
	if err := t.opts.Dis.Step(ctx); err != nil {
		return StepResult{}, fmt.Errorf("discriminator step: %w", err)
	}
	t.noise.lastFake = fakeOut.Mean()

	// Generator update through the freshly updated discriminator.
	genOut, err := dis.Forward(ctx, fake)
	if err != nil {
		return StepResult{}, fmt.Errorf("discriminator forward: %w", err)
	}
	lossG, grad, err := tensor.MSE(genOut, t.ones)
	if err != nil {
		return StepResult{}, err
	}
	gradFake, err := dis.Backward(ctx, grad)
	if err != nil {
		return StepResult{}, fmt.Errorf("discriminator backward: %w", err)
	}
	if _, err := gen.Backward(ctx, gradFake); err != nil {
		return StepResult{}, fmt.Errorf("generator backward: %w", err)
	}
	if err := t.opts.Gen.Step(ctx); err != nil {
		return StepResult{}, fmt.Errorf("generator step: %w", err)
	}

	return StepResult{
		State:         state,
		LossD:         lossReal + lossFake,
		LossG:         lossG,
		RealScore:     realOut.Mean(),
		FakeScore:     t.noise.lastFake,
		NoiseStrength: strength,
		Duration:      time.Since(start),
	}, nil
}

// scoreAndBackprop runs x through the discriminator and accumulates the
// gradient of the squared error against target.
func (t *Trainer) scoreAndBackprop(ctx context.Context, dis core.Network, x, target *tensor.Batch) (*tensor.Batch, float64, error) {
	out, err := dis.Forward(ctx, x)
	if err != nil {
		return nil, 0, fmt.Errorf("discriminator forward: %w", err)
	}
	loss, grad, err := tensor.MSE(out, target)
	if err != nil {
		return nil, 0, err
	}
	if _, err := dis.Backward(ctx, grad); err != nil {
		return nil, 0, fmt.Errorf("discriminator backward: %w", err)
	}
	return out, loss, nil
}

// blendInput fades the real batch between the previous and the current
// resolution while the generator is in transition, so real and generated
// images carry the same blend.
func (t *Trainer) blendInput(state core.ScheduleState, x *tensor.Batch) (*tensor.Batch, error) {
	level := state.Level()
	if state.Phase != core.PhaseGenTransition || level <= core.MinLevel || level > t.cfg.Schedule.MaxLevel {
		return x, nil
	}
	low := tensor.ResizeNearest(tensor.ResizeNearest(x, x.H/2, x.W/2), x.H, x.W)
	return tensor.Lerp(x, low, state.Complete.Gen/100)
}
