// Package trainer runs the progressive training loop: it feeds batches to
// the networks, lets the scheduler grow them and persists snapshots.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/pggan-go/pggan/internal/checkpoint"
	"github.com/pggan-go/pggan/internal/cmn/logger"
	"github.com/pggan-go/pggan/internal/cmn/logger/tag"
	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/schedule"
	"github.com/pggan-go/pggan/internal/tensor"
)

// previewSamples is the number of fixed latent vectors rendered in a preview grid.
const previewSamples = 16

var (
	// ErrAlreadyStarted is returned when a resume is attempted after training began.
	ErrAlreadyStarted = errors.New("training already started")
	// ErrNoStore is returned when a resume is attempted without a checkpoint store.
	ErrNoStore = errors.New("no checkpoint store configured")
)

// StepResult reports one training step.
type StepResult struct {
	State core.ScheduleState
	LossD float64
	LossG float64
	// RealScore and FakeScore are the mean discriminator outputs on the
	// real and generated batch during the discriminator update.
	RealScore     float64
	FakeScore     float64
	NoiseStrength float64
	Duration      time.Duration
}

// Observer receives every completed step.
type Observer interface {
	ObserveStep(res StepResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(res StepResult)

func (f ObserverFunc) ObserveStep(res StepResult) { f(res) }

// Option configures a Trainer.
type Option func(*Trainer)

// WithObserver registers an observer notified after every step.
func WithObserver(o Observer) Option {
	return func(t *Trainer) {
		t.observers = append(t.observers, o)
	}
}

// WithProgress draws a progress bar per stage on w.
func WithProgress(w io.Writer) Option {
	return func(t *Trainer) {
		t.progressOut = w
	}
}

// WithStore enables snapshots into store and resuming from it.
func WithStore(store core.CheckpointStore, opts ...checkpoint.Option) Option {
	return func(t *Trainer) {
		t.store = store
		t.snapOpts = opts
	}
}

// Trainer owns the networks, optimizers, scheduler and buffers of a run.
// It is not safe for concurrent use.
type Trainer struct {
	cfg    Config
	engine core.Engine
	loader core.DataLoader
	sched  *schedule.Scheduler
	opts   core.Pair[core.Optimizer]
	rng    *rand.Rand

	z      *tensor.Batch
	zTest  *tensor.Batch
	ones   *tensor.Batch
	zeros  *tensor.Batch
	noise  noiseState
	finalT int64

	store     core.CheckpointStore
	snapOpts  []checkpoint.Option
	snap      *checkpoint.Manager
	observers []Observer
	previews  *previewWriter

	progressOut io.Writer
}

// New builds a trainer at the start of the schedule. The engine networks
// must be at the initial level.
func New(ctx context.Context, cfg Config, engine core.Engine, loader core.DataLoader, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil || loader == nil {
		return nil, fmt.Errorf("%w: engine and data loader are required", ErrInvalidConfig)
	}
	if err := cfg.Schedule.ValidateBatchSize(loader.BatchSize()); err != nil {
		return nil, err
	}
	t := &Trainer{
		cfg:    cfg,
		engine: engine,
		loader: loader,
		rng:    rand.New(rand.NewPCG(uint64(cfg.Seed), 0x7a11)),
		finalT: -1,
	}
	for _, opt := range opts {
		opt(t)
	}

	state := core.NewScheduleState(cfg.LearningRate)
	if err := t.Renew(ctx, state); err != nil {
		return nil, err
	}
	sched, err := t.newScheduler(state)
	if err != nil {
		return nil, err
	}
	t.sched = sched

	t.zTest = tensor.New(previewSamples, cfg.NZ, 1, 1)
	t.zTest.FillNormal(t.rng, 1)
	if cfg.PreviewDir != "" && cfg.SaveImageEvery > 0 {
		t.previews = &previewWriter{dir: cfg.PreviewDir}
	}
	if t.store != nil {
		snapOpts := append([]checkpoint.Option{checkpoint.WithInterval(cfg.SnapshotInterval)}, t.snapOpts...)
		t.snap = checkpoint.New(t.store, t, snapOpts...)
	}
	return t, nil
}

func (t *Trainer) newScheduler(state core.ScheduleState) (*schedule.Scheduler, error) {
	return schedule.New(t.cfg.Schedule, state,
		t.engine.Generator(), t.engine.Discriminator(),
		schedule.WithRenewer(t.Renew),
	)
}

// State returns the current schedule state.
func (t *Trainer) State() core.ScheduleState {
	return t.sched.State()
}

// Network returns the generator or the discriminator.
func (t *Trainer) Network(role core.Role) core.Network {
	switch role {
	case core.RoleGen:
		return t.engine.Generator()
	case core.RoleDis:
		return t.engine.Discriminator()
	}
	return nil
}

// Optimizer returns the optimizer bound to a network.
func (t *Trainer) Optimizer(role core.Role) core.Optimizer {
	if !role.IsNetwork() {
		return nil
	}
	return t.opts.Get(role)
}

// Snapshots returns the snapshot manager, or nil without a store.
func (t *Trainer) Snapshots() *checkpoint.Manager {
	return t.snap
}

// Renew re-provisions everything sized by the image level or bound to the
// current parameters: the loader, the latent and label buffers and one
// fresh optimizer per network at the state's learning rate.
func (t *Trainer) Renew(ctx context.Context, state core.ScheduleState) error {
	level := min(state.Level(), t.cfg.Schedule.MaxLevel)
	if err := t.loader.Renew(ctx, level); err != nil {
		return fmt.Errorf("failed to renew data loader: %w", err)
	}
	bs := t.loader.BatchSize()
	t.z = tensor.New(bs, t.cfg.NZ, 1, 1)
	t.ones = tensor.Full(bs, 1, 1, 1, 1)
	t.zeros = tensor.New(bs, 1, 1, 1)

	for _, role := range core.NetworkRoles {
		opt, err := t.engine.NewOptimizer(t.Network(role), core.OptimizerOptions{
			LearningRate: state.LearningRate,
			Beta1:        t.cfg.Beta1,
			Beta2:        t.cfg.Beta2,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s optimizer: %w", role, err)
		}
		t.opts.Set(role, opt)
	}

	logger.Debug(ctx, "Training buffers renewed",
		tag.Level(level),
		tag.ImageSize(t.loader.ImageSize()),
		tag.LearningRate(state.LearningRate),
	)
	return nil
}

// Resume restores the networks, optimizers and schedule from a checkpoint
// pair. It must be called before the first step.
func (t *Trainer) Resume(ctx context.Context, paths checkpoint.ResumePaths) error {
	if t.store == nil {
		return ErrNoStore
	}
	if t.sched.State().GlobalIter > 0 {
		return ErrAlreadyStarted
	}
	dis, gen, err := checkpoint.LoadPair(ctx, t.store, paths)
	if err != nil {
		return err
	}
	state, err := checkpoint.Restore(ctx, t, dis, gen)
	if err != nil {
		return err
	}
	sched, err := t.newScheduler(state)
	if err != nil {
		return err
	}
	if err := sched.Reattach(); err != nil {
		return err
	}
	t.sched = sched
	logger.Info(ctx, "Training resumed",
		tag.File(paths.Discriminator),
		tag.Resolution(state.Resolution),
		tag.Phase(state.Phase.String()),
		tag.Tick(state.GlobalTick),
	)
	return nil
}

var (
	_ checkpoint.Source = (*Trainer)(nil)
	_ checkpoint.Target = (*Trainer)(nil)
)
