// Package schedule drives the progressive growth of a GAN: it tracks how far
// a run is through each growth cycle, fades new blocks in, flushes them and
// grows both networks one level at a time.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/pggan-go/pggan/internal/cmn/logger"
	"github.com/pggan-go/pggan/internal/cmn/logger/tag"
	"github.com/pggan-go/pggan/internal/core"
)

// ErrMissingFadeIn is returned when a network should carry a fade-in block
// after growth or restore but does not expose one.
var ErrMissingFadeIn = errors.New("network has no fade-in block")

// Renewer re-provisions everything that depends on the image size. It is
// called after both networks have grown.
type Renewer func(ctx context.Context, state core.ScheduleState) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRenewer sets the hook called after every growth.
func WithRenewer(r Renewer) Option {
	return func(s *Scheduler) {
		s.renew = r
	}
}

// Scheduler owns the ScheduleState of a run and mutates it once per batch.
// It is not safe for concurrent use.
type Scheduler struct {
	cfg     Config
	state   core.ScheduleState
	ports   core.Pair[core.GrowthPort]
	handles core.Pair[core.FadeIn]
	renew   Renewer
}

// New returns a scheduler that continues from state. Fade-in handles are
// not attached; call Reattach after restoring a run that was mid fade-in.
func New(cfg Config, state core.ScheduleState, gen, dis core.GrowthPort, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil || dis == nil {
		return nil, fmt.Errorf("%w: both growth ports are required", ErrInvalidConfig)
	}
	if state.Level() < core.MinLevel || state.Level() > cfg.MaxLevel {
		return nil, fmt.Errorf("%w: resolution %g outside [%d, %d]",
			ErrInvalidConfig, state.Resolution, core.MinLevel, cfg.MaxLevel)
	}
	s := &Scheduler{
		cfg:   cfg,
		state: state,
		ports: core.Pair[core.GrowthPort]{Gen: gen, Dis: dis},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns a copy of the current state.
func (s *Scheduler) State() core.ScheduleState {
	return s.state
}

// Config returns the schedule parameters.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Bands returns the band layout at the current level.
func (s *Scheduler) Bands() Bands {
	return s.cfg.Bands(s.state.Level())
}

// Handle returns the active fade-in handle of a network.
func (s *Scheduler) Handle(role core.Role) (core.FadeIn, bool) {
	h := s.handles.Get(role)
	return h, h != nil
}

// Attach installs a fade-in handle for a network.
func (s *Scheduler) Attach(role core.Role, h core.FadeIn) {
	s.handles.Set(role, h)
}

// Reattach takes the fade-in handle of every network whose flush is still
// pending and moves its alpha to the saved completion.
func (s *Scheduler) Reattach() error {
	for _, role := range core.NetworkRoles {
		if !s.state.Flush.Get(role) {
			s.handles.Set(role, nil)
			continue
		}
		h, ok := s.ports.Get(role).FadeIn()
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingFadeIn, role)
		}
		h.UpdateAlpha(s.state.Complete.Get(role)/100 - h.Alpha())
		s.handles.Set(role, h)
	}
	return nil
}

// BeginIteration moves the iteration counter and the dataset cursor for a
// new batch. The epoch increments once the cursor passes the dataset size.
func (s *Scheduler) BeginIteration(batchSize, datasetSize int) {
	s.state.GlobalIter++
	s.state.Stack += int64(batchSize)
	if datasetSize > 0 && s.state.Stack > int64(datasetSize) {
		s.state.Epoch++
		s.state.Stack %= int64(datasetSize)
	}
}

// Advance accounts for one batch of batchSize images. It must be called
// once per batch before any forward pass. A batch larger than Tick is
// rejected; every other error comes from the growth ports or the renewer and
// is fatal to the run.
func (s *Scheduler) Advance(ctx context.Context, batchSize int) error {
	if err := s.cfg.ValidateBatchSize(batchSize); err != nil {
		return err
	}
	b := s.Bands()
	step := s.cfg.AlphaStep(b, batchSize)

	s.inferPhase(b, step)

	// A tick passes when the image count crosses a multiple of Tick. The
	// batch size is at most Tick, so one batch crosses at most one.
	prev := s.state.KImgs
	s.state.KImgs += int64(batchSize)
	if s.state.KImgs/s.cfg.Tick == prev/s.cfg.Tick {
		return nil
	}
	s.state.GlobalTick++
	return s.advanceResolution(ctx, b, step)
}

func (s *Scheduler) inferPhase(b Bands, step float64) {
	st := &s.state
	if st.Phase == core.PhaseFinal {
		return
	}
	frac := st.Fraction()

	if h := s.handles.Gen; h != nil {
		switch {
		case frac < b.GenStabilize:
			h.UpdateAlpha(step)
			st.Complete.Gen = h.Alpha() * 100
			st.Phase = core.PhaseGenTransition
		case frac < b.DisTransition:
			st.Phase = core.PhaseGenStabilize
		}
	}
	if h := s.handles.Dis; h != nil {
		switch {
		case frac >= b.DisTransition && frac < b.DisStabilize:
			h.UpdateAlpha(step)
			st.Complete.Dis = h.Alpha() * 100
			st.Phase = core.PhaseDisTransition
		case frac >= b.DisStabilize:
			st.Phase = core.PhaseDisStabilize
		}
	}
}

func (s *Scheduler) advanceResolution(ctx context.Context, b Bands, step float64) error {
	st := &s.state
	prevLevel := st.Level()
	ceiling := s.cfg.Ceiling(b)

	st.Resolution = min(ceiling, max(core.MinLevel, st.Resolution+b.Delta))
	level, frac := st.Level(), st.Fraction()

	switch {
	case st.Flush.Gen && frac >= b.DisTransition && prevLevel != core.MinLevel:
		if err := s.flush(ctx, core.RoleGen, step); err != nil {
			return err
		}
		st.Phase = core.PhaseDisTransition
	case st.Flush.Dis && level != prevLevel && prevLevel != core.MinLevel:
		if err := s.flush(ctx, core.RoleDis, step); err != nil {
			return err
		}
		if level < s.cfg.MaxLevel && st.Phase != core.PhaseFinal {
			st.Phase = core.PhaseGenTransition
		}
	}

	if level != prevLevel && level <= s.cfg.MaxLevel {
		if err := s.grow(ctx, level); err != nil {
			return err
		}
	}

	// Rounding can leave the fraction a hair below the last edge at the ceiling.
	if level >= s.cfg.MaxLevel && (frac >= b.DisStabilize || st.Resolution >= ceiling) {
		if st.Phase != core.PhaseFinal {
			logger.Info(ctx, "Training schedule complete", tag.Level(level), tag.Tick(st.GlobalTick))
		}
		st.Phase = core.PhaseFinal
		st.Resolution = ceiling
	}
	return nil
}

// flush completes the fade-in of role and removes its blend block.
func (s *Scheduler) flush(ctx context.Context, role core.Role, step float64) error {
	st := &s.state
	if h := s.handles.Get(role); h != nil {
		h.UpdateAlpha(step)
		st.Complete.Set(role, h.Alpha()*100)
	}
	if err := s.ports.Get(role).Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush %s: %w", role, err)
	}
	st.Flush.Set(role, false)
	s.handles.Set(role, nil)
	st.Complete.Set(role, 0)

	logger.Info(ctx, "Network flushed", tag.Role(string(role)), tag.Level(st.Level()), tag.Tick(st.GlobalTick))
	return nil
}

// grow decays the learning rate, grows both networks to level and attaches
// their new fade-in blocks.
func (s *Scheduler) grow(ctx context.Context, level int) error {
	st := &s.state
	st.LearningRate *= s.cfg.LRDecay

	for _, role := range core.NetworkRoles {
		if err := s.ports.Get(role).Grow(ctx, level); err != nil {
			return fmt.Errorf("failed to grow %s to level %d: %w", role, level, err)
		}
	}
	if s.renew != nil {
		if err := s.renew(ctx, s.state); err != nil {
			return fmt.Errorf("failed to renew after growth to level %d: %w", level, err)
		}
	}
	for _, role := range core.NetworkRoles {
		h, ok := s.ports.Get(role).FadeIn()
		if !ok {
			return fmt.Errorf("%w: %s after growth to level %d", ErrMissingFadeIn, role, level)
		}
		s.handles.Set(role, h)
	}
	st.Flush = core.Pair[bool]{Gen: true, Dis: true}

	logger.Info(ctx, "Networks grown",
		tag.Level(level),
		tag.ImageSize(1<<level),
		tag.LearningRate(st.LearningRate),
		tag.Tick(st.GlobalTick),
	)
	return nil
}
