package schedule

import (
	"context"

	"github.com/pggan-go/pggan/internal/core"
)

// Transition is a point in a dry run where the phase or level changed.
type Transition struct {
	// Advance is the 1-based batch count at which the change was observed.
	Advance      int64
	Images       int64
	Tick         int64
	Resolution   float64
	Level        int
	Phase        core.Phase
	LearningRate float64
	CompleteGen  float64
	CompleteDis  float64
}

// PlanResult summarizes a dry run.
type PlanResult struct {
	Transitions []Transition
	Final       core.ScheduleState
	Grows       int
	Flushes     int
}

// planPort stands in for a network during a dry run.
type planPort struct {
	level   int
	blend   *core.Blend
	grows   *int
	flushes *int
}

func (p *planPort) Grow(_ context.Context, level int) error {
	p.level = level
	p.blend = &core.Blend{}
	*p.grows++
	return nil
}

func (p *planPort) Flush(_ context.Context) error {
	p.blend = nil
	*p.flushes++
	return nil
}

func (p *planPort) FadeIn() (core.FadeIn, bool) {
	if p.blend == nil {
		return nil, false
	}
	return p.blend, true
}

// Plan runs the schedule from state over the given number of images without
// any network and reports every phase or level change. Each growth counts
// once for both networks.
func Plan(ctx context.Context, cfg Config, state core.ScheduleState, batchSize int, images int64) (*PlanResult, error) {
	if err := cfg.ValidateBatchSize(batchSize); err != nil {
		return nil, err
	}
	var grows, flushes int
	gen := &planPort{level: state.Level(), grows: &grows, flushes: &flushes}
	dis := &planPort{level: state.Level(), grows: new(int), flushes: &flushes}

	s, err := New(cfg, state, gen, dis)
	if err != nil {
		return nil, err
	}

	res := &PlanResult{}
	last := s.State()
	var consumed int64
	for n := int64(1); consumed+int64(batchSize) <= images; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Advance(ctx, batchSize); err != nil {
			return nil, err
		}
		consumed += int64(batchSize)

		cur := s.State()
		if cur.Phase != last.Phase || cur.Level() != last.Level() {
			res.Transitions = append(res.Transitions, Transition{
				Advance:      n,
				Images:       consumed,
				Tick:         cur.GlobalTick,
				Resolution:   cur.Resolution,
				Level:        cur.Level(),
				Phase:        cur.Phase,
				LearningRate: cur.LearningRate,
				CompleteGen:  cur.Complete.Gen,
				CompleteDis:  cur.Complete.Dis,
			})
		}
		last = cur
		if cur.Phase == core.PhaseFinal {
			break
		}
	}

	res.Final = s.State()
	res.Grows = grows
	res.Flushes = flushes
	return res, nil
}
