package trainer

import (
	"context"
	"errors"

	"github.com/pggan-go/pggan/internal/cmn/logger"
	"github.com/pggan-go/pggan/internal/cmn/logger/tag"
	"github.com/pggan-go/pggan/internal/core"
)

// Run trains until every stage is done, the final phase has lasted
// FinalTicks ticks, or ctx is cancelled. Cancellation is not an error.
func (t *Trainer) Run(ctx context.Context) error {
	stages := t.cfg.Stages()
	perStage := t.cfg.StageIterations(t.loader.BatchSize())
	logger.Info(ctx, "Training started",
		tag.Resolution(t.State().Resolution),
		tag.Phase(t.State().Phase.String()),
		tag.Stages(stages),
		tag.Iterations(perStage),
	)

	bar := newStageProgress(t.progressOut)
	defer bar.stop()

	for stage := 0; stage < stages; stage++ {
		bar.begin(stage, stages, perStage)
		for i := int64(0); i < perStage; i++ {
			if ctx.Err() != nil {
				return t.stopped(ctx)
			}
			res, err := t.Step(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return t.stopped(ctx)
				}
				return err
			}
			if err := t.afterStep(ctx, res); err != nil {
				return err
			}
			bar.step()
			if t.finalTicksElapsed(res.State) {
				logger.Info(ctx, "Final ticks elapsed",
					tag.Tick(res.State.GlobalTick),
					tag.Resolution(res.State.Resolution),
				)
				return nil
			}
		}
		bar.end()
	}
	logger.Info(ctx, "Training finished", tag.Tick(t.State().GlobalTick), tag.Iter(t.State().GlobalIter))
	return nil
}

func (t *Trainer) afterStep(ctx context.Context, res StepResult) error {
	st := res.State
	logger.Info(ctx, "Step",
		tag.Epoch(st.Epoch),
		tag.Tick(st.GlobalTick),
		tag.Stack(st.Stack),
		tag.LossD(res.LossD),
		tag.LossG(res.LossG),
		tag.LearningRate(st.LearningRate),
		tag.Resolution(st.Resolution),
		tag.ImageSize(st.ImageSize()),
		tag.Phase(st.Phase.String()),
		tag.CompleteGen(st.Complete.Gen),
		tag.CompleteDis(st.Complete.Dis),
	)
	for _, o := range t.observers {
		o.ObserveStep(res)
	}
	if t.snap != nil {
		if _, err := t.snap.Snapshot(ctx); err != nil {
			return err
		}
	}
	if t.previews != nil && st.GlobalIter%t.cfg.SaveImageEvery == 0 {
		if err := t.writePreview(ctx, st); err != nil {
			// A failed preview never stops training.
			logger.Warn(ctx, "Failed to write preview", tag.Error(err))
		}
	}
	return nil
}

func (t *Trainer) writePreview(ctx context.Context, st core.ScheduleState) error {
	out, err := t.engine.Generator().Forward(ctx, t.zTest)
	if err != nil {
		return err
	}
	paths, err := t.previews.write(st.GlobalIter/t.cfg.SaveImageEvery, st, out)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "Preview written", tag.File(paths[0]))
	return nil
}

// finalTicksElapsed records the tick at which the final phase began and
// reports whether FinalTicks more ticks have passed since.
func (t *Trainer) finalTicksElapsed(st core.ScheduleState) bool {
	if t.cfg.FinalTicks == 0 || st.Phase != core.PhaseFinal {
		return false
	}
	if t.finalT < 0 {
		t.finalT = st.GlobalTick
	}
	return st.GlobalTick-t.finalT >= t.cfg.FinalTicks
}

func (t *Trainer) stopped(ctx context.Context) error {
	st := t.State()
	logger.Info(context.WithoutCancel(ctx), "Training stopped",
		tag.Tick(st.GlobalTick),
		tag.Iter(st.GlobalIter),
		tag.Phase(st.Phase.String()),
	)
	return nil
}
