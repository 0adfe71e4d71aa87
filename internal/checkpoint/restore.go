package checkpoint

import (
	"context"
	"fmt"

	"github.com/pggan-go/pggan/internal/cmn/logger"
	"github.com/pggan-go/pggan/internal/cmn/logger/tag"
	"github.com/pggan-go/pggan/internal/core"
)

// ResumePaths names the record pair a run resumes from.
type ResumePaths struct {
	Discriminator string
	Generator     string
}

// Enabled reports whether any path is set.
func (p ResumePaths) Enabled() bool {
	return p.Discriminator != "" || p.Generator != ""
}

// Validate accepts both paths or neither.
func (p ResumePaths) Validate() error {
	if (p.Discriminator == "") != (p.Generator == "") {
		return ErrPartialResume
	}
	return nil
}

// LoadPair reads the two records named by paths.
func LoadPair(ctx context.Context, store core.CheckpointStore, paths ResumePaths) (dis, gen *core.Record, err error) {
	if err := paths.Validate(); err != nil {
		return nil, nil, err
	}
	if !paths.Enabled() {
		return nil, nil, ErrPartialResume
	}
	if dis, err = store.Load(ctx, paths.Discriminator); err != nil {
		return nil, nil, fmt.Errorf("failed to load discriminator checkpoint: %w", err)
	}
	if gen, err = store.Load(ctx, paths.Generator); err != nil {
		return nil, nil, fmt.Errorf("failed to load generator checkpoint: %w", err)
	}
	return dis, gen, nil
}

// Target is the freshly built training setup a restore rebuilds.
type Target interface {
	Network(role core.Role) core.Network
	Optimizer(role core.Role) core.Optimizer
	// Renew re-provisions buffers and optimizers for state.
	Renew(ctx context.Context, state core.ScheduleState) error
}

// Restore rebuilds target at the point dis and gen were captured and
// returns the schedule state to continue from. Networks are grown level by
// level exactly as the original run grew them; a network whose saved
// parameter set lacks the fade-in block is flushed before loading.
// Fade-in handles are not attached here; the scheduler reattaches them.
func Restore(ctx context.Context, target Target, dis, gen *core.Record) (core.ScheduleState, error) {
	if dis == nil || gen == nil {
		return core.ScheduleState{}, ErrPartialResume
	}
	if err := checkPair(dis, gen); err != nil {
		return core.ScheduleState{}, err
	}
	saved := core.Pair[*core.NetworkState]{}
	for _, r := range []struct {
		role core.Role
		rec  *core.Record
	}{{core.RoleDis, dis}, {core.RoleGen, gen}} {
		ns, ok := r.rec.Network(r.role)
		if !ok {
			return core.ScheduleState{}, fmt.Errorf("%w: %s record (role %s) has no %s network",
				ErrRoleRequired, r.role, r.rec.Role, r.role)
		}
		saved.Set(r.role, ns)
	}

	level := dis.Level()
	if err := replayGrowth(ctx, target, level); err != nil {
		return core.ScheduleState{}, err
	}

	for _, role := range core.NetworkRoles {
		if err := loadParams(ctx, target.Network(role), role, saved.Get(role)); err != nil {
			return core.ScheduleState{}, err
		}
	}

	state := core.ScheduleState{
		Resolution:   dis.Resolution,
		Phase:        dis.Phase,
		GlobalTick:   dis.GlobalTick,
		GlobalIter:   dis.GlobalIter,
		KImgs:        dis.KImgs,
		Stack:        dis.Stack,
		Epoch:        dis.Epoch,
		LearningRate: dis.LearningRate,
		Complete:     core.Pair[float64]{Gen: saved.Gen.Complete, Dis: saved.Dis.Complete},
		Flush:        core.Pair[bool]{Gen: saved.Gen.Flush, Dis: saved.Dis.Flush},
	}

	if err := target.Renew(ctx, state); err != nil {
		return core.ScheduleState{}, fmt.Errorf("failed to renew after restore: %w", err)
	}

	for _, role := range core.NetworkRoles {
		blob := saved.Get(role).Optimizer
		if len(blob) == 0 {
			continue
		}
		opt := target.Optimizer(role)
		if opt == nil {
			return core.ScheduleState{}, fmt.Errorf("no %s optimizer to restore into", role)
		}
		if err := opt.LoadStateDict(blob); err != nil {
			return core.ScheduleState{}, fmt.Errorf("failed to load %s optimizer state: %w", role, err)
		}
	}

	logger.Info(ctx, "Checkpoint restored",
		tag.Resolution(state.Resolution),
		tag.Phase(state.Phase.String()),
		tag.Tick(state.GlobalTick),
		tag.Iter(state.GlobalIter),
		tag.RunID(dis.RunID),
	)
	return state, nil
}

// checkPair verifies that both records were captured at the same point.
func checkPair(dis, gen *core.Record) error {
	switch {
	case dis.Resolution != gen.Resolution:
		return fmt.Errorf("%w: resolution %g vs %g", ErrRecordMismatch, dis.Resolution, gen.Resolution)
	case dis.GlobalTick != gen.GlobalTick:
		return fmt.Errorf("%w: tick %d vs %d", ErrRecordMismatch, dis.GlobalTick, gen.GlobalTick)
	case dis.GlobalIter != gen.GlobalIter:
		return fmt.Errorf("%w: iteration %d vs %d", ErrRecordMismatch, dis.GlobalIter, gen.GlobalIter)
	case dis.Phase != gen.Phase:
		return fmt.Errorf("%w: phase %s vs %s", ErrRecordMismatch, dis.Phase, gen.Phase)
	case dis.KImgs != gen.KImgs:
		return fmt.Errorf("%w: images %d vs %d", ErrRecordMismatch, dis.KImgs, gen.KImgs)
	}
	return nil
}

// replayGrowth grows both networks from the initial level up to level. Each
// step flushes the previous fade-in block before growing.
func replayGrowth(ctx context.Context, target Target, level int) error {
	for l := core.MinLevel + 1; l <= level; l++ {
		for _, role := range core.NetworkRoles {
			net := target.Network(role)
			if net == nil {
				return fmt.Errorf("%w: no %s network to restore into", ErrRoleRequired, role)
			}
			if _, ok := net.FadeIn(); ok {
				if err := net.Flush(ctx); err != nil {
					return fmt.Errorf("failed to flush %s while replaying level %d: %w", role, l, err)
				}
			}
		}
		for _, role := range core.NetworkRoles {
			if err := target.Network(role).Grow(ctx, l); err != nil {
				return fmt.Errorf("failed to grow %s while replaying level %d: %w", role, l, err)
			}
		}
	}
	return nil
}

// loadParams loads ns into net, flushing the fade-in block first when the
// saved parameter set was taken after the flush.
func loadParams(ctx context.Context, net core.Network, role core.Role, ns *core.NetworkState) error {
	if net.ParamCount() != ns.ParamCount {
		if _, ok := net.FadeIn(); ok {
			if err := net.Flush(ctx); err != nil {
				return fmt.Errorf("failed to flush %s before loading: %w", role, err)
			}
		}
	}
	if got := net.ParamCount(); got != ns.ParamCount {
		return fmt.Errorf("%w: %s network has %d entries, checkpoint has %d",
			ErrParamCountMismatch, role, got, ns.ParamCount)
	}
	if err := net.LoadStateDict(ns.Params); err != nil {
		return fmt.Errorf("failed to load %s parameters: %w", role, err)
	}
	logger.Debug(ctx, "Parameters loaded", tag.Role(string(role)), tag.ParamCount(ns.ParamCount))
	return nil
}
