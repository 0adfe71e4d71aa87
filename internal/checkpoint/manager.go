// Package checkpoint captures the training state into records, decides when
// to persist them and rebuilds a run from a saved pair.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pggan-go/pggan/internal/cmn/logger"
	"github.com/pggan-go/pggan/internal/cmn/logger/tag"
	"github.com/pggan-go/pggan/internal/core"
)

// DefaultInterval is the tick interval between snapshots.
const DefaultInterval = 50

// Source exposes the live state of a run.
type Source interface {
	State() core.ScheduleState
	Network(role core.Role) core.Network
	Optimizer(role core.Role) core.Optimizer
}

// Manager writes snapshots of a running training loop.
type Manager struct {
	store    core.CheckpointStore
	source   Source
	interval int64
	runID    string
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithInterval sets the tick interval between snapshots.
func WithInterval(ticks int64) Option {
	return func(m *Manager) {
		if ticks > 0 {
			m.interval = ticks
		}
	}
}

// WithRunID stamps records with id instead of a random one.
func WithRunID(id string) Option {
	return func(m *Manager) {
		m.runID = id
	}
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New returns a manager persisting snapshots of source into store.
func New(store core.CheckpointStore, source Source, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		source:   source,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.runID == "" {
		m.runID = uuid.NewString()
	}
	return m
}

// RunID returns the identifier stamped into every record.
func (m *Manager) RunID() string {
	return m.runID
}

// Capture builds a record of the current state for role. It does not
// modify the state.
func (m *Manager) Capture(role core.Role) (*core.Record, error) {
	roles := role.Roles()
	if roles == nil {
		return nil, fmt.Errorf("%w: unknown role %q", ErrRoleRequired, role)
	}

	st := m.source.State()
	rec := &core.Record{
		Version:      core.RecordVersion,
		Role:         role,
		RunID:        m.runID,
		SavedAt:      m.now().UTC(),
		Resolution:   st.Resolution,
		Phase:        st.Phase,
		GlobalTick:   st.GlobalTick,
		GlobalIter:   st.GlobalIter,
		KImgs:        st.KImgs,
		Stack:        st.Stack,
		Epoch:        st.Epoch,
		LearningRate: st.LearningRate,
		Networks:     make(map[core.Role]*core.NetworkState, len(roles)),
	}

	for _, r := range roles {
		ns, err := m.captureNetwork(r, st)
		if err != nil {
			return nil, err
		}
		rec.Networks[r] = ns
	}
	return rec, nil
}

func (m *Manager) captureNetwork(role core.Role, st core.ScheduleState) (*core.NetworkState, error) {
	net := m.source.Network(role)
	if net == nil {
		return nil, fmt.Errorf("%w: no %s network to capture", ErrRoleRequired, role)
	}
	params, err := net.StateDict()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s parameters: %w", role, err)
	}
	ns := &core.NetworkState{
		Complete:   st.Complete.Get(role),
		Flush:      st.Flush.Get(role),
		ParamCount: net.ParamCount(),
		Params:     params,
	}
	if opt := m.source.Optimizer(role); opt != nil {
		if ns.Optimizer, err = opt.StateDict(); err != nil {
			return nil, fmt.Errorf("failed to serialize %s optimizer: %w", role, err)
		}
	}
	return ns, nil
}

// ShouldSnapshot reports whether state is due for a snapshot: the tick is a
// multiple of the interval, the phase is stable and nothing was written for
// this level and tick yet.
func (m *Manager) ShouldSnapshot(ctx context.Context, state core.ScheduleState) (bool, error) {
	if state.GlobalTick%m.interval != 0 || !state.Phase.IsStable() {
		return false, nil
	}
	exists, err := m.store.Exists(ctx, core.RoleDis, state.Level(), state.GlobalTick)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Snapshot writes a generator and a discriminator record sharing one
// timestamp when the current state is due. The discriminator record is
// written last and marks the pair as complete. It returns the written paths.
func (m *Manager) Snapshot(ctx context.Context) ([]string, error) {
	st := m.source.State()
	due, err := m.ShouldSnapshot(ctx, st)
	if err != nil || !due {
		return nil, err
	}

	ts := m.now().UTC()
	var paths []string
	for _, role := range []core.Role{core.RoleGen, core.RoleDis} {
		rec, err := m.Capture(role)
		if err != nil {
			return paths, err
		}
		rec.SavedAt = ts
		path, err := m.store.Save(ctx, rec)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	logger.Info(ctx, "Snapshot saved",
		tag.Level(st.Level()),
		tag.Tick(st.GlobalTick),
		tag.Phase(st.Phase.String()),
		tag.RunID(m.runID),
	)
	return paths, nil
}
