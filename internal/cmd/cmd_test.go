package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pggan-go/pggan/internal/cmn/config"
	"github.com/pggan-go/pggan/internal/cmn/dirlock"
	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/persis/filecheckpoint"
)

const smallConfig = `
train:
  nz: 8
  lr: 0.001
  lr_decay: 0.5
  max_resolution: %d
  tick: 10
  transition_ticks: 2
  stabilize_ticks: 2
  snapshot_interval: 4
  save_img_every: 0
  batch_size: 5
  final_ticks: 4
data:
  size: 40
`

// setup points the application home at a temporary directory and writes a
// small schedule config there. It returns the home directory.
func setup(t *testing.T, maxLevel int) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("PGGAN_HOME", home)
	cfg := fmt.Sprintf(smallConfig, maxLevel)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(cfg), 0o600))
	return home
}

func run(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(append(args, "--quiet"))
	c.SetContext(context.Background())
	err := c.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, Version())
	require.NoError(t, err)
	assert.Equal(t, config.Version+"\n", out)
}

func TestPlan(t *testing.T) {
	setup(t, 4)

	out, err := run(t, Plan(), "--format", "yaml")
	require.NoError(t, err)

	var view planView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, 5, view.BatchSize)
	assert.Len(t, view.Transitions, 10)
	assert.Equal(t, 2, view.Grows)
	assert.Equal(t, 3, view.Flushes)
	assert.Equal(t, int64(22), view.FinalTick)
	assert.Equal(t, "final", view.FinalPhase)

	first := view.Transitions[0]
	assert.Equal(t, int64(16), first.Advance)
	assert.Equal(t, 8, first.ImageSize)
	assert.InDelta(t, 0.0005, first.LearningRate, 1e-12)
	last := view.Transitions[len(view.Transitions)-1]
	assert.InDelta(t, 4.75, last.Resolution, 1e-12)

	out, err = run(t, Plan())
	require.NoError(t, err)
	assert.Contains(t, out, "gtrns")
	assert.Contains(t, strings.ToLower(out), "grows 2")

	// The batch size does not change the tick of any transition.
	out, err = run(t, Plan(), "--format", "yaml", "--batch-size", "2")
	require.NoError(t, err)
	var small planView
	require.NoError(t, yaml.Unmarshal([]byte(out), &small))
	assert.Equal(t, view.FinalTick, small.FinalTick)
	assert.Equal(t, 2, small.BatchSize)

	_, err = run(t, Plan(), "--images", "-3")
	require.Error(t, err)
	_, err = run(t, Plan(), "--format", "xml")
	require.Error(t, err)
}

func TestInspect(t *testing.T) {
	setup(t, 4)
	dir := t.TempDir()
	store := filecheckpoint.New(dir)
	rec := &core.Record{
		Version:      core.RecordVersion,
		Role:         core.RoleDis,
		RunID:        "run-1",
		SavedAt:      time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		Resolution:   5.75,
		Phase:        core.PhaseDisStabilize,
		GlobalTick:   30,
		GlobalIter:   61,
		KImgs:        305,
		LearningRate: 0.125,
		Networks: map[core.Role]*core.NetworkState{
			core.RoleDis: {Complete: 100, Flush: true, ParamCount: 12, Params: []byte(`{}`)},
		},
	}
	path, err := store.Save(context.Background(), rec)
	require.NoError(t, err)

	out, err := run(t, Inspect(), path, "--format", "yaml")
	require.NoError(t, err)
	var view recordView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, "run-1", view.RunID)
	assert.Equal(t, 5, view.Level)
	assert.Equal(t, 32, view.ImageSize)
	assert.Equal(t, "dstab", view.Phase)
	require.Len(t, view.Networks, 1)
	assert.True(t, view.Networks[0].Flush)
	assert.Equal(t, 12, view.Networks[0].ParamCount)

	out, err = run(t, Inspect(), path)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "32×32")

	_, err = run(t, Inspect(), filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, core.ErrCheckpointNotFound)
	_, err = run(t, Inspect())
	require.Error(t, err)
}

func TestTrain_ResumeContinuesRun(t *testing.T) {
	home := setup(t, 3)
	modelDir := filepath.Join(home, "model")

	_, err := run(t, Train())
	require.NoError(t, err)

	store := filecheckpoint.New(modelDir)
	ctx := context.Background()
	entries, err := store.List(ctx, core.RoleDis)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(16), entries[0].Tick)

	disPath, err := store.Latest(ctx, core.RoleDis)
	require.NoError(t, err)
	genPath, err := store.Latest(ctx, core.RoleGen)
	require.NoError(t, err)

	_, err = run(t, Train(), "--resume-dis", disPath, "--resume-gen", genPath)
	require.NoError(t, err)

	entries, err = store.List(ctx, core.RoleDis)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(20), entries[1].Tick)

	rec, err := store.Load(ctx, entries[1].Path)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseFinal, rec.Phase)
	assert.InDelta(t, 3.75, rec.Resolution, 1e-12)
}

func TestTrain_Errors(t *testing.T) {
	home := setup(t, 3)

	_, err := run(t, Train(), "--resume-dis", filepath.Join(home, "dis.json"))
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	modelDir := filepath.Join(home, "locked")
	lock, err := dirlock.New(modelDir, nil)
	require.NoError(t, err)
	require.NoError(t, lock.TryLock())
	t.Cleanup(func() { _ = lock.Unlock() })

	_, err = run(t, Train(), "--model-dir", modelDir)
	require.ErrorIs(t, err, dirlock.ErrLockConflict)
}
