package filecheckpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pggan-go/pggan/internal/core"
)

func testRecord(role core.Role, res float64, tick int64) *core.Record {
	rec := &core.Record{
		Version:      core.RecordVersion,
		Role:         role,
		RunID:        "run-1",
		Resolution:   res,
		Phase:        core.PhaseDisStabilize,
		GlobalTick:   tick,
		GlobalIter:   tick * 2,
		KImgs:        tick * 10,
		LearningRate: 0.00087,
		Networks:     map[core.Role]*core.NetworkState{},
	}
	for _, r := range role.Roles() {
		rec.Networks[r] = &core.NetworkState{
			Complete:   100,
			Flush:      r == core.RoleDis,
			ParamCount: 3,
			Params:     []byte(`{"w":[1,2,3]}`),
			Optimizer:  []byte(`{"step":4}`),
		}
	}
	return rec
}

func TestStore_SaveLoad(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "model")
	ts := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)
	store := New(dir, WithClock(func() time.Time { return ts }))
	ctx := context.Background()

	rec := testRecord(core.RoleDis, 5.75, 50)
	path, err := store.Save(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dis_R5_T50_20260304T050607.000000890Z.json"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
}

func TestStore_Exists(t *testing.T) {
	t.Parallel()

	store := New(t.TempDir())
	ctx := context.Background()

	ok, err := store.Exists(ctx, core.RoleDis, 5, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Save(ctx, testRecord(core.RoleDis, 5.75, 50))
	require.NoError(t, err)

	ok, err = store.Exists(ctx, core.RoleDis, 5, 50)
	require.NoError(t, err)
	assert.True(t, ok, "existence ignores the timestamp")

	ok, err = store.Exists(ctx, core.RoleGen, 5, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Exists(ctx, core.RoleDis, 5, 5)
	require.NoError(t, err)
	assert.False(t, ok, "tick 5 must not match tick 50")
}

func TestStore_ExistsWithGlobCharsInDir(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "run[1]"))
	ctx := context.Background()
	_, err := store.Save(ctx, testRecord(core.RoleGen, 3.25, 100))
	require.NoError(t, err)

	ok, err := store.Exists(ctx, core.RoleGen, 3, 100)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_LoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	_, err := store.Load(ctx, filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, core.ErrCheckpointNotFound)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{"), 0o600))
	_, err = store.Load(ctx, corrupt)
	require.ErrorIs(t, err, core.ErrInvalidRecord)

	rec := testRecord(core.RoleGen, 3, 10)
	rec.Version = 0
	path, err := store.Save(ctx, rec)
	require.NoError(t, err)
	_, err = store.Load(ctx, path)
	require.ErrorIs(t, err, core.ErrInvalidRecord)
}

func TestStore_ListAndLatest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := New(dir)
	ctx := context.Background()

	_, err := store.Latest(ctx, core.RoleGen)
	require.ErrorIs(t, err, core.ErrCheckpointNotFound)

	for i, tick := range []int64{100, 50, 150} {
		rec := testRecord(core.RoleGen, 4.25, tick)
		rec.SavedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := store.Save(ctx, rec)
		require.NoError(t, err)
	}
	_, err = store.Save(ctx, testRecord(core.RoleDis, 4.25, 200))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o600))

	entries, err := store.List(ctx, core.RoleGen)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{50, 100, 150}, []int64{entries[0].Tick, entries[1].Tick, entries[2].Tick})
	assert.Equal(t, 4, entries[0].Level)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	latest, err := store.Latest(ctx, core.RoleGen)
	require.NoError(t, err)
	assert.Equal(t, "gen_R4_T150_20260101T000200.000000000Z.json", filepath.Base(latest))
}

func TestParseFileName(t *testing.T) {
	t.Parallel()

	e, err := ParseFileName("/x/combined_R7_T1200_20260101T000000.000000001Z.json")
	require.NoError(t, err)
	assert.Equal(t, core.RoleCombined, e.Role)
	assert.Equal(t, 7, e.Level)
	assert.Equal(t, int64(1200), e.Tick)
	assert.Equal(t, 1, e.SavedAt.Nanosecond())

	for _, name := range []string{"gen_R7_T1.json", "critic_R7_T1_20260101T000000.000000001Z.json", ".dis_R7_T1_20260101T000000.000000001Z.json.123.tmp"} {
		_, err := ParseFileName(name)
		assert.Error(t, err, name)
	}
}

func TestStore_SaveRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	_, err := New(t.TempDir()).Save(context.Background(), testRecord("critic", 3, 1))
	require.Error(t, err)
}
