package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "model")
	path := filepath.Join(dir, "dis_R3_T50.json")

	require.NoError(t, WriteJSONAtomic(path, map[string]float64{"resolution": 3.25}, 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]float64
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3.25, got["resolution"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriteFileAtomic_Overwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.True(t, FileExists(dir))
	assert.True(t, IsDir(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}

func TestResolvePath(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		p, err := ResolvePath("  ")
		require.NoError(t, err)
		assert.Empty(t, p)
	})

	t.Run("EnvExpansion", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("PGGAN_TEST_DIR", dir)
		p, err := ResolvePath("$PGGAN_TEST_DIR/model")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "model"), p)
	})
}

func TestSafeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2026-01-02T03_04_05", SafeName("2026-01-02T03:04:05"))
	assert.Equal(t, "a_b", SafeName(" a/b "))
}
