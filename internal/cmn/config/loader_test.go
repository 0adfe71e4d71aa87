package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoad(t *testing.T, opts ...ConfigLoaderOption) *Config {
	t.Helper()
	cfg, err := NewConfigLoader(viper.New(), opts...).Load()
	require.NoError(t, err)
	return cfg
}

func testLoadWithError(t *testing.T, opts ...ConfigLoaderOption) error {
	t.Helper()
	_, err := NewConfigLoader(viper.New(), opts...).Load()
	return err
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	cfg := testLoad(t, WithAppHomeDir(home))

	assert.Equal(t, Train{
		NZ:                     512,
		LearningRate:           0.001,
		LRDecay:                0.87,
		Beta1:                  0,
		Beta2:                  0.99,
		MaxResolution:          7,
		Tick:                   1000,
		TransitionTicks:        200,
		StabilizeTicks:         100,
		InitialTransitionTicks: 200,
		InitialStabilizeTicks:  100,
		SnapshotInterval:       50,
		SaveImageEvery:         20,
		BatchSize:              16,
		Seed:                   1,
	}, cfg.Train)
	assert.Equal(t, 30000, cfg.Data.Size)
	assert.Equal(t, "text", cfg.Core.LogFormat)
	assert.False(t, cfg.Core.Debug)
	assert.NotNil(t, cfg.Core.Location)
	assert.Equal(t, home, cfg.Paths.HomeDir)
	assert.Equal(t, filepath.Join(home, "model"), cfg.Paths.ModelDir)
	assert.Equal(t, filepath.Join(home, "preview"), cfg.Paths.PreviewDir)
	assert.False(t, cfg.Resume.Enabled())
	assert.Empty(t, cfg.Paths.ConfigFileUsed)
}

func TestLoad_ConfigFile(t *testing.T) {
	home := t.TempDir()
	configFile := writeConfig(t, home, `
debug: true
log_format: json
tz: UTC
paths:
  model_dir: `+filepath.Join(home, "ckpt")+`
train:
  max_resolution: 4
  tick: 10
  transition_ticks: 2
  stabilize_ticks: 2
  initial_stabilize_ticks: 1
  batch_size: 5
  lr: 0.002
  add_noise: true
data:
  size: 100
metrics:
  listen: ":9400"
`)

	cfg := testLoad(t, WithAppHomeDir(home), WithConfigFile(configFile))

	assert.True(t, cfg.Core.Debug)
	assert.Equal(t, "json", cfg.Core.LogFormat)
	assert.Equal(t, "UTC", cfg.Core.TZ)
	assert.Equal(t, 0, cfg.Core.TzOffsetInSec)
	assert.Equal(t, configFile, cfg.Paths.ConfigFileUsed)
	assert.Equal(t, filepath.Join(home, "ckpt"), cfg.Paths.ModelDir)
	assert.Equal(t, 4, cfg.Train.MaxResolution)
	assert.Equal(t, int64(10), cfg.Train.Tick)
	assert.Equal(t, 2, cfg.Train.TransitionTicks)
	assert.Equal(t, 2, cfg.Train.InitialTransitionTicks, "falls back to transition_ticks")
	assert.Equal(t, 1, cfg.Train.InitialStabilizeTicks)
	assert.Equal(t, 5, cfg.Train.BatchSize)
	assert.InDelta(t, 0.002, cfg.Train.LearningRate, 1e-12)
	assert.True(t, cfg.Train.AddNoise)
	assert.Equal(t, 100, cfg.Data.Size)
	assert.Equal(t, ":9400", cfg.Metrics.Listen)
}

func TestLoad_ConfigFileInHome(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, "train:\n  batch_size: 32\n")

	cfg := testLoad(t, WithAppHomeDir(home))
	assert.Equal(t, 32, cfg.Train.BatchSize)
	assert.Equal(t, filepath.Join(home, "config.yaml"), cfg.Paths.ConfigFileUsed)
}

func TestLoad_Env(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, "train:\n  batch_size: 32\n")

	t.Setenv("PGGAN_BATCH_SIZE", "8")
	t.Setenv("PGGAN_MAX_RESOLUTION", "5")
	t.Setenv("PGGAN_LR_DECAY", "0.5")
	t.Setenv("PGGAN_LOG_FORMAT", "json")
	t.Setenv("PGGAN_TRAIN_SEED", "42")
	t.Setenv("PGGAN_MODEL_DIR", filepath.Join(home, "env-model"))

	cfg := testLoad(t, WithAppHomeDir(home))

	assert.Equal(t, 8, cfg.Train.BatchSize, "env overrides the config file")
	assert.Equal(t, 5, cfg.Train.MaxResolution)
	assert.InDelta(t, 0.5, cfg.Train.LRDecay, 1e-12)
	assert.Equal(t, "json", cfg.Core.LogFormat)
	assert.Equal(t, int64(42), cfg.Train.Seed, "automatic env uses the full key")
	assert.Equal(t, filepath.Join(home, "env-model"), cfg.Paths.ModelDir)
}

func TestLoad_HomeFromEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PGGAN_HOME", home)

	cfg := testLoad(t)
	assert.Equal(t, home, cfg.Paths.HomeDir)
	assert.Equal(t, filepath.Join(home, "model"), cfg.Paths.ModelDir)
}

func TestLoad_DotEnv(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".env"), []byte("PGGAN_NZ=64\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PGGAN_NZ") })

	cfg := testLoad(t, WithAppHomeDir(home))
	assert.Equal(t, 64, cfg.Train.NZ)
}

func TestLoad_Resume(t *testing.T) {
	home := t.TempDir()

	t.Run("BothPaths", func(t *testing.T) {
		configFile := writeConfig(t, home, `
resume:
  discriminator: model/dis_R5_T50.json
  generator: model/gen_R5_T50.json
`)
		cfg := testLoad(t, WithAppHomeDir(home), WithConfigFile(configFile))
		assert.True(t, cfg.Resume.Enabled())
		assert.True(t, filepath.IsAbs(cfg.Resume.Discriminator))
		assert.Equal(t, "gen_R5_T50.json", filepath.Base(cfg.Resume.Generator))
	})

	t.Run("PartialResume", func(t *testing.T) {
		configFile := writeConfig(t, home, "resume:\n  discriminator: dis.json\n")
		err := testLoadWithError(t, WithAppHomeDir(home), WithConfigFile(configFile))
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "both")
	})
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{name: "MaxResolution", content: "train:\n  max_resolution: 1\n", wantMsg: "max resolution"},
		{name: "Tick", content: "train:\n  tick: 0\n", wantMsg: "tick must be positive"},
		{name: "TransitionTicks", content: "train:\n  transition_ticks: -1\n", wantMsg: "transition and stabilize"},
		{name: "LRDecay", content: "train:\n  lr_decay: 1.5\n", wantMsg: "lr decay"},
		{name: "BatchSize", content: "train:\n  batch_size: 0\n", wantMsg: "batch size"},
		{name: "BatchSizeAboveTick", content: "train:\n  tick: 10\n  batch_size: 11\n", wantMsg: "exceeds tick"},
		{name: "DataSize", content: "data:\n  size: 0\n", wantMsg: "data size"},
		{name: "LogFormat", content: "log_format: xml\n", wantMsg: "log format"},
		{name: "Timezone", content: "tz: Mars/Olympus\n", wantMsg: "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			configFile := writeConfig(t, home, tt.content)
			err := testLoadWithError(t, WithAppHomeDir(home), WithConfigFile(configFile))
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	home := t.TempDir()
	err := testLoadWithError(t, WithAppHomeDir(home), WithConfigFile(filepath.Join(home, "nope.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_SamePathsWarning(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, "out")
	configFile := writeConfig(t, home, "paths:\n  model_dir: "+dir+"\n  preview_dir: "+dir+"\n")

	cfg := testLoad(t, WithAppHomeDir(home), WithConfigFile(configFile))
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "same")
}
