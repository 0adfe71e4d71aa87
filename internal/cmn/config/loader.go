package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pggan-go/pggan/internal/cmn/fileutil"
)

// ConfigLoader reads and merges configuration from various sources.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	warnings   []string
	appHomeDir string
}

// ConfigLoaderOption defines a functional option for configuring a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile returns a ConfigLoaderOption that sets the configuration file path.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// WithAppHomeDir returns a ConfigLoaderOption that sets the application home directory
// used by the ConfigLoader, overriding the default PGGAN_HOME resolution.
func WithAppHomeDir(dir string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.appHomeDir = dir
	}
}

// NewConfigLoader creates a ConfigLoader with the given viper instance and options.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load is a shortcut for NewConfigLoader(viper.New(), options...).Load().
func Load(options ...ConfigLoaderOption) (*Config, error) {
	return NewConfigLoader(viper.New(), options...).Load()
}

// homePaths are the directories derived from the application home.
type homePaths struct {
	homeDir   string
	configDir string
}

// Load reads configuration files, applies defaults and environment overrides,
// and returns a validated Config instance.
func (l *ConfigLoader) Load() (*Config, error) {
	paths, err := l.resolveHome()
	if err != nil {
		return nil, err
	}

	l.configureViper(paths.configDir, l.configFile)
	if err := l.loadDotEnv(paths.configDir); err != nil {
		return nil, err
	}
	l.bindEnvironmentVariables()
	l.setViperDefaultValues(paths)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var def Definition
	if err := l.v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def, paths)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveHome determines the application home and config directories.
// Precedence: WithAppHomeDir, then $PGGAN_HOME, then the XDG directories.
func (l *ConfigLoader) resolveHome() (homePaths, error) {
	home := l.appHomeDir
	if home == "" {
		home = os.Getenv(strings.ToUpper(AppSlug) + "_HOME")
	}
	if home != "" {
		resolved, err := fileutil.ResolvePath(home)
		if err != nil {
			return homePaths{}, fmt.Errorf("failed to resolve home directory %q: %w", home, err)
		}
		return homePaths{homeDir: resolved, configDir: resolved}, nil
	}
	return homePaths{
		homeDir:   filepath.Join(xdg.DataHome, AppSlug),
		configDir: filepath.Join(xdg.ConfigHome, AppSlug),
	}, nil
}

// loadDotEnv loads a .env file next to the config file. Variables already
// present in the environment win.
func (l *ConfigLoader) loadDotEnv(configDir string) error {
	path := filepath.Join(configDir, ".env")
	if !fileutil.FileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (l *ConfigLoader) buildConfig(def Definition, paths homePaths) (*Config, error) {
	cfg := Config{
		Core: Core{
			Debug:     def.Debug,
			LogFormat: def.LogFormat,
			TZ:        def.TZ,
		},
		Train: Train{
			NZ:                     def.Train.NZ,
			LearningRate:           def.Train.LearningRate,
			LRDecay:                def.Train.LRDecay,
			Beta1:                  def.Train.Beta1,
			Beta2:                  def.Train.Beta2,
			MaxResolution:          def.Train.MaxResolution,
			Tick:                   def.Train.Tick,
			TransitionTicks:        def.Train.TransitionTicks,
			StabilizeTicks:         def.Train.StabilizeTicks,
			InitialTransitionTicks: def.Train.InitialTransitionTicks,
			InitialStabilizeTicks:  def.Train.InitialStabilizeTicks,
			SnapshotInterval:       def.Train.SnapshotInterval,
			SaveImageEvery:         def.Train.SaveImageEvery,
			BatchSize:              def.Train.BatchSize,
			AddNoise:               def.Train.AddNoise,
			Seed:                   def.Train.Seed,
			FinalTicks:             def.Train.FinalTicks,
		},
		Data:    Data{Size: def.Data.Size},
		Metrics: Metrics{Listen: def.Metrics.Listen},
	}

	// The initial level follows the regular band lengths unless told otherwise.
	if cfg.Train.InitialTransitionTicks == 0 {
		cfg.Train.InitialTransitionTicks = cfg.Train.TransitionTicks
	}
	if cfg.Train.InitialStabilizeTicks == 0 {
		cfg.Train.InitialStabilizeTicks = cfg.Train.StabilizeTicks
	}

	if err := setTimezone(&cfg.Core); err != nil {
		return nil, err
	}
	if err := l.loadPathsConfig(&cfg, def, paths); err != nil {
		return nil, err
	}
	if err := l.loadResumeConfig(&cfg, def); err != nil {
		return nil, err
	}

	cfg.Warnings = l.warnings
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *ConfigLoader) loadPathsConfig(cfg *Config, def Definition, paths homePaths) error {
	var err error
	cfg.Paths.HomeDir = paths.homeDir
	if cfg.Paths.ConfigFileUsed, err = l.resolvePath("config file", l.v.ConfigFileUsed()); err != nil {
		return err
	}
	if cfg.Paths.ModelDir, err = l.resolvePath("model", def.Paths.ModelDir); err != nil {
		return err
	}
	if cfg.Paths.PreviewDir, err = l.resolvePath("preview", def.Paths.PreviewDir); err != nil {
		return err
	}
	if cfg.Paths.ModelDir == cfg.Paths.PreviewDir && cfg.Paths.ModelDir != "" {
		l.warnings = append(l.warnings, fmt.Sprintf("model and preview directories are the same: %s", cfg.Paths.ModelDir))
	}
	return nil
}

func (l *ConfigLoader) loadResumeConfig(cfg *Config, def Definition) error {
	var err error
	if cfg.Resume.Discriminator, err = l.resolvePath("resume discriminator", def.Resume.Discriminator); err != nil {
		return err
	}
	if cfg.Resume.Generator, err = l.resolvePath("resume generator", def.Resume.Generator); err != nil {
		return err
	}
	return nil
}

// resolvePath resolves a path to an absolute path. Empty paths are returned as-is.
func (l *ConfigLoader) resolvePath(fieldName, pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	resolved, err := fileutil.ResolvePath(pathValue)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s path %q: %w", fieldName, pathValue, err)
	}
	return resolved, nil
}

// setViperDefaultValues sets the defaults of every key. Training defaults are
// the settings PGGAN was published with.
func (l *ConfigLoader) setViperDefaultValues(paths homePaths) {
	l.v.SetDefault("debug", false)
	l.v.SetDefault("log_format", "text")
	l.v.SetDefault("tz", "")

	l.v.SetDefault("paths.model_dir", filepath.Join(paths.homeDir, "model"))
	l.v.SetDefault("paths.preview_dir", filepath.Join(paths.homeDir, "preview"))

	l.v.SetDefault("train.nz", 512)
	l.v.SetDefault("train.lr", 0.001)
	l.v.SetDefault("train.lr_decay", 0.87)
	l.v.SetDefault("train.beta1", 0.0)
	l.v.SetDefault("train.beta2", 0.99)
	l.v.SetDefault("train.max_resolution", 7)
	l.v.SetDefault("train.tick", 1000)
	l.v.SetDefault("train.transition_ticks", 200)
	l.v.SetDefault("train.stabilize_ticks", 100)
	l.v.SetDefault("train.initial_transition_ticks", 0)
	l.v.SetDefault("train.initial_stabilize_ticks", 0)
	l.v.SetDefault("train.snapshot_interval", 50)
	l.v.SetDefault("train.save_img_every", 20)
	l.v.SetDefault("train.batch_size", 16)
	l.v.SetDefault("train.add_noise", false)
	l.v.SetDefault("train.seed", 1)
	l.v.SetDefault("train.final_ticks", 0)

	l.v.SetDefault("data.size", 30000)

	l.v.SetDefault("resume.discriminator", "")
	l.v.SetDefault("resume.generator", "")

	l.v.SetDefault("metrics.listen", "")
}

type envBinding struct {
	key    string
	env    string
	isPath bool
}

var envBindings = []envBinding{
	{key: "debug", env: "DEBUG"},
	{key: "log_format", env: "LOG_FORMAT"},
	{key: "tz", env: "TZ"},

	{key: "paths.model_dir", env: "MODEL_DIR", isPath: true},
	{key: "paths.preview_dir", env: "PREVIEW_DIR", isPath: true},

	{key: "train.nz", env: "NZ"},
	{key: "train.lr", env: "LR"},
	{key: "train.lr_decay", env: "LR_DECAY"},
	{key: "train.beta1", env: "BETA1"},
	{key: "train.beta2", env: "BETA2"},
	{key: "train.max_resolution", env: "MAX_RESOLUTION"},
	{key: "train.tick", env: "TICK"},
	{key: "train.transition_ticks", env: "TRANSITION_TICKS"},
	{key: "train.stabilize_ticks", env: "STABILIZE_TICKS"},
	{key: "train.initial_transition_ticks", env: "INITIAL_TRANSITION_TICKS"},
	{key: "train.initial_stabilize_ticks", env: "INITIAL_STABILIZE_TICKS"},
	{key: "train.snapshot_interval", env: "SNAPSHOT_INTERVAL"},
	{key: "train.save_img_every", env: "SAVE_IMG_EVERY"},
	{key: "train.batch_size", env: "BATCH_SIZE"},
	{key: "train.add_noise", env: "ADD_NOISE"},
	{key: "train.seed", env: "SEED"},
	{key: "train.final_ticks", env: "FINAL_TICKS"},

	{key: "data.size", env: "DATA_SIZE"},

	{key: "resume.discriminator", env: "RESUME_DIS", isPath: true},
	{key: "resume.generator", env: "RESUME_GEN", isPath: true},

	{key: "metrics.listen", env: "METRICS_LISTEN"},
}

func (l *ConfigLoader) bindEnvironmentVariables() {
	prefix := strings.ToUpper(AppSlug) + "_"

	for _, b := range envBindings {
		fullEnv := prefix + b.env

		if b.isPath {
			if val := os.Getenv(fullEnv); val != "" {
				if abs, err := filepath.Abs(val); err == nil && abs != val {
					_ = os.Setenv(fullEnv, abs)
				}
			}
		}

		_ = l.v.BindEnv(b.key, fullEnv)
	}
}

func (l *ConfigLoader) configureViper(configDir, configFile string) {
	if configFile == "" {
		l.v.AddConfigPath(configDir)
		l.v.SetConfigName("config")
	} else {
		l.v.SetConfigFile(configFile)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(AppSlug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
}
