package config

// Definition holds the overall configuration for the application.
// Each field maps to a configuration key defined in external sources (like YAML files)
type Definition struct {
	// Debug toggles debug mode; when true, the application outputs extra logs.
	Debug bool `mapstructure:"debug"`

	// LogFormat defines the output format for log messages.
	// Available options: "json", "text"
	LogFormat string `mapstructure:"log_format"`

	// TZ represents the timezone used for displayed timestamps (for example, "UTC" or "Asia/Tokyo").
	TZ string `mapstructure:"tz"`

	// Paths holds filesystem locations.
	Paths PathsDef `mapstructure:"paths"`

	// Train holds the training hyperparameters.
	Train TrainDef `mapstructure:"train"`

	// Data describes the dataset.
	Data DataDef `mapstructure:"data"`

	// Resume names the checkpoint pair to continue from.
	Resume ResumeDef `mapstructure:"resume"`

	// Metrics configures the prometheus endpoint.
	Metrics MetricsDef `mapstructure:"metrics"`
}

// PathsDef represents the directories used by a run.
type PathsDef struct {
	ModelDir   string `mapstructure:"model_dir"`
	PreviewDir string `mapstructure:"preview_dir"`
}

// TrainDef represents the training hyperparameters.
type TrainDef struct {
	NZ                     int     `mapstructure:"nz"`
	LearningRate           float64 `mapstructure:"lr"`
	LRDecay                float64 `mapstructure:"lr_decay"`
	Beta1                  float64 `mapstructure:"beta1"`
	Beta2                  float64 `mapstructure:"beta2"`
	MaxResolution          int     `mapstructure:"max_resolution"`
	Tick                   int64   `mapstructure:"tick"`
	TransitionTicks        int     `mapstructure:"transition_ticks"`
	StabilizeTicks         int     `mapstructure:"stabilize_ticks"`
	InitialTransitionTicks int     `mapstructure:"initial_transition_ticks"`
	InitialStabilizeTicks  int     `mapstructure:"initial_stabilize_ticks"`
	SnapshotInterval       int64   `mapstructure:"snapshot_interval"`
	SaveImageEvery         int64   `mapstructure:"save_img_every"`
	BatchSize              int     `mapstructure:"batch_size"`
	AddNoise               bool    `mapstructure:"add_noise"`
	Seed                   int64   `mapstructure:"seed"`
	FinalTicks             int64   `mapstructure:"final_ticks"`
}

// DataDef represents the dataset settings.
type DataDef struct {
	Size int `mapstructure:"size"`
}

// ResumeDef represents the checkpoint files to resume from.
type ResumeDef struct {
	Discriminator string `mapstructure:"discriminator"`
	Generator     string `mapstructure:"generator"`
}

// MetricsDef represents the metrics endpoint settings.
type MetricsDef struct {
	Listen string `mapstructure:"listen"`
}
