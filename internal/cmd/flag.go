package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	// viperKey is the configuration key the flag overrides, if any.
	viperKey string
	isBool   bool
}

var (
	configFlag = commandLineFlag{
		name:      "config",
		shorthand: "c",
		usage:     "config file (default is $PGGAN_HOME/config.yaml or $XDG_CONFIG_HOME/pggan/config.yaml)",
	}
	quietFlag = commandLineFlag{
		name:      "quiet",
		shorthand: "q",
		usage:     "suppress log output on stderr",
		isBool:    true,
	}
	logFileFlag = commandLineFlag{
		name:  "log-file",
		usage: "also write logs to this file",
	}
	modelDirFlag = commandLineFlag{
		name:     "model-dir",
		usage:    "directory receiving checkpoint records",
		viperKey: "paths.model_dir",
	}
	resumeDisFlag = commandLineFlag{
		name:     "resume-dis",
		usage:    "discriminator checkpoint to resume from (requires --resume-gen)",
		viperKey: "resume.discriminator",
	}
	resumeGenFlag = commandLineFlag{
		name:     "resume-gen",
		usage:    "generator checkpoint to resume from (requires --resume-dis)",
		viperKey: "resume.generator",
	}
	metricsListenFlag = commandLineFlag{
		name:     "metrics-listen",
		usage:    "address of the prometheus metrics endpoint, e.g. :9090",
		viperKey: "metrics.listen",
	}
	batchSizeFlag = commandLineFlag{
		name:      "batch-size",
		shorthand: "b",
		usage:     "images per batch",
		viperKey:  "train.batch_size",
	}
	formatFlag = commandLineFlag{
		name:         "format",
		shorthand:    "f",
		defaultValue: "table",
		usage:        "output format: table or yaml",
	}
	imagesFlag = commandLineFlag{
		name:         "images",
		defaultValue: "0",
		usage:        "number of images to simulate (0 runs until the final phase)",
	}
)

// initFlags registers the common flags and addFlags on cmd.
func initFlags(cmd *cobra.Command, addFlags ...commandLineFlag) {
	flags := append([]commandLineFlag{configFlag, quietFlag}, addFlags...)
	for _, flag := range flags {
		if flag.isBool {
			cmd.Flags().BoolP(flag.name, flag.shorthand, flag.defaultValue == "true", flag.usage)
			continue
		}
		cmd.Flags().StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
	}
}

// bindFlags binds every flag that overrides a configuration key to v.
func bindFlags(v *viper.Viper, cmd *cobra.Command, flags ...commandLineFlag) error {
	for _, flag := range flags {
		if flag.viperKey == "" {
			continue
		}
		if err := v.BindPFlag(flag.viperKey, cmd.Flags().Lookup(flag.name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.name, err)
		}
	}
	return nil
}
