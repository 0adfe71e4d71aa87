package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pggan-go/pggan/internal/backend/sim"
	"github.com/pggan-go/pggan/internal/checkpoint"
	"github.com/pggan-go/pggan/internal/cmn/config"
	"github.com/pggan-go/pggan/internal/cmn/dirlock"
	"github.com/pggan-go/pggan/internal/cmn/logger"
	"github.com/pggan-go/pggan/internal/cmn/logger/tag"
	"github.com/pggan-go/pggan/internal/persis/filecheckpoint"
	"github.com/pggan-go/pggan/internal/telemetry"
	"github.com/pggan-go/pggan/internal/trainer"
)

var trainFlags = []commandLineFlag{
	logFileFlag,
	modelDirFlag,
	resumeDisFlag,
	resumeGenFlag,
	metricsListenFlag,
	batchSizeFlag,
}

// Train returns the cobra command that runs progressive training.
func Train() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "train [flags]",
			Short: "Train a progressively growing GAN",
			Long: `Train a generator and a discriminator from 4×4 images up to the configured
maximum resolution, growing both networks one level at a time.

Snapshots are written to the model directory every snapshot_interval ticks
while the schedule is in a stable phase. Only one trainer may use a model
directory at a time.

To continue a run, pass both records of a snapshot pair:
  pggan train --resume-dis model/dis_R5_T300_....json --resume-gen model/gen_R5_T300_....json
`,
			Args: cobra.NoArgs,
		}, trainFlags,
		runTrain,
	)
}

func runTrain(ctx *Context, _ []string) error {
	cfg := ctx.Config

	lock, err := dirlock.New(cfg.Paths.ModelDir, nil)
	if err != nil {
		return err
	}
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, dirlock.ErrLockConflict) {
			return fmt.Errorf("model directory %s is used by another trainer: %w", cfg.Paths.ModelDir, err)
		}
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn(ctx, "Failed to release model directory lock", tag.Error(err))
		}
	}()

	engine, err := sim.New(sim.Config{NZ: cfg.Train.NZ, Seed: cfg.Train.Seed})
	if err != nil {
		return err
	}
	loader, err := sim.NewLoader(cfg.Train.BatchSize, cfg.Data.Size, cfg.Train.Seed)
	if err != nil {
		return err
	}
	collector := telemetry.NewCollector(config.Version)
	store := filecheckpoint.New(cfg.Paths.ModelDir)

	opts := []trainer.Option{
		trainer.WithStore(store),
		trainer.WithObserver(collector),
	}
	if !ctx.Quiet {
		opts = append(opts, trainer.WithProgress(ctx.Command.ErrOrStderr()))
	}
	tr, err := trainer.New(ctx, trainer.FromAppConfig(cfg), engine, loader, opts...)
	if err != nil {
		return err
	}

	if cfg.Metrics.Listen != "" {
		srv := telemetry.NewServer(cfg.Metrics.Listen, telemetry.NewRegistry(collector))
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Failed to shut down metrics server", tag.Error(err))
			}
		}()
	}

	if cfg.Resume.Enabled() {
		paths := checkpoint.ResumePaths{
			Discriminator: cfg.Resume.Discriminator,
			Generator:     cfg.Resume.Generator,
		}
		if err := tr.Resume(ctx, paths); err != nil {
			return fmt.Errorf("failed to resume: %w", err)
		}
	}

	logger.Info(ctx, "Trainer ready",
		tag.RunID(tr.Snapshots().RunID()),
		tag.Dir(cfg.Paths.ModelDir),
		tag.Level(tr.State().Level()),
	)
	return tr.Run(ctx)
}
