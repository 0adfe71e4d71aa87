// Package cmd implements the pggan command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pggan-go/pggan/internal/cmn/config"
	"github.com/pggan-go/pggan/internal/cmn/fileutil"
	"github.com/pggan-go/pggan/internal/cmn/logger"
	"github.com/pggan-go/pggan/internal/cmn/logger/tag"
)

// Context holds the configuration for a command.
type Context struct {
	context.Context

	Command *cobra.Command
	Flags   []commandLineFlag
	Config  *config.Config
	Quiet   bool

	closers []io.Closer
}

// NewContext loads the configuration, applying flag overrides, and sets up
// the logger context.
func NewContext(cmd *cobra.Command, flags []commandLineFlag) (*Context, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v := viper.New()
	if err := bindFlags(v, cmd, flags...); err != nil {
		return nil, err
	}

	quiet, err := cmd.Flags().GetBool(quietFlag.name)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}

	var loaderOpts []config.ConfigLoaderOption
	if cfgPath, _ := cmd.Flags().GetString(configFlag.name); cfgPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(cfgPath))
	}
	cfg, err := config.NewConfigLoader(v, loaderOpts...).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	c := &Context{
		Context: ctx,
		Command: cmd,
		Flags:   flags,
		Config:  cfg,
		Quiet:   quiet,
	}

	var logFile *os.File
	if f := cmd.Flags().Lookup(logFileFlag.name); f != nil && f.Value.String() != "" {
		logFile, err = fileutil.OpenOrCreateFile(f.Value.String())
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, logFile)
	}
	c.setLogger(logFile)

	// Log any warnings collected during configuration loading
	for _, w := range cfg.Warnings {
		logger.Warn(c, w)
	}
	return c, nil
}

func (c *Context) setLogger(f *os.File) {
	var opts []logger.Option
	if c.Config.Core.Debug || os.Getenv("DEBUG") != "" {
		opts = append(opts, logger.WithDebug())
	}
	if c.Quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if c.Config.Core.LogFormat != "" {
		opts = append(opts, logger.WithFormat(c.Config.Core.LogFormat))
	}
	if f != nil {
		opts = append(opts, logger.WithWriter(f))
	}
	c.Context = logger.WithLogger(c.Context, logger.NewLogger(opts...))
}

// Out returns the writer command output goes to.
func (c *Context) Out() io.Writer {
	return c.Command.OutOrStdout()
}

func (c *Context) close() {
	for _, cl := range c.closers {
		_ = cl.Close()
	}
}

// NewCommand wires a run function into cmd. The run function receives a
// Context that is cancelled on SIGINT or SIGTERM. Errors are logged and
// returned so the caller can set the exit code.
func NewCommand(cmd *cobra.Command, flags []commandLineFlag, runFunc func(ctx *Context, args []string) error) *cobra.Command {
	initFlags(cmd, flags...)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		base := cmd.Context()
		if base == nil {
			base = context.Background()
		}
		sigCtx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(sigCtx)

		ctx, err := NewContext(cmd, flags)
		if err != nil {
			return fmt.Errorf("initialization error: %w", err)
		}
		defer ctx.close()

		if err := runFunc(ctx, args); err != nil {
			logger.Error(ctx, "Command failed", tag.Error(err))
			return err
		}
		return nil
	}
	return cmd
}
