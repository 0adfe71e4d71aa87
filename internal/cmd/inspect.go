package cmd

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/persis/filecheckpoint"
)

// Inspect returns the cobra command that prints a checkpoint record.
func Inspect() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "inspect [flags] <checkpoint>",
			Short: "Print the training state stored in a checkpoint record",
			Long: `Print the schedule position and per-network state of a checkpoint record.

Example:
  pggan inspect model/dis_R5_T300_20260506T070809.000000000Z.json --format yaml
`,
			Args: cobra.ExactArgs(1),
		}, []commandLineFlag{formatFlag},
		runInspect,
	)
}

type networkView struct {
	Role           string  `yaml:"role"`
	Complete       float64 `yaml:"complete"`
	Flush          bool    `yaml:"flush"`
	ParamCount     int     `yaml:"param_count"`
	ParamBytes     int     `yaml:"param_bytes"`
	OptimizerBytes int     `yaml:"optimizer_bytes"`
}

type recordView struct {
	File         string        `yaml:"file"`
	Role         string        `yaml:"role"`
	RunID        string        `yaml:"run_id"`
	SavedAt      string        `yaml:"saved_at"`
	Resolution   float64       `yaml:"resolution"`
	Level        int           `yaml:"level"`
	ImageSize    int           `yaml:"image_size"`
	Phase        string        `yaml:"phase"`
	GlobalTick   int64         `yaml:"global_tick"`
	GlobalIter   int64         `yaml:"global_iter"`
	Images       int64         `yaml:"images"`
	Stack        int64         `yaml:"stack"`
	Epoch        int64         `yaml:"epoch"`
	LearningRate float64       `yaml:"learning_rate"`
	Networks     []networkView `yaml:"networks"`
}

func newRecordView(path string, rec *core.Record, loc *time.Location) recordView {
	if loc == nil {
		loc = time.UTC
	}
	v := recordView{
		File:         path,
		Role:         string(rec.Role),
		RunID:        rec.RunID,
		SavedAt:      rec.SavedAt.In(loc).Format(time.RFC3339),
		Resolution:   rec.Resolution,
		Level:        rec.Level(),
		ImageSize:    1 << rec.Level(),
		Phase:        rec.Phase.String(),
		GlobalTick:   rec.GlobalTick,
		GlobalIter:   rec.GlobalIter,
		Images:       rec.KImgs,
		Stack:        rec.Stack,
		Epoch:        rec.Epoch,
		LearningRate: rec.LearningRate,
	}
	roles := lo.Map(lo.Keys(rec.Networks), func(r core.Role, _ int) string { return string(r) })
	slices.Sort(roles)
	for _, role := range roles {
		ns := rec.Networks[core.Role(role)]
		v.Networks = append(v.Networks, networkView{
			Role:           role,
			Complete:       ns.Complete,
			Flush:          ns.Flush,
			ParamCount:     ns.ParamCount,
			ParamBytes:     len(ns.Params),
			OptimizerBytes: len(ns.Optimizer),
		})
	}
	return v
}

func runInspect(ctx *Context, args []string) error {
	format, err := ctx.Command.Flags().GetString(formatFlag.name)
	if err != nil {
		return err
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}

	rec, err := filecheckpoint.New(filepath.Dir(path)).Load(ctx, path)
	if err != nil {
		return err
	}
	view := newRecordView(path, rec, ctx.Config.Core.Location)

	switch format {
	case "yaml":
		out, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		_, err = ctx.Out().Write(out)
		return err
	case "table":
		_, err := fmt.Fprintln(ctx.Out(), renderRecord(view))
		return err
	}
	return fmt.Errorf("unknown format %q, expected table or yaml", format)
}

func renderRecord(v recordView) string {
	summary := table.NewWriter()
	summary.AppendHeader(table.Row{"Field", "Value"})
	summary.AppendRows([]table.Row{
		{"File", v.File},
		{"Role", v.Role},
		{"Run ID", v.RunID},
		{"Saved At", v.SavedAt},
		{"Resolution", fmt.Sprintf("%.4f", v.Resolution)},
		{"Image Size", fmt.Sprintf("%d×%d", v.ImageSize, v.ImageSize)},
		{"Phase", v.Phase},
		{"Tick", v.GlobalTick},
		{"Iteration", v.GlobalIter},
		{"Images", v.Images},
		{"Epoch", v.Epoch},
		{"Stack", v.Stack},
		{"Learning Rate", fmt.Sprintf("%g", v.LearningRate)},
	})

	networks := table.NewWriter()
	networks.AppendHeader(table.Row{"Network", "Complete %", "Flush Pending", "Params", "Param Bytes", "Optimizer Bytes"})
	for _, n := range v.Networks {
		networks.AppendRow(table.Row{n.Role, fmt.Sprintf("%.2f", n.Complete), n.Flush, n.ParamCount, n.ParamBytes, n.OptimizerBytes})
	}
	return summary.Render() + "\n" + networks.Render()
}
