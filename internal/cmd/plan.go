package cmd

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/schedule"
	"github.com/pggan-go/pggan/internal/trainer"
)

var planFlags = []commandLineFlag{batchSizeFlag, imagesFlag, formatFlag}

// Plan returns the cobra command that dry-runs the growth schedule.
func Plan() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "plan [flags]",
			Short: "Print every phase change of the configured schedule",
			Long: `Dry-run the growth schedule without training and print each point where
the phase or the level changes, with the tick, resolution and learning rate
at that point.

Example:
  pggan plan --batch-size 16
`,
			Args: cobra.NoArgs,
		}, planFlags,
		runPlan,
	)
}

// planImages returns enough images to reach the final phase from the start.
func planImages(cfg schedule.Config, batchSize int) int64 {
	first := cfg.Bands(core.MinLevel)
	rest := cfg.Bands(core.MinLevel + 1)
	ticks := int64(2*first.TransitionTicks+2*first.StabilizeTicks) +
		int64(cfg.MaxLevel-core.MinLevel)*int64(2*rest.TransitionTicks+2*rest.StabilizeTicks)
	return (ticks+1)*cfg.Tick + int64(batchSize)
}

type planRow struct {
	Advance      int64   `yaml:"advance"`
	Images       int64   `yaml:"images"`
	Tick         int64   `yaml:"tick"`
	Resolution   float64 `yaml:"resolution"`
	ImageSize    int     `yaml:"image_size"`
	Phase        string  `yaml:"phase"`
	LearningRate float64 `yaml:"learning_rate"`
	CompleteGen  float64 `yaml:"complete_gen"`
	CompleteDis  float64 `yaml:"complete_dis"`
}

type planView struct {
	BatchSize   int       `yaml:"batch_size"`
	Transitions []planRow `yaml:"transitions"`
	Grows       int       `yaml:"grows"`
	Flushes     int       `yaml:"flushes"`
	FinalTick   int64     `yaml:"final_tick"`
	FinalPhase  string    `yaml:"final_phase"`
}

func runPlan(ctx *Context, _ []string) error {
	format, err := ctx.Command.Flags().GetString(formatFlag.name)
	if err != nil {
		return err
	}
	if format != "table" && format != "yaml" {
		return fmt.Errorf("unknown format %q, expected table or yaml", format)
	}
	rawImages, err := ctx.Command.Flags().GetString(imagesFlag.name)
	if err != nil {
		return err
	}
	images, err := strconv.ParseInt(rawImages, 10, 64)
	if err != nil || images < 0 {
		return fmt.Errorf("invalid --images %q: must be a non-negative integer", rawImages)
	}

	tcfg := trainer.FromAppConfig(ctx.Config)
	bs := ctx.Config.Train.BatchSize
	if images == 0 {
		images = planImages(tcfg.Schedule, bs)
	}
	res, err := schedule.Plan(ctx, tcfg.Schedule, core.NewScheduleState(tcfg.LearningRate), bs, images)
	if err != nil {
		return err
	}

	view := planView{
		BatchSize:  bs,
		Grows:      res.Grows,
		Flushes:    res.Flushes,
		FinalTick:  res.Final.GlobalTick,
		FinalPhase: res.Final.Phase.String(),
	}
	for _, tr := range res.Transitions {
		view.Transitions = append(view.Transitions, planRow{
			Advance:      tr.Advance,
			Images:       tr.Images,
			Tick:         tr.Tick,
			Resolution:   tr.Resolution,
			ImageSize:    1 << tr.Level,
			Phase:        tr.Phase.String(),
			LearningRate: tr.LearningRate,
			CompleteGen:  tr.CompleteGen,
			CompleteDis:  tr.CompleteDis,
		})
	}

	if format == "yaml" {
		out, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		_, err = ctx.Out().Write(out)
		return err
	}
	_, err = fmt.Fprintln(ctx.Out(), renderPlan(view))
	return err
}

var planHeader = table.Row{
	"Advance",
	"Images",
	"Tick",
	"Resolution",
	"Size",
	"Phase",
	"LR",
	"Gen %",
	"Dis %",
}

func renderPlan(v planView) string {
	t := table.NewWriter()
	t.AppendHeader(planHeader)
	for _, r := range v.Transitions {
		t.AppendRow(table.Row{
			r.Advance,
			r.Images,
			r.Tick,
			fmt.Sprintf("%.4f", r.Resolution),
			fmt.Sprintf("%d×%d", r.ImageSize, r.ImageSize),
			r.Phase,
			fmt.Sprintf("%g", r.LearningRate),
			fmt.Sprintf("%.1f", r.CompleteGen),
			fmt.Sprintf("%.1f", r.CompleteDis),
		})
	}
	t.AppendFooter(table.Row{"", "", v.FinalTick, "", "", v.FinalPhase, "", fmt.Sprintf("grows %d", v.Grows), fmt.Sprintf("flushes %d", v.Flushes)})
	return t.Render()
}
