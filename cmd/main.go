package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pggan-go/pggan/internal/cmd"
	"github.com/pggan-go/pggan/internal/cmn/config"
)

var rootCmd = &cobra.Command{
	Use:   config.AppSlug,
	Short: "Progressive-growth GAN trainer",
	Long: `pggan trains a generator and a discriminator progressively: both networks
start at 4×4 images and grow one level at a time, fading each new block in
before stabilizing it.
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cmd.Train())
	rootCmd.AddCommand(cmd.Inspect())
	rootCmd.AddCommand(cmd.Plan())
	rootCmd.AddCommand(cmd.Version())

	config.Version = version
}

var version = "0.0.0"
