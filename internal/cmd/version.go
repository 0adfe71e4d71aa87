package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pggan-go/pggan/internal/cmn/config"
)

// Version returns the cobra command that prints the version.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the pggan version information",
		Long:  `Print the version number of the pggan executable.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version)
		},
	}
}
