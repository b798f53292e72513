package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/homescout/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build details",
	Args:  cobra.NoArgs,
	// Build details need no configuration.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
