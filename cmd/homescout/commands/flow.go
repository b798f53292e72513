package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/homescout/internal/flow"
)

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Inspect search flows",
}

var flowShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active flow as YAML",
	Long: `Print the configured flow (flow.file) or the built-in one. The output is
a starting point for a custom flow file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Flow.File
		}
		f, err := loadFlow(path)
		if err != nil {
			return err
		}
		data, err := f.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var flowValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a flow file",
	Args:  requireArgs(1, "<file>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := flow.FromFile(args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: flow %q for %s is valid (%d steps)\n", args[0], f.Name, f.App, len(f.Steps))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flowCmd)
	flowCmd.AddCommand(flowShowCmd, flowValidateCmd)
	flowShowCmd.Flags().String("file", "", "flow file (default: configured or built-in flow)")
}
