package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/homescout/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded searches",
	Long: `Print the most recent searches stored in the history database
(store.dsn), newest first.

Examples:
  homescout history --limit 5 --format text
  homescout history --location lyon`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	flags := historyCmd.Flags()
	flags.String("location", "", "only searches whose location contains this text")
	flags.IntP("limit", "n", 20, "maximum number of searches")
	flags.StringP("format", "f", "text", "output format: json, jsonl, yaml, text")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("no history database configured: set store.dsn")
	}
	defer func() { _ = st.Close() }()

	location, _ := cmd.Flags().GetString("location")
	limit, _ := cmd.Flags().GetInt("limit")
	results, err := st.Recent(cmd.Context(), location, limit)
	if err != nil {
		return err
	}

	writer, err := output.NewWriter(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}
	return output.WriteResults(writer, results...)
}
