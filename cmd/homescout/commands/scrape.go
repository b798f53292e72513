package commands

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/homescout/internal/logger"
	"github.com/jmylchreest/homescout/internal/output"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <location> <min_price> <max_price> <max_listings>",
	Short: "Run one listing search",
	Long: `Launch the application, search a location and price range, and collect
up to max_listings unique listings.

Examples:
  homescout scrape Lyon 100000 250000 5
  homescout scrape "Paris 11e" 300_000 450_000 10 --format jsonl -o listings.jsonl`,
	Args: requireArgs(4, "<location> <min_price> <max_price> <max_listings>"),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.StringP("format", "f", "json", "output format: json, jsonl, yaml, text")
}

func runScrape(cmd *cobra.Command, args []string) error {
	q, err := parseQuery(args)
	if err != nil {
		return err
	}
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	svc, cleanup, err := newSearchService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path) //#nosec G304 -- CLI writes to a user-specified file
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	writer, err := output.NewWriter(out, format)
	if err != nil {
		return err
	}

	res := svc.FetchListings(cmd.Context(), q)
	if err := output.WriteResults(writer, res); err != nil {
		return err
	}

	logger.Info("scrape finished", "scraped", res.Scraped, "requested", res.Requested, "duration", res.Duration())
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return nil
}
