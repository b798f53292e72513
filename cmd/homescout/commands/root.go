// Package commands implements the CLI commands for homescout.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/homescout/internal/config"
	"github.com/jmylchreest/homescout/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "homescout",
	Short: "Scrape real-estate listings from a mobile app and chat about them",
	Long: `Homescout drives a real-estate application on a remote device (Appium)
or a mobile-emulated browser, collects listings (price, details, phone)
and exposes the search to an LLM agent.

Examples:
  # One search, printed as a report
  homescout scrape Lyon 100000 250000 5 --format text

  # Talk to the agent
  homescout chat

  # HTTP API for a front-end
  homescout serve --addr :8000`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// cfg is the configuration loaded before any command runs.
var cfg *config.Config

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.homescout.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("backend", "", "device backend: appium, browser")
	flags.String("endpoint", "", "Appium server URL")

	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("device.backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("device.endpoint", flags.Lookup("endpoint"))
}

// Root returns the root command.
func Root() *cobra.Command {
	return rootCmd
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if err := config.Setup(viper.GetViper(), cfgFile); err != nil {
		return err
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded

	logger.Init(logger.Options{
		Debug:  cfg.Debug,
		Quiet:  cfg.Quiet,
		JSON:   cfg.LogJSON,
		Output: cmd.ErrOrStderr(),
	})
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", "file", used)
	}
	return nil
}

// requireArgs is cobra.ExactArgs with a usage hint.
func requireArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("expected %d arguments: %s", n, usage)
		}
		return nil
	}
}
