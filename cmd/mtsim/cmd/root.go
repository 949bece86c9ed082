package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mtsim",
	Short: "A discrete-time margin-trading episode simulator",
	Long: `Mtsim replays historical bar data through a margin account and exposes it
as an episodic environment for trading agents.

It provides tools for:
  - Running episodes from a config file with baseline policies
  - Continuous, discrete and structured action encodings
  - Stop-loss, take-profit and trailing-stop order management
  - Hedged and netting account modes with stop-out handling
  - Journaling closed orders and equity curves to CSV or SQLite
  - Importing bar data from CSV, xz-compressed CSV and zip archives`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func setupLogging(level string, pretty bool) {
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		zerolog.SetGlobalLevel(lvl)
	}
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = log.Output(os.Stderr)
	}
}
