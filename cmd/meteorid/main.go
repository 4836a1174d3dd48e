package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aphelion-labs/meteorid/cmd/meteorid/commands"
	"github.com/aphelion-labs/meteorid/logger"
)

var rootCmd = &cobra.Command{
	Use:   "meteorid",
	Short: "meteorid - NASA meteorite landings dataset service",
	Long: `meteorid ingests the NASA meteorite landings dataset, normalizes and
classifies it, and serves it over HTTP with aggregate tables, a DataTables
endpoint and a WebSocket feed of refresh events.

Available commands:
  server  - Start the HTTP API server with periodic staleness checks
  refresh - Run a one-shot staleness check / refresh
  journal - Show recent refresh journal entries
  config  - Inspect the effective configuration
  version - Show version information

Examples:
  meteorid server              # Start the API server
  meteorid refresh             # Force a staleness check now
  meteorid journal --limit 10  # Last ten refresh attempts
  meteorid config show         # Effective configuration as TOML`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs.
		// 'config show' output should stay machine-parseable.
		if cmd.Name() != "show" {
			jsonLogs, _ := cmd.Flags().GetBool("json-logs")
			verbosity, _ := cmd.Flags().GetCount("verbose")
			if err := logger.InitializeWithLevel(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")
	rootCmd.PersistentFlags().String("config", "", "Path to a meteorid.toml config file")

	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.RefreshCmd)
	rootCmd.AddCommand(commands.JournalCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
