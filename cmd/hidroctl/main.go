// Hidroctl is a control utility for Hidromotic irrigation controllers.
//
// It provides controller discovery, a live terminal dashboard, direct zone
// and auto-irrigation commands, and an MQTT bridge for home automation.
// Communication happens over the controller's WebSocket port; no hardware
// modification is required.
//
// Usage:
//
//	hidroctl [command] [flags]
//
// Running without arguments launches the live dashboard.
// See 'hidroctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/hidroctl/internal/logging"
	"github.com/muurk/hidroctl/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hidroctl",
	Short: "Hidromotic Irrigation Controller Utility",
	Long: `A standalone utility for Hidromotic irrigation controllers.

Provides controller discovery, a live terminal dashboard, direct zone and
auto-irrigation commands, and an MQTT bridge with Home Assistant
autodiscovery.

If no command is specified, the live dashboard will launch automatically.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the dashboard when no subcommand provided
		return runWatch(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hidroctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
