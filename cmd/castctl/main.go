// Castctl is a command-line sender for cast receivers.
//
// It provides receiver discovery, receiver and media control commands, an
// interactive terminal monitor, and a local websocket relay that streams
// receiver events to subscribers. Communication uses the binary-framed
// JSON control protocol on port 8009.
//
// Usage:
//
//	castctl [command] [flags]
//
// Running without arguments launches the interactive monitor.
// See 'castctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/castctl/internal/logging"
	"github.com/muurk/castctl/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "castctl",
	Short: "Cast Receiver Control Utility",
	Long: `A standalone utility for controlling cast receivers.

Provides receiver discovery, application launch and control, volume and
media commands, an interactive monitor, and a websocket event relay.

If no command is specified, the interactive monitor will launch automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the monitor when no subcommand provided
		return runMonitor(cmd, args)
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
		fmt.Printf("castctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
