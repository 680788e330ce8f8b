package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/tourist-safety/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverAddress overrides the server address from config.
	serverAddress string

	// rootCmd groups the control commands.
	rootCmd = &cobra.Command{
		Use:   "safety-ctl",
		Short: "Drive and observe the tourist safety incident simulator.",
		Long: `Sends triggers to a running safety-server, prints scenario snapshots and
follows the live event stream. The demo command runs a private session in process
and needs no server.

Scenarios and their triggers:
  geofence    enterDanger, approve, reset
  emergency   goInactive, loseSignal, reset
  credential  issue, expire, reset`,
		SilenceUsage: true,
	}
)

// Execute runs the safety-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "server address, overrides config")

	rootCmd.AddCommand(fireCmd, snapshotCmd, watchCmd, demoCmd)
}
