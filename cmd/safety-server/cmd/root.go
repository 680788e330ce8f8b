package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/tourist-safety/internal/logger"
	"github.com/oshokin/tourist-safety/internal/service/server"
	"github.com/oshokin/tourist-safety/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// metricsAddress overrides the metrics endpoint address.
	metricsAddress string
	// allowMultiple disables the single-instance guard.
	allowMultiple bool

	// rootCmd represents the base command for running the simulator server.
	rootCmd = &cobra.Command{
		Use:   "safety-server [listen-address]",
		Short: "Run the tourist safety incident simulator over gRPC.",
		Long: `Starts one simulation session (geofence, emergency and credential scenarios)
and serves it over gRPC: triggers in, snapshots and a live event stream out.

Only the port from server_addr is used for listening (e.g., :50061).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:8080).
Prometheus metrics are served on metrics_addr under /metrics.
Without --config the embedded demo configuration is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				MetricsAddress: metricsAddress,
				AllowMultiple:  allowMultiple,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the safety-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.Flags().StringVarP(&metricsAddress, "metrics", "m", "", `metrics listen address, "-" disables metrics`)
	rootCmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "skip the single-instance check")
}
