package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/tourist-safety/internal/service/client"
	"github.com/oshokin/tourist-safety/internal/service/demo"
	"github.com/oshokin/tourist-safety/internal/service/watcher"
)

var (
	// retry keeps pushing a trigger while the server is unreachable.
	retry bool
	// demoStep is the pause after every demo trigger.
	demoStep time.Duration
	// demoVirtual runs the demo on a manual clock.
	demoVirtual bool

	fireCmd = &cobra.Command{
		Use:   "fire <scenario> <trigger>",
		Short: "Offer a trigger to a scenario.",
		Long: `Offers a trigger to a scenario on the server and prints the outcome:
Applied(state) or Ignored(reason). Ignored triggers are not errors.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // Scenario and trigger.
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Fire(cmd.Context(), &client.FireOptions{
				Options:  clientOptions(cmd),
				Scenario: args[0],
				Trigger:  args[1],
				Retry:    retry,
			})
		},
	}

	snapshotCmd = &cobra.Command{
		Use:   "snapshot <scenario>",
		Short: "Print the current view of a scenario as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := clientOptions(cmd)

			return client.Snapshot(cmd.Context(), &opts, args[0])
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch [scenario]",
		Short: "Follow state changes, notifications and positions.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scenario string
			if len(args) > 0 {
				scenario = args[0]
			}

			return watcher.Run(cmd.Context(), &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Scenario:      scenario,
				Out:           cmd.OutOrStdout(),
			})
		},
	}

	demoCmd = &cobra.Command{
		Use:   "demo <scenario> <trigger>...",
		Short: "Run a scripted trigger sequence in process and print what happens.",
		Example: `  safety-ctl demo geofence enterDanger approve
  safety-ctl demo emergency goInactive reset --step 6s
  safety-ctl demo credential issue expire --virtual`,
		Args: cobra.MinimumNArgs(2), //nolint:mnd // Scenario and at least one trigger.
		RunE: func(cmd *cobra.Command, args []string) error {
			return demo.Run(cmd.Context(), &demo.Options{
				ConfigPath: configPath,
				Scenario:   args[0],
				Triggers:   args[1:],
				Step:       demoStep,
				Virtual:    demoVirtual,
				Out:        cmd.OutOrStdout(),
			})
		},
	}
)

func clientOptions(cmd *cobra.Command) client.Options {
	return client.Options{
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
		Out:           cmd.OutOrStdout(),
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	fireCmd.Flags().BoolVarP(&retry, "retry", "r", false, "retry while the server is unavailable")

	demoCmd.Flags().DurationVar(&demoStep, "step", demo.DefaultStep, "pause after every trigger")
	demoCmd.Flags().BoolVar(&demoVirtual, "virtual", false, "use a virtual clock, pauses take no time")
}
