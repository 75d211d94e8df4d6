package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sia-bridge/internal/config"
	"github.com/oshokin/sia-bridge/internal/service/receiver"
	"github.com/oshokin/sia-bridge/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the broker.
	rootCmd = &cobra.Command{
		Use:   "sia-bridge [listen-address]",
		Short: "Run the alarm signal broker.",
		Long: `Starts the broker that receives alarm signals from panels over TCP,
acknowledges them within the panel's retry window and forwards decoded events
to the configured HTTP endpoint.

The listen address can be provided as an argument to override the configured
one (e.g., :65100, 0.0.0.0:65100). Accounts, keys and the forwarding target
come from the configuration file or environment variables.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &receiver.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			}

			return receiver.Run(ctx, options)
		},
	}
)

// Execute runs the sia-bridge CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
