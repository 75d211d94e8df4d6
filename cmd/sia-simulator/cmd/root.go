package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/sia-bridge/internal/config"
	"github.com/oshokin/sia-bridge/internal/service/simulator"
	"github.com/oshokin/sia-bridge/internal/version"
)

var (
	// serverAddress of the broker's panel port.
	serverAddress string
	// accountID the simulated panel presents.
	accountID string
	// key enables encrypted data blocks when set.
	key string
	// code runs a single custom signal instead of the scenario list.
	code string
	// zone of the custom signal.
	zone string
	// delay between scenario signals.
	delay time.Duration

	// rootCmd represents the base command for running the panel simulator.
	rootCmd = &cobra.Command{
		Use:   "sia-simulator",
		Short: "Simulate an alarm panel against a running broker.",
		Long: `Dials the broker's panel port and emits correctly framed alarm signals,
printing the acknowledgment each one earned.

By default the simulator walks a scenario list covering alarms, open/close,
tamper, cancel, restore and a heartbeat. Pass --code to send a single custom
signal instead. Pass --key to behave like a panel configured for encryption;
the key must match the account's key on the broker.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &simulator.Options{
				ServerAddress: serverAddress,
				AccountID:     accountID,
				Key:           key,
				Code:          code,
				Zone:          zone,
				Delay:         delay,
			}

			return simulator.Run(ctx, options)
		},
	}
)

// Execute runs the sia-simulator CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&serverAddress, "server", "s", "127.0.0.1"+config.DefaultListenAddress,
		"broker panel address")
	rootCmd.Flags().StringVarP(&accountID, "account", "a", "AAA", "account identifier")
	rootCmd.Flags().StringVarP(&key, "key", "k", "", "symmetric key for encrypted accounts")
	rootCmd.Flags().StringVar(&code, "code", "", "send a single signal with this two-letter code")
	rootCmd.Flags().StringVar(&zone, "zone", "001", "zone of the custom signal")
	rootCmd.Flags().DurationVar(&delay, "delay", time.Second, "delay between scenario signals")
}
