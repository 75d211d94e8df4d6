package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/sia-bridge/internal/logger"
)

// Options controls one simulator run.
type Options struct {
	// ServerAddress is the broker's panel port.
	ServerAddress string
	// AccountID is the account the simulated panel presents.
	AccountID string
	// Key makes the panel send encrypted data blocks when set.
	Key string
	// Code runs a single custom signal instead of the scenario list.
	Code string
	// Zone is the zone of the custom signal.
	Zone string
	// Delay spaces scenario signals.
	Delay time.Duration
	// Timeout bounds dial, write and response read per signal.
	Timeout time.Duration
}

// Run executes the simulator: the full scenario list by default, or a single
// custom signal when a code is given.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sia-simulator")

	sim, err := New(opts.ServerAddress, opts.AccountID, []byte(opts.Key), opts.Timeout)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Simulator starting",
		"server_address", opts.ServerAddress,
		"account", opts.AccountID,
		"encrypted", opts.Key != "")

	if opts.Code != "" {
		zone := opts.Zone
		if zone == "" {
			zone = "001"
		}

		response, err := sim.Send(ctx, opts.Code, zone)
		if err != nil {
			return fmt.Errorf("send %s: %w", opts.Code, err)
		}

		logger.InfoKV(ctx, "Signal acknowledged", "code", opts.Code, "zone", zone, "response", response)

		return nil
	}

	if err := sim.RunScenarios(ctx, DefaultScenarios(), opts.Delay); err != nil {
		return fmt.Errorf("run scenarios: %w", err)
	}

	logger.Info(ctx, "All scenarios completed")

	return nil
}
