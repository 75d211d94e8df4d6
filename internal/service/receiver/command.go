package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/sia-bridge/internal/api/http/admin"
	"github.com/oshokin/sia-bridge/internal/config"
	"github.com/oshokin/sia-bridge/internal/forwarder"
	"github.com/oshokin/sia-bridge/internal/logger"
	"github.com/oshokin/sia-bridge/internal/registry"
	"github.com/oshokin/sia-bridge/internal/store"
)

// Options controls the broker process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the
	// panel protocol.
	ListenAddress string
}

// adminShutdownTimeout bounds the admin HTTP server shutdown.
const adminShutdownTimeout = 5 * time.Second

// Run starts the broker and blocks until the context is canceled. It loads
// configuration, builds the account registry, launches the forwarder and the
// admin surface, and serves the panel protocol.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sia-bridge")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	listenAddress := settings.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	reg, err := registry.New(accountList(settings))
	if err != nil {
		return fmt.Errorf("build account registry: %w", err)
	}

	eventStore := store.New(settings.ReplayCapacity)

	fwd := forwarder.New(forwarder.Options{
		URL:          settings.ForwardURL,
		AuthHeader:   settings.ForwardAuthHeader,
		Cookie:       settings.ForwardCookie,
		ExtraHeaders: settings.ForwardExtraHeaders,
		Timeout:      settings.ForwardTimeout,
		MaxAttempts:  settings.ForwardMaxAttempts,
		BaseDelay:    settings.ForwardRetryBaseDelay,
		QueueSize:    settings.ForwardQueueSize,
		Recorder:     eventStore,
	})
	fwd.Start(ctx)

	handler := NewHandler(
		reg,
		eventStore,
		fwd,
		forwarder.NewHeartbeatFilter(settings.HeartbeatCodes),
		settings.Location(),
		settings.IdleTimeout,
	)

	adminServer := startAdminServer(ctx, settings, listenAddress, reg, eventStore, fwd)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(ctx, "Broker listening",
		"listen_address", lis.Addr().String(),
		"admin_address", settings.AdminAddress,
		"forward_url", settings.ForwardURL,
		"accounts", len(settings.Accounts))

	serveErr := NewServer(handler).Serve(ctx, lis)

	// The listener is down; let pending deliveries finish, then stop the
	// admin surface.
	fwd.Wait()
	shutdownAdminServer(ctx, adminServer)

	if serveErr != nil {
		return fmt.Errorf("serve panel protocol: %w", serveErr)
	}

	logger.Info(ctx, "Broker stopped")

	return nil
}

// accountList converts configured accounts to registry entries.
func accountList(settings *config.Config) []registry.Account {
	accounts := make([]registry.Account, 0, len(settings.Accounts))
	for _, account := range settings.Accounts {
		accounts = append(accounts, registry.Account{
			ID:  account.ID,
			Key: []byte(account.Key),
		})
	}

	return accounts
}

// startAdminServer launches the admin HTTP surface on its own goroutine.
func startAdminServer(
	ctx context.Context,
	settings *config.Config,
	listenAddress string,
	reg *registry.Registry,
	eventStore *store.Store,
	fwd *forwarder.Forwarder,
) *http.Server {
	service := &adminService{
		listenAddress: listenAddress,
		forwardURL:    settings.ForwardURL,
		registry:      reg,
		store:         eventStore,
		forwarder:     fwd,
	}

	server := &http.Server{
		Addr:              settings.AdminAddress,
		Handler:           admin.NewServer(service).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		adminCtx := logger.WithName(ctx, "admin")
		logger.InfoKV(adminCtx, "Admin surface listening", "admin_address", settings.AdminAddress)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV(adminCtx, "Admin surface failed", "error", err)
		}
	}()

	return server
}

// shutdownAdminServer stops the admin HTTP server with a bounded wait.
func shutdownAdminServer(ctx context.Context, server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), adminShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WarnKV(ctx, "Admin surface shutdown incomplete", "error", err)
	}
}
