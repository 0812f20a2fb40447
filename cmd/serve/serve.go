// Package serve implements the serve subcommand: it wires the store, the
// domain services, the presence sweeper, the session bootstrapper and the
// HTTP API together and runs until interrupted.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/casetrail/casetrail/internal/activity"
	api "github.com/casetrail/casetrail/internal/api/v2"
	"github.com/casetrail/casetrail/internal/collaboration"
	"github.com/casetrail/casetrail/internal/conf"
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/evidence"
	"github.com/casetrail/casetrail/internal/investigation"
	"github.com/casetrail/casetrail/internal/logging"
	"github.com/casetrail/casetrail/internal/observability"
	"github.com/casetrail/casetrail/internal/relay"
	"github.com/casetrail/casetrail/internal/session"
	"github.com/casetrail/casetrail/internal/telemetry"
)

// Command returns the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the coordination engine HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServer(cmd.Context(), settings)
		},
	}
}

// RunServer starts every component and blocks until SIGINT or SIGTERM.
func RunServer(ctx context.Context, settings *conf.Settings) error {
	logging.Init()

	if settings.Telemetry.Enabled {
		if err := telemetry.Init(settings); err != nil {
			logging.Warn("telemetry initialization failed", "error", err)
		} else {
			defer telemetry.Shutdown()
		}
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("closing datastore failed", "error", err)
		}
	}()

	services := api.Services{
		Investigations: investigation.NewService(store, metrics),
		Evidence:       evidence.NewLedger(store, metrics),
		Activity:       activity.NewLog(store),
		Collaboration:  collaboration.NewTracker(store, metrics),
	}

	pressure := session.NewPressureMonitor(&settings.Session)

	// The sweeper always runs; memory pressure stretches its interval but
	// never disables staleness detection.
	sweeper := collaboration.NewSweeper(services.Collaboration, &settings.Presence, pressure.High)
	sweeper.Start()

	var channel session.Channel
	if settings.Relay.Enabled {
		channel = relay.NewClient(relay.NewConfig(settings))
	} else {
		channel = noopChannel{}
	}
	bootstrapper := session.NewBootstrapper(channel, settings.Session.BootstrapDeadline, pressure.High, metrics)
	services.Bootstrapper = bootstrapper

	e := echo.New()
	e.HideBanner = true
	controller := api.New(e, store, settings, services, metrics)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The bootstrap race runs alongside the listener; data-layer traffic
	// is never gated on the collaboration channel.
	go func() {
		state := bootstrapper.Start(runCtx)
		logging.Info("session bootstrap finished", "state", state)
	}()

	addr := fmt.Sprintf("%s:%d", settings.HTTP.Host, settings.HTTP.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()
	logging.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
	case <-runCtx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error("http shutdown failed", "error", err)
	}
	controller.Shutdown()
	sweeper.Stop()
	if settings.Relay.Enabled {
		if c, ok := channel.(relay.Client); ok {
			c.Disconnect()
		}
	}
	bootstrapper.Close()
	return nil
}

// noopChannel stands in for the relay when it is disabled; the session
// bootstraps straight to Ready.
type noopChannel struct{}

func (noopChannel) Connect(context.Context) error { return nil }
