// Package app wires the market engine daemon together: state store, caches,
// oracle, blob archive, notifications, services, and the API server. It owns
// the process lifecycle for the configured operating mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/outcomelabs/marketd/internal/config"
	"github.com/outcomelabs/marketd/internal/server"
	"github.com/outcomelabs/marketd/internal/server/handler"
	"github.com/outcomelabs/marketd/internal/service"
)

// sweepInterval is how often the archive loop snapshots terminal markets.
const sweepInterval = 15 * time.Minute

// watchInterval is how often the settlement watcher polls the height source.
const watchInterval = 30 * time.Second

// shutdownTimeout bounds the graceful drain of in-flight HTTP requests.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the goroutines for the configured mode,
// and blocks until the context is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("storage", a.cfg.Storage.Backend),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)

	runServer := (mode == "server" || mode == "full") && a.cfg.Server.Enabled
	runSweep := (mode == "archive" || mode == "full") && deps.Archiver != nil

	if mode == "archive" && deps.Archiver == nil {
		return errors.New("app: archive mode requires s3 to be enabled")
	}
	if !runServer && !runSweep {
		return fmt.Errorf("app: nothing to run in mode %q", a.cfg.Mode)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Hub.Run(ctx)
	})

	if runServer {
		srv := a.buildServer(deps)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if runSweep {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	// Full mode drives due markets to settlement automatically.
	if mode == "full" {
		watcher := service.NewSettlementWatcher(
			deps.Settlement,
			deps.Markets,
			deps.Heights,
			a.cfg.Engine.ResolutionWindow,
			a.cfg.Engine.CancelTimeout,
			watchInterval,
			a.logger,
		)
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// buildServer assembles the API server from wired dependencies. Optional
// handlers are included only when their backing integration is configured.
func (a *App) buildServer(deps *Dependencies) *server.Server {
	checks := make(map[string]handler.HealthCheckFunc, len(deps.Checks))
	for name, check := range deps.Checks {
		checks[name] = check
	}

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(checks, a.logger),
		Markets:    handler.NewMarketHandler(deps.Markets, a.logger),
		Trades:     handler.NewTradeHandler(deps.Trades, a.logger),
		Settlement: handler.NewSettlementHandler(deps.Settlement, a.logger),
		Accounts:   handler.NewAccountHandler(deps.Trades, a.logger),
	}
	if deps.SignalBus != nil {
		handlers.Events = handler.NewEventsHandler(deps.SignalBus, a.logger)
	}
	if deps.Archiver != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.Archiver, a.logger)
	}
	if deps.ManualOracle != nil {
		handlers.Admin = handler.NewAdminHandler(deps.ManualOracle, a.logger)
	}

	return server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKeyHash:      a.cfg.Server.APIKeyHash,
		RateLimit:       120,
		RateLimitWindow: time.Minute,
	}, handlers, deps.Hub, deps.RateLimiter, a.logger)
}

// archiveLoop periodically snapshots terminal markets to blob storage.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			count, err := deps.Archiver.ArchiveTerminal(ctx)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive sweep failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count > 0 {
				a.logger.InfoContext(ctx, "archive sweep completed",
					slog.Int64("archived", count),
				)
			}
		}
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
