// Package main provides the entry point for the wishare API service.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/thebtf/wishare/internal/app"
	"github.com/thebtf/wishare/internal/config"
	"github.com/thebtf/wishare/internal/maintenance"
	"github.com/thebtf/wishare/internal/migration"
	"github.com/thebtf/wishare/internal/server"
	"github.com/thebtf/wishare/internal/watcher"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time via ldflags.
var Version = "dev"

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		app.SetupLogging("info", os.Stderr)
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger := app.SetupLogging(cfg.LogLevel, os.Stderr)

	logger.Info().
		Str("version", Version).
		Str("env", cfg.Env).
		Str("driver", cfg.Database.Driver).
		Msg("Starting wishare API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("wishare API stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("wishare API shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	// The service must not serve against a schema it does not understand.
	if err := a.Manager.Bootstrap(ctx, cfg.AutoMigrate); err != nil {
		return err
	}

	checks := maintenance.NewService(a.Manager, cfg.Scripts.CheckInterval, logger)

	opts := server.Options{
		Addr:        cfg.HTTPAddr,
		Driver:      a.Provider.Name(),
		Development: cfg.IsDevelopment(),
		SchemaCheck: checks,
	}
	if a.History != nil {
		opts.History = a.History
	}
	srv := server.New(a.Manager, a.Executor, logger, opts)

	// The watcher starts before any server goroutine so that a failure here
	// leaves nothing running against the database closed on return.
	if cfg.Scripts.Watch {
		w := watcher.New(a.Source.Dir(), recheck(a.Manager, cfg.AutoMigrate, logger), logger,
			watcher.WithDebounce(cfg.Scripts.WatchDebounce))
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := w.Stop(); err != nil {
				logger.Warn().Err(err).Msg("Failed to stop script watcher")
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.ListenAndServe)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		checks.Start(gctx)
		return nil
	})

	return g.Wait()
}

// recheck re-evaluates the schema version after the script directory changed.
// With auto-migrate enabled newly deployed scripts are applied immediately.
func recheck(m *migration.Manager, autoUpdate bool, logger zerolog.Logger) watcher.ChangeFunc {
	return func(ctx context.Context, _ []string) {
		upToDate, err := m.CheckDatabaseVersion(ctx)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("Schema check after script change failed")
			return
		case upToDate:
			return
		case !autoUpdate:
			logger.Warn().Msg("New migration scripts found; run wishare-migrate update")
			return
		}
		if err := m.UpdateDatabase(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Schema update after script change failed")
		}
	}
}
