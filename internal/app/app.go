// Package app wires configuration, database provider and migration manager
// together for the wishare binaries.
package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/thebtf/wishare/internal/config"
	"github.com/thebtf/wishare/internal/db"
	"github.com/thebtf/wishare/internal/db/gorm"
	"github.com/thebtf/wishare/internal/db/providers"
	"github.com/thebtf/wishare/internal/migration"
	"gorm.io/gorm/logger"
)

// App holds the components shared by the API service and the CLI.
type App struct {
	Config   *config.Config
	Provider db.Provider
	Executor *db.QueryExecutor
	Manager  *migration.Manager
	Source   *migration.FSSource
	History  *gorm.HistoryStore // nil unless the driver talks to PostgreSQL

	opened *providers.Opened
}

// New opens the configured database and builds the migration manager.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opened, err := providers.Open(providers.Config{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s provider: %w", cfg.Database.Driver, err)
	}

	a := &App{
		Config:   cfg,
		Provider: opened.Provider,
		Executor: db.NewQueryExecutor(opened.Provider, log),
		Source:   migration.NewDirSource(cfg.Scripts.Dir),
		opened:   opened,
	}
	a.Manager = migration.NewManager(a.Source, a.Executor, log)

	if providers.IsPostgres(cfg.Database.Driver) {
		h, err := gorm.NewHistoryStore(gorm.Config{DSN: cfg.Database.DSN, LogLevel: logger.Silent})
		if err != nil {
			_ = opened.Close()
			return nil, fmt.Errorf("open history store: %w", err)
		}
		a.History = h
	}

	return a, nil
}

// Close releases the database resources.
func (a *App) Close() error {
	var errs []error
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	errs = append(errs, a.opened.Close())
	return errors.Join(errs...)
}

// SetupLogging configures the global zerolog logger the way every wishare
// binary does: console output on out, level from configuration.
func SetupLogging(level string, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	if err != nil {
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
	}
	return log.Logger
}
