// Package providers selects and opens a db.Provider by driver name.
package providers

import (
	"fmt"
	"strings"

	"github.com/thebtf/wishare/internal/db"
	"github.com/thebtf/wishare/internal/db/pgx"
	"github.com/thebtf/wishare/internal/db/postgres"
	"github.com/thebtf/wishare/internal/db/sqlite"
)

// Supported driver names.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Drivers lists every supported driver name.
var Drivers = []string{DriverPgx, DriverPostgres, DriverSQLite}

// Config selects a driver and its connection string.
type Config struct {
	Driver   string
	DSN      string
	MaxConns int
}

// Opened is a provider plus the function that releases its resources.
type Opened struct {
	Provider db.Provider
	close    func() error
}

// Close releases the provider's pool, if it has one.
func (o *Opened) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// IsPostgres reports whether driver talks to PostgreSQL.
func IsPostgres(driver string) bool {
	d := strings.ToLower(driver)
	return d == DriverPgx || d == DriverPostgres
}

// Open creates the provider for cfg.Driver.
func Open(cfg Config) (*Opened, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverPgx:
		p, err := pgx.NewProvider(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Opened{Provider: p}, nil
	case DriverPostgres:
		p, err := postgres.NewProvider(postgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		return &Opened{Provider: p, close: p.Close}, nil
	case DriverSQLite:
		s, err := sqlite.NewStore(sqlite.StoreConfig{Path: cfg.DSN, MaxConns: cfg.MaxConns, WALMode: true})
		if err != nil {
			return nil, err
		}
		return &Opened{Provider: s, close: s.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q (want one of %s)", cfg.Driver, strings.Join(Drivers, ", "))
	}
}
