// Package sqlite provides the SQLite query provider for wishare, built on the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/thebtf/wishare/internal/db"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// StoreConfig holds configuration for the SQLite provider.
type StoreConfig struct {
	Path     string
	MaxConns int
	WALMode  bool
}

// Store is a db.Provider over a SQLite database file.
type Store struct {
	*db.SQLProvider
}

// NewStore opens the database described by cfg and verifies it is reachable.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is empty")
	}

	sqlDB, err := sql.Open(DriverName, connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure connection pool
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0) // SQLite connections are cheap

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewStoreFromDB(sqlDB), nil
}

// NewStoreFromDB wraps an already opened modernc.org/sqlite pool.
func NewStoreFromDB(sqlDB *sql.DB) *Store {
	return &Store{
		SQLProvider: db.NewSQLProvider(sqlDB, db.SQLProviderConfig{
			Name:     "sqlite",
			Style:    db.BindNamed,
			Classify: Classify,
			Code:     Code,
		}),
	}
}

// connString builds the DSN with pragmas applied to every new connection.
func connString(cfg StoreConfig) string {
	pragmas := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if cfg.WALMode {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	}
	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	return cfg.Path + sep + strings.Join(pragmas, "&")
}

// Classify maps SQLite errors to db error classes.
func Classify(err error) db.ErrorClass {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return db.ClassOther
	}
	if strings.Contains(se.Error(), "no such table") {
		return db.ClassNotFound
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return db.ClassTransient
	}
	return db.ClassOther
}

// Code returns the extended SQLite result code of err, if any.
func Code(err error) string {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return strconv.Itoa(se.Code())
	}
	return ""
}
