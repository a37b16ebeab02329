// Package config provides configuration management for wishare.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultHTTPAddr is the default listen address of the API service.
	DefaultHTTPAddr = ":5000"

	// DefaultScriptsDir is where migration scripts are looked up by default.
	DefaultScriptsDir = "SQL"

	// DefaultConfigFile is read when WISHARE_CONFIG is not set.
	DefaultConfigFile = "wishare.yaml"

	// EnvDevelopment enables developer-only endpoints such as Swagger UI.
	EnvDevelopment = "development"
	// EnvProduction is the default environment.
	EnvProduction = "production"
)

// knownDrivers mirrors providers.Drivers; config must not import the db layer.
var knownDrivers = []string{"pgx", "postgres", "sqlite"}

// DatabaseConfig holds target database settings.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`    // pgx, postgres or sqlite
	DSN      string `yaml:"dsn"`       // connection string or SQLite file path
	MaxConns int    `yaml:"max_conns"` // pool size for database/sql drivers
}

// ScriptsConfig holds migration script discovery settings.
type ScriptsConfig struct {
	Dir           string        `yaml:"dir"`
	Watch         bool          `yaml:"watch"`          // re-check version when scripts change
	WatchDebounce time.Duration `yaml:"watch_debounce"` // e.g. "500ms"
	CheckInterval time.Duration `yaml:"check_interval"` // periodic version check, 0 disables
}

// Config holds the application configuration.
type Config struct {
	Env         string         `yaml:"env"`
	LogLevel    string         `yaml:"log_level"`
	HTTPAddr    string         `yaml:"http_addr"`
	Database    DatabaseConfig `yaml:"database"`
	Scripts     ScriptsConfig  `yaml:"scripts"`
	AutoMigrate bool           `yaml:"auto_migrate"` // update the schema at startup
}

// Path returns the configuration file path (WISHARE_CONFIG or ./wishare.yaml).
func Path() string {
	if p := os.Getenv("WISHARE_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Env:      EnvProduction,
		LogLevel: "info",
		HTTPAddr: DefaultHTTPAddr,
		Database: DatabaseConfig{
			Driver:   "pgx",
			MaxConns: 4,
		},
		Scripts: ScriptsConfig{
			Dir:           DefaultScriptsDir,
			Watch:         false,
			WatchDebounce: 500 * time.Millisecond,
		},
		AutoMigrate: true,
	}
}

// Load loads configuration from Path(), merging with defaults and
// environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile loads configuration from path, merging with defaults and
// environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults + env only
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with WISHARE_* environment variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("WISHARE_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("WISHARE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("WISHARE_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("WISHARE_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("WISHARE_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("WISHARE_DB_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WISHARE_DB_MAX_CONNS: %w", err)
		}
		c.Database.MaxConns = n
	}
	if v := os.Getenv("WISHARE_SCRIPTS_DIR"); v != "" {
		c.Scripts.Dir = v
	}
	if v := os.Getenv("WISHARE_WATCH_SCRIPTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WISHARE_WATCH_SCRIPTS: %w", err)
		}
		c.Scripts.Watch = b
	}
	if v := os.Getenv("WISHARE_CHECK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WISHARE_CHECK_INTERVAL: %w", err)
		}
		c.Scripts.CheckInterval = d
	}
	if v := os.Getenv("WISHARE_AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WISHARE_AUTO_MIGRATE: %w", err)
		}
		c.AutoMigrate = b
	}
	return nil
}

// Validate checks that the configuration can be used to reach a database.
func (c *Config) Validate() error {
	var problems []string

	if !slices.Contains(knownDrivers, strings.ToLower(c.Database.Driver)) {
		problems = append(problems, fmt.Sprintf("database.driver %q is not one of %s", c.Database.Driver, strings.Join(knownDrivers, ", ")))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}
	if c.Scripts.Dir == "" {
		problems = append(problems, "scripts.dir is required")
	}
	if c.Scripts.WatchDebounce < 0 {
		problems = append(problems, "scripts.watch_debounce must not be negative")
	}
	if c.Scripts.CheckInterval < 0 {
		problems = append(problems, "scripts.check_interval must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}
