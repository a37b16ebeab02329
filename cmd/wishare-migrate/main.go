// Package main provides wishare-migrate, the command line front end of the
// schema migration engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/thebtf/wishare/internal/app"
	"github.com/thebtf/wishare/internal/config"
	"github.com/thebtf/wishare/internal/migration"
	"github.com/thebtf/wishare/pkg/models"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitNotCurrent = 2 // check: database is behind or uninitialized
)

const usage = `Usage: wishare-migrate [flags] <command>

Commands:
  check     exit 0 when the database is up to date, 2 when it is behind
  update    apply pending migration scripts
  status    show current, expected and pending versions
  history   list applied scripts (PostgreSQL drivers only)
  expected  print the highest script version

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	driver     string
	dsn        string
	scripts    string
	logLevel   string
	limit      int
	asJSON     bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wishare-migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var o options
	fs.StringVar(&o.configPath, "config", config.Path(), "Configuration file")
	fs.StringVar(&o.driver, "driver", "", "Database driver (pgx, postgres, sqlite)")
	fs.StringVar(&o.dsn, "dsn", "", "Database connection string or SQLite path")
	fs.StringVar(&o.scripts, "scripts", "", "Migration script directory")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.IntVar(&o.limit, "limit", 0, "Maximum rows for history")
	fs.BoolVar(&o.asJSON, "json", false, "Print status and history as JSON")
	version := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}
	if *version {
		fmt.Fprintln(stdout, Version)
		return exitOK
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitError
	}

	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "wishare-migrate: %v\n", err)
		return exitError
	}
	o.apply(cfg)

	logger := app.SetupLogging(cfg.LogLevel, stderr)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialise")
		return exitError
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	code, err := dispatch(ctx, fs.Arg(0), a, o, stdout)
	if err != nil {
		logger.Error().Err(err).Str("command", fs.Arg(0)).Msg("Command failed")
	}
	return code
}

// apply lets flags override the file and environment configuration.
func (o options) apply(cfg *config.Config) {
	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.Database.DSN = o.dsn
	}
	if o.scripts != "" {
		cfg.Scripts.Dir = o.scripts
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
}

func dispatch(ctx context.Context, cmd string, a *app.App, o options, out io.Writer) (int, error) {
	switch cmd {
	case "check":
		upToDate, err := a.Manager.CheckDatabaseVersion(ctx)
		if err != nil {
			return exitError, err
		}
		if !upToDate {
			return exitNotCurrent, nil
		}
		return exitOK, nil

	case "update":
		if err := a.Manager.UpdateDatabase(ctx); err != nil {
			return exitError, err
		}
		return exitOK, nil

	case "status":
		st, err := a.Manager.Status(ctx)
		if err != nil {
			return exitError, err
		}
		if o.asJSON {
			return exitOK, json.NewEncoder(out).Encode(st)
		}
		var latest *models.SchemaVersion
		if a.History != nil && st.Initialized {
			if latest, err = a.History.Latest(ctx); err != nil {
				return exitError, err
			}
		}
		printStatus(out, st, latest)
		return exitOK, nil

	case "history":
		if a.History == nil {
			return exitError, fmt.Errorf("history requires a PostgreSQL driver, got %q", a.Config.Database.Driver)
		}
		rows, err := a.History.History(ctx, o.limit)
		if err != nil {
			return exitError, err
		}
		if o.asJSON {
			return exitOK, json.NewEncoder(out).Encode(rows)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tFILE\tAPPLIED")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Version, r.FileName, r.UpdateDate.UTC().Format(time.RFC3339))
		}
		return exitOK, tw.Flush()

	case "expected":
		v, err := a.Manager.ExpectedSchemaVersion()
		if err != nil {
			return exitError, err
		}
		fmt.Fprintln(out, v)
		return exitOK, nil

	default:
		return exitError, fmt.Errorf("unknown command %q", cmd)
	}
}

// printStatus writes st as text. latest is the last recorded script, when a
// history store is available.
func printStatus(out io.Writer, st *migration.Status, latest *models.SchemaVersion) {
	current := fmt.Sprint(st.CurrentVersion)
	if !st.Initialized {
		current = "uninitialized"
	}
	state := "behind"
	switch {
	case st.UpToDate:
		state = "up to date"
	case st.Ahead:
		state = "ahead"
	}
	fmt.Fprintf(out, "current:  %s\nexpected: %d\nstate:    %s\n", current, st.ExpectedVersion, state)
	if latest != nil {
		fmt.Fprintf(out, "applied:  %s at %s\n", latest.FileName, latest.UpdateDate.UTC().Format(time.RFC3339))
	}
	for _, s := range st.Pending {
		fmt.Fprintf(out, "pending:  %s\n", s.Name)
	}
}
