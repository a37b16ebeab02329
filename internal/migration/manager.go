package migration

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thebtf/wishare/internal/db"
	"go.opentelemetry.io/otel/metric"
)

const (
	currentVersionQuery = "SELECT MAX(version) FROM schema_version"
	insertVersionQuery  = "INSERT INTO schema_version (version, file_name, update_date) VALUES (@version, @file_name, @update_date)"

	// uninitializedVersion is the starting point before the first script.
	uninitializedVersion = -1
)

// Manager checks and advances the schema version of one database.
// It keeps no state between calls; every call rediscovers the scripts.
type Manager struct {
	source  Source
	exec    db.Executor
	log     zerolog.Logger
	now     func() time.Time
	metrics *metrics
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	now   func() time.Time
	meter metric.Meter
}

// WithClock sets the time source used for update_date values.
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) { o.now = now }
}

// WithMeter sets the meter used for migration metrics. The global meter
// provider is used by default.
func WithMeter(meter metric.Meter) Option {
	return func(o *managerOptions) { o.meter = meter }
}

// NewManager creates a Manager reading scripts from source and talking to the
// database through exec.
func NewManager(source Source, exec db.Executor, log zerolog.Logger, opts ...Option) *Manager {
	o := managerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		source:  source,
		exec:    exec,
		log:     log.With().Str("component", "migration").Logger(),
		now:     o.now,
		metrics: newMetrics(o.meter),
	}
}

// Scripts discovers the scripts in the source, ignoring names that do not
// follow the naming convention, sorted by ascending version.
func (m *Manager) Scripts() ([]Script, error) {
	names, err := m.source.List()
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}

	scripts := make([]Script, 0, len(names))
	for _, name := range names {
		s, ok := ParseScript(name)
		if !ok {
			continue
		}
		s.Path = m.source.Locate(name)
		scripts = append(scripts, s)
	}

	slices.SortStableFunc(scripts, func(a, b Script) int {
		return cmp.Compare(a.Version, b.Version)
	})

	for i := 1; i < len(scripts); i++ {
		if scripts[i].Version == scripts[i-1].Version {
			m.log.Warn().
				Int("version", scripts[i].Version).
				Str("first", scripts[i-1].Name).
				Str("second", scripts[i].Name).
				Msg("Duplicate script version, only the first will be applied")
		}
	}

	return scripts, nil
}

// ExpectedSchemaVersion returns the highest script version. It is recomputed
// on every call so that a redeployed script directory is picked up.
func (m *Manager) ExpectedSchemaVersion() (int, error) {
	scripts, err := m.Scripts()
	if err != nil {
		return 0, err
	}
	if len(scripts) == 0 {
		return 0, ErrNoScripts
	}
	return scripts[len(scripts)-1].Version, nil
}

// TryGetCurrentSchemaVersion reads the version recorded in the database.
// ok is false, with a nil error, when the schema_version table does not exist.
// An existing but empty table yields ErrEmptyVersionTable.
func (m *Manager) TryGetCurrentSchemaVersion(ctx context.Context) (version int, ok bool, err error) {
	v, err := m.exec.ExecuteScalar(ctx, db.NewQuery(currentVersionQuery))
	if err != nil {
		if db.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read current schema version: %w", err)
	}
	if v == nil {
		return 0, false, ErrEmptyVersionTable
	}

	version, err = toVersion(v)
	if err != nil {
		return 0, false, err
	}
	return version, true, nil
}

// CheckDatabaseVersion reports whether the database is at the expected
// version. An uninitialized or outdated database returns false without error.
// A database ahead of the scripts returns a *DowngradeError.
func (m *Manager) CheckDatabaseVersion(ctx context.Context) (bool, error) {
	current, ok, err := m.TryGetCurrentSchemaVersion(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		m.log.Warn().Msg("Database uninitialized.")
		return false, nil
	}

	expected, err := m.ExpectedSchemaVersion()
	if err != nil {
		return false, err
	}

	switch {
	case current < expected:
		m.log.Warn().
			Int("expected", expected).
			Int("current", current).
			Msgf("Database is out of date. Expected version: %d. Current version: %d", expected, current)
		return false, nil
	case current > expected:
		err := &DowngradeError{Current: current, Expected: expected}
		m.log.Error().Int("expected", expected).Int("current", current).Msg("Database is ahead of target.")
		return false, err
	}

	m.log.Info().Int("version", current).Msg("Database is up to date.")
	return true, nil
}

// UpdateDatabase applies every script newer than the recorded version, in
// ascending order. Each script body runs as one statement followed by one
// insert into schema_version. The two calls are not atomic: if the insert
// fails the next run executes the same body again.
//
// A gap in the sequence stops the update before anything runs for the
// out-of-sequence script. Cancelling ctx stops between scripts; an insert
// whose body has already run is always attempted.
func (m *Manager) UpdateDatabase(ctx context.Context) error {
	log := m.log.With().Str("run_id", uuid.NewString()).Logger()
	log.Info().Msg("Updating database...")

	current, ok, err := m.TryGetCurrentSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if !ok {
		current = uninitializedVersion
	}

	scripts, err := m.Scripts()
	if err != nil {
		return err
	}
	if len(scripts) == 0 {
		return ErrNoScripts
	}
	if expected := scripts[len(scripts)-1].Version; current > expected {
		log.Error().Int("expected", expected).Int("current", current).Msg("Database is ahead of target.")
		return &DowngradeError{Current: current, Expected: expected}
	}

	for _, s := range scripts {
		if s.Version <= current {
			continue
		}
		if s.Version-current != 1 {
			log.Error().Int("missing", current+1).Str("next", s.Name).Msg("Missing script.")
			return &MissingScriptError{Version: current + 1}
		}
		if err := ctx.Err(); err != nil {
			log.Warn().Int("version", current).Msg("Update cancelled.")
			return err
		}
		if err := m.apply(ctx, log, s); err != nil {
			return err
		}
		current = s.Version
	}

	log.Info().Int("version", current).Msg("Database is up to date.")
	return nil
}

// apply executes one script body and records its version.
func (m *Manager) apply(ctx context.Context, log zerolog.Logger, s Script) error {
	body, err := m.source.Read(s.Name)
	if err != nil {
		return &ScriptError{Script: s, Op: "read", Err: err}
	}

	start := time.Now()
	if _, err := m.exec.ExecuteNonQuery(ctx, db.NewQuery(body)); err != nil {
		return &ScriptError{Script: s, Op: "execute", Err: err}
	}

	// The body has run; recording it must not be abandoned on cancellation.
	record := db.NewQuery(insertVersionQuery).
		Add("version", s.Version).
		Add("file_name", s.Name).
		Add("update_date", m.now().UTC())
	if _, err := m.exec.ExecuteNonQuery(context.WithoutCancel(ctx), record); err != nil {
		return &ScriptError{Script: s, Op: "record", Err: err}
	}

	m.metrics.scriptApplied(ctx, s, time.Since(start))
	log.Info().
		Str("path", s.Path).
		Int("version", s.Version).
		Msgf("Applied script %s. Database now at version %d", s.Path, s.Version)
	return nil
}

// toVersion converts the scalar returned by MAX(version) to an int.
func toVersion(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidVersion, n)
		}
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidVersion, n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidVersion, n)
		}
		return int(n), nil
	case []byte:
		return parseVersion(string(n))
	case string:
		return parseVersion(n)
	default:
		return 0, fmt.Errorf("%w: unexpected type %T", ErrInvalidVersion, v)
	}
}

func parseVersion(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return n, nil
}
