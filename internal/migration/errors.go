package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrNoScripts means no file in the script source follows the naming
	// convention. It is a configuration problem and is never retried.
	ErrNoScripts = errors.New("no migration scripts found")

	// ErrEmptyVersionTable means the schema_version table exists but has no
	// rows, which indicates a broken migration history.
	ErrEmptyVersionTable = errors.New("failed to retrieve version from database: table 'schema_version' is empty")

	// ErrDatabaseAhead is matched by DowngradeError.
	ErrDatabaseAhead = errors.New("database is ahead of target")

	// ErrMissingScript is matched by MissingScriptError.
	ErrMissingScript = errors.New("missing migration script")

	// ErrNotUpToDate is returned by Bootstrap when the database is behind and
	// automatic updates are disabled.
	ErrNotUpToDate = errors.New("database is not up to date")

	// ErrInvalidVersion means the recorded version could not be read as an integer.
	ErrInvalidVersion = errors.New("invalid schema version value")
)

// DowngradeError reports a database whose recorded version is newer than the
// newest script available.
type DowngradeError struct {
	Current  int
	Expected int
}

// Error implements the error interface.
func (e *DowngradeError) Error() string {
	return fmt.Sprintf("database version (%d) is ahead of target (%d): the application was likely downgraded", e.Current, e.Expected)
}

// Is matches ErrDatabaseAhead.
func (e *DowngradeError) Is(target error) bool {
	return target == ErrDatabaseAhead
}

// MissingScriptError reports a gap in the script sequence.
type MissingScriptError struct {
	Version int // the version no script was found for
}

// Error implements the error interface.
func (e *MissingScriptError) Error() string {
	return fmt.Sprintf("missing script for version %d", e.Version)
}

// Is matches ErrMissingScript.
func (e *MissingScriptError) Is(target error) bool {
	return target == ErrMissingScript
}

// ScriptError wraps a failure while reading, executing or recording a script.
type ScriptError struct {
	Script Script
	Op     string // read, execute, record
	Err    error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s (version %d): %s: %v", e.Script.Name, e.Script.Version, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}
