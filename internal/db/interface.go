// Package db provides the driver-agnostic query execution gateway used by the
// schema migration engine.
//
// The package never talks to a wire protocol itself. A Provider supplies
// connections, a Connection creates commands, and a Command binds named
// parameters and executes exactly once. QueryExecutor owns the lifetime of
// everything it opens: connections and commands are released on every exit
// path, including failures while binding parameters.
package db

import (
	"context"
)

// ErrorClass is the driver-independent category of a database failure.
type ErrorClass int

const (
	// ClassOther is any failure that is neither NotFound nor Transient.
	ClassOther ErrorClass = iota
	// ClassNotFound means the statement referenced an object (table, relation)
	// that does not exist.
	ClassNotFound
	// ClassTransient means the failure is connectivity related and the same
	// call may succeed later.
	ClassTransient
)

// String returns the lower-case name of the class.
func (c ErrorClass) String() string {
	switch c {
	case ClassNotFound:
		return "not_found"
	case ClassTransient:
		return "transient"
	default:
		return "other"
	}
}

// Provider opens connections to one database and classifies the errors its
// driver produces.
type Provider interface {
	// Open returns a live connection. The caller must Close it.
	Open(ctx context.Context) (Connection, error)
	// Classify maps a driver error to an ErrorClass.
	Classify(err error) ErrorClass
	// Code extracts the driver's native error code (SQLSTATE, result code).
	// It returns "" when err carries none.
	Code(err error) string
	// Name identifies the driver in logs.
	Name() string
}

// Connection is a single live database connection.
type Connection interface {
	// CreateCommand prepares a command for text. The caller must Close it.
	CreateCommand(text string) (Command, error)
	Close() error
}

// Command is one statement with its bound parameters.
type Command interface {
	// Bind attaches a named parameter. Names are passed without a prefix.
	Bind(name string, value any) error
	// Scalar executes the command and returns the first column of the first
	// row, or nil when there is no row or the value is NULL.
	Scalar(ctx context.Context) (any, error)
	// Exec executes the command and returns the affected row count.
	Exec(ctx context.Context) (int64, error)
	Close() error
}

// Executor runs single queries. QueryExecutor implements it.
type Executor interface {
	ExecuteScalar(ctx context.Context, q *Query) (any, error)
	ExecuteNonQuery(ctx context.Context, q *Query) (int64, error)
}
