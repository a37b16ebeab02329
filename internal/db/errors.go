package db

import (
	"errors"
	"fmt"
)

// ConnectivityError wraps any failure raised while opening a connection or
// executing a command. The driver's error category and native code are kept
// so callers can tell a missing table from a dropped network link.
type ConnectivityError struct {
	Op     string     // open, create_command, bind, scalar, exec
	Driver string     // provider name
	Code   string     // native driver code, may be empty
	Err    error      // underlying driver error
	Class  ErrorClass // category reported by the provider
}

// Error implements the error interface.
func (e *ConnectivityError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s (%s, code %s): %v", e.Driver, e.Op, e.Class, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s (%s): %v", e.Driver, e.Op, e.Class, e.Err)
}

// Unwrap returns the driver error.
func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of the first ConnectivityError in err's chain,
// or ClassOther when there is none.
func ClassOf(err error) ErrorClass {
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassOther
}

// IsNotFound reports whether err was classified as a missing database object.
func IsNotFound(err error) bool {
	return err != nil && ClassOf(err) == ClassNotFound
}

// IsTransient reports whether err was classified as a transient failure.
func IsTransient(err error) bool {
	return err != nil && ClassOf(err) == ClassTransient
}
