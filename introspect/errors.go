package introspect

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported database provider")
	ErrNoConnection        = errors.New("no usable connection properties")
	ErrIntrospectionFailed = errors.New("database introspection failed")
)

// ConnectionError reports a failure to obtain or use a connection. Code
// carries the server error code when the driver reported one.
type ConnectionError struct {
	Op   string
	Code string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("connection %s (%s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// AmbiguousKeyError reports foreign-key rows that cannot be grouped into a
// single constraint.
type AmbiguousKeyError struct {
	Table  string
	Key    string
	Reason string
}

func (e *AmbiguousKeyError) Error() string {
	return fmt.Sprintf("table %s: foreign key %s is ambiguous: %s", e.Table, e.Key, e.Reason)
}
