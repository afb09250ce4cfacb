package inference

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolvedTable    = errors.New("foreign table cannot be resolved")
	ErrJoinTableReference = errors.New("foreign key references a join table")
	ErrInvalidName        = errors.New("name cannot be converted to an identifier")
)

// Error is a relationship or naming failure qualified by the table and,
// where known, the key or column it concerns.
type Error struct {
	Table  string
	Key    string
	Column string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("table %s: foreign key %s: %v", e.Table, e.Key, e.Err)
	case e.Column != "":
		return fmt.Sprintf("table %s: column %s: %v", e.Table, e.Column, e.Err)
	default:
		return fmt.Sprintf("table %s: %v", e.Table, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
