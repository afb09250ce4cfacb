package model

import "errors"

var (
	ErrDuplicateTable    = errors.New("duplicate table")
	ErrDuplicateColumn   = errors.New("duplicate column")
	ErrDuplicateIndex    = errors.New("duplicate index")
	ErrDuplicateKey      = errors.New("duplicate foreign key")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrUnknownColumnType = errors.New("unknown column type")
	ErrUnknownCascade    = errors.New("unknown cascade action")
	ErrEmptyName         = errors.New("empty name")
)
