package snapshot

import "errors"

var (
	// ErrNoSnapshot is returned by Store.Load when no snapshot file exists.
	ErrNoSnapshot = errors.New("no snapshot")
	// ErrCorruptSnapshot marks a snapshot that could not be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
	// ErrUnsupportedFormat marks a snapshot written by an incompatible
	// format version.
	ErrUnsupportedFormat = errors.New("unsupported snapshot format")
	// ErrSchemaRequired is returned by safe-mode reads without a schema,
	// and by any read when no schema can be determined.
	ErrSchemaRequired = errors.New("schema required")
)

// IsMiss reports whether err means the durable snapshot cannot be used and
// a live introspection should take its place.
func IsMiss(err error) bool {
	return errors.Is(err, ErrNoSnapshot) || errors.Is(err, ErrCorruptSnapshot) || errors.Is(err, ErrUnsupportedFormat)
}
