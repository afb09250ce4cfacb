// Package model contains the normalized, in-memory representation of an
// introspected database schema.
package model

// NoSchemaName names the sentinel schema used by databases that only scope
// tables by catalog (SQLite, for example).
const NoSchemaName = "no-schema-required"

// NoSchema is the sentinel for databases without schema support.
var NoSchema = Schema{Name: NoSchemaName}

// Schema identifies a namespace within a catalog. Names are compared
// exactly as the database reports them.
type Schema struct {
	Name string
}

// NewSchema returns a schema with the given name, or NoSchema for a blank
// name.
func NewSchema(name string) Schema {
	if name == "" {
		return NoSchema
	}
	return Schema{Name: name}
}

// IsDefault reports whether s is the no-schema sentinel.
func (s Schema) IsDefault() bool {
	return s.Name == "" || s.Name == NoSchemaName
}

func (s Schema) String() string {
	return s.Name
}
