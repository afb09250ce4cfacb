package model

// Column is a single column of a table.
type Column struct {
	Name        string
	Description string
	Type        ColumnType
	// NativeType is the database-specific type string, e.g. "varchar(255)".
	NativeType string
	// GoType is the mapped logical type used for generated fields.
	GoType     string
	Nullable   bool
	Size       int
	Scale      int
	PrimaryKey bool
	Unique     bool
}

// NewColumn returns a nullable column of the given type with its default
// Go type mapping.
func NewColumn(name string, typ ColumnType) *Column {
	return &Column{
		Name:     name,
		Type:     typ,
		GoType:   typ.GoType(),
		Nullable: true,
	}
}

// DataType returns the standard SQL type code of the column.
func (c *Column) DataType() int {
	return c.Type.Code()
}

// Required is the inverse of Nullable.
func (c *Column) Required() bool {
	return !c.Nullable
}
