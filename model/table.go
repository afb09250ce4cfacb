package model

import (
	"fmt"
)

// Table is a table or view within one schema.
type Table struct {
	Name        string
	Catalog     string
	Schema      Schema
	Description string

	// Columns are kept in insertion (driver-reported) order.
	Columns      []*Column
	Indices      []*Index
	ImportedKeys []*ForeignKey
	// ExportedKeys are derived by Database.Link from other tables'
	// imported keys.
	ExportedKeys []*ForeignKey

	// JoinTable is set by relationship inference.
	JoinTable bool

	DisableVersionFields         bool
	DisableGeneratedIdentifiers  bool
	IncludeNonPortableAttributes bool
}

// NewTable returns an empty table.
func NewTable(schema Schema, name string) *Table {
	return &Table{Name: name, Schema: schema}
}

// QualifiedName returns schema.table, or just the table name for the
// no-schema sentinel.
func (t *Table) QualifiedName() string {
	if t.Schema.IsDefault() {
		return t.Name
	}
	return t.Schema.Name + "." + t.Name
}

// AddColumn appends c. Column names are unique within a table.
func (t *Table) AddColumn(c *Column) error {
	if c.Name == "" {
		return fmt.Errorf("table %s: column: %w", t.QualifiedName(), ErrEmptyName)
	}
	if t.Column(c.Name) != nil {
		return fmt.Errorf("table %s: %w %q", t.QualifiedName(), ErrDuplicateColumn, c.Name)
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// Column returns the named column or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// PrimaryKeys returns the primary-key columns in column order.
func (t *Table) PrimaryKeys() []*Column {
	var pks []*Column
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pks = append(pks, c)
		}
	}
	return pks
}

// PrimaryKeyNames returns the names of the primary-key columns.
func (t *Table) PrimaryKeyNames() []string {
	var names []string
	for _, c := range t.PrimaryKeys() {
		names = append(names, c.Name)
	}
	return names
}

// AddIndex appends idx after checking its columns exist.
func (t *Table) AddIndex(idx *Index) error {
	if t.Index(idx.Name) != nil {
		return fmt.Errorf("table %s: %w %q", t.QualifiedName(), ErrDuplicateIndex, idx.Name)
	}
	for _, c := range idx.Columns {
		if t.Column(c.Name) == nil {
			return fmt.Errorf("table %s: index %s: %w %q", t.QualifiedName(), idx.Name, ErrUnknownColumn, c.Name)
		}
	}
	t.Indices = append(t.Indices, idx)
	return nil
}

// Index returns the named index or nil.
func (t *Table) Index(name string) *Index {
	for _, idx := range t.Indices {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// AddImportedKey appends a foreign key declared by this table. A blank
// foreign schema defaults to the table's own schema.
func (t *Table) AddImportedKey(fk *ForeignKey) error {
	if fk.Name == "" {
		return fmt.Errorf("table %s: foreign key: %w", t.QualifiedName(), ErrEmptyName)
	}
	if t.ImportedKey(fk.Name) != nil {
		return fmt.Errorf("table %s: %w %q", t.QualifiedName(), ErrDuplicateKey, fk.Name)
	}
	for _, r := range fk.References {
		if t.Column(r.Local) == nil {
			return fmt.Errorf("table %s: foreign key %s: %w %q", t.QualifiedName(), fk.Name, ErrUnknownColumn, r.Local)
		}
	}
	if fk.ForeignSchema.Name == "" {
		fk.ForeignSchema = t.Schema
	}
	t.ImportedKeys = append(t.ImportedKeys, fk)
	return nil
}

// ImportedKey returns the named imported key or nil.
func (t *Table) ImportedKey(name string) *ForeignKey {
	for _, fk := range t.ImportedKeys {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}

// ExportedKey returns the first exported key with the given name or nil.
func (t *Table) ExportedKey(name string) *ForeignKey {
	for _, fk := range t.ExportedKeys {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}

// ExportedKeyFrom returns the exported key declared by the given table.
func (t *Table) ExportedKeyFrom(schema Schema, table, name string) *ForeignKey {
	for _, fk := range t.ExportedKeys {
		if fk.Name == name && fk.Targets(schema, table) {
			return fk
		}
	}
	return nil
}

// ImportedKeysTo returns the imported keys referencing the given table.
func (t *Table) ImportedKeysTo(schema Schema, table string) []*ForeignKey {
	var keys []*ForeignKey
	for _, fk := range t.ImportedKeys {
		if fk.Targets(schema, table) {
			keys = append(keys, fk)
		}
	}
	return keys
}
