package model

import (
	"fmt"
)

// Options are the generation-policy flags of a database snapshot.
type Options struct {
	ActiveRecord      bool
	Repository        bool
	Service           bool
	TestAutomatically bool

	IncludeNonPortableAttributes bool
	DisableVersionFields         bool
	DisableGeneratedIdentifiers  bool
}

// Database is the aggregate root of one schema snapshot.
type Database struct {
	Name   string
	Schema Schema
	// Namespace is the destination package path for generated types.
	Namespace string
	Options   Options
	Tables    []*Table
}

// NewDatabase returns an empty database for the given schema.
func NewDatabase(name string, schema Schema) *Database {
	return &Database{Name: name, Schema: schema}
}

// AddTable appends t. Tables are unique by (schema, catalog, name).
func (d *Database) AddTable(t *Table) error {
	if t.Name == "" {
		return fmt.Errorf("table: %w", ErrEmptyName)
	}
	for _, existing := range d.Tables {
		if existing.Name == t.Name && existing.Schema == t.Schema && existing.Catalog == t.Catalog {
			return fmt.Errorf("%w %q", ErrDuplicateTable, t.QualifiedName())
		}
	}
	t.DisableVersionFields = d.Options.DisableVersionFields
	t.DisableGeneratedIdentifiers = d.Options.DisableGeneratedIdentifiers
	t.IncludeNonPortableAttributes = d.Options.IncludeNonPortableAttributes
	d.Tables = append(d.Tables, t)
	return nil
}

// Table looks up a table by schema and name.
func (d *Database) Table(schema Schema, name string) *Table {
	for _, t := range d.Tables {
		if t.Name == name && t.Schema.Name == schema.Name {
			return t
		}
	}
	return nil
}

// SetOptions replaces the policy flags and propagates the table-level
// ones to every table.
func (d *Database) SetOptions(o Options) {
	d.Options = o
	for _, t := range d.Tables {
		t.DisableVersionFields = o.DisableVersionFields
		t.DisableGeneratedIdentifiers = o.DisableGeneratedIdentifiers
		t.IncludeNonPortableAttributes = o.IncludeNonPortableAttributes
	}
}

// Schemas returns the distinct schemas of the database's tables in first
// seen order. An empty database reports its own schema.
func (d *Database) Schemas() []Schema {
	seen := make(map[string]bool)
	var schemas []Schema
	for _, t := range d.Tables {
		if !seen[t.Schema.Name] {
			seen[t.Schema.Name] = true
			schemas = append(schemas, t.Schema)
		}
	}
	if len(schemas) == 0 {
		schemas = append(schemas, d.Schema)
	}
	return schemas
}

// MultipleSchemas reports whether tables span more than one schema.
func (d *Database) MultipleSchemas() bool {
	return len(d.Schemas()) > 1
}

// Link recomputes the derived state of the model: key sequences for
// tables holding several keys to the same foreign table, and every
// table's exported keys as the inverse of the imported keys pointing at
// it. Keys whose foreign table is not part of the snapshot export nothing.
func (d *Database) Link() {
	for _, t := range d.Tables {
		t.ExportedKeys = nil
	}
	for _, t := range d.Tables {
		counts := make(map[string]int)
		for _, fk := range t.ImportedKeys {
			counts[fk.ForeignSchema.Name+"."+fk.ForeignTable]++
		}
		seq := make(map[string]int)
		for _, fk := range t.ImportedKeys {
			key := fk.ForeignSchema.Name + "." + fk.ForeignTable
			if counts[key] > 1 {
				seq[key]++
				fk.KeySequence = seq[key]
			} else {
				fk.KeySequence = 0
			}
		}
	}
	for _, t := range d.Tables {
		for _, fk := range t.ImportedKeys {
			if f := d.Table(fk.ForeignSchema, fk.ForeignTable); f != nil {
				f.ExportedKeys = append(f.ExportedKeys, fk.inverse(t))
			}
		}
	}
}
