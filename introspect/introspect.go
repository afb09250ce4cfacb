// Package introspect reads catalog metadata from a live database into the
// normalized model.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"sort"

	"github.com/satishbabariya/dbre/internal/debug"
	"github.com/satishbabariya/dbre/model"
)

// Introspector reads a database schema into a model.Database.
type Introspector interface {
	// Introspect builds a linked snapshot of the requested schema.
	Introspect(ctx context.Context, db *sql.DB, req Request) (*model.Database, error)

	// Schemas lists the schemas visible through db.
	Schemas(ctx context.Context, db *sql.DB) ([]model.Schema, error)
}

// Resolver is implemented by introspectors that can name the schema a
// request reads without asking the database.
type Resolver interface {
	ResolveSchema(schema model.Schema) (model.Schema, bool)
}

// Request scopes an introspection run.
type Request struct {
	Schema model.Schema
	Filter Filter
}

// Filter restricts introspection to a subset of table names. Patterns use
// path.Match syntax; exclusions take precedence over inclusions and an
// empty Include matches everything.
type Filter struct {
	Include []string
	Exclude []string
}

// Match reports whether the table passes the filter.
func (f Filter) Match(table string) bool {
	for _, p := range f.Exclude {
		if ok, _ := path.Match(p, table); ok {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, p := range f.Include {
		if ok, _ := path.Match(p, table); ok {
			return true
		}
	}
	return false
}

// New returns the introspector for a provider name. The accepted names
// mirror the driver names and their common aliases.
func New(provider string) (Introspector, error) {
	switch provider {
	case "postgresql", "postgres":
		return &PostgresIntrospector{}, nil
	case "mysql":
		return &MySQLIntrospector{}, nil
	case "sqlite", "sqlite3":
		return &SQLiteIntrospector{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}

type tableRow struct {
	Name    string
	Type    string
	Comment string
}

type columnRow struct {
	Name       string
	Type       model.ColumnType
	GoType     string
	NativeType string
	Nullable   bool
	Size       int
	Scale      int
	Comment    string
}

type indexRow struct {
	Name     string
	Column   string
	Position int
	Unique   bool
}

type keyRow struct {
	Name          string
	Position      int
	Local         string
	ForeignSchema string
	ForeignTable  string
	Foreign       string
	OnUpdate      model.CascadeAction
	OnDelete      model.CascadeAction
}

// catalog is implemented by each dialect. Every method drains and closes
// its rows before returning so builders never hold two result sets.
type catalog interface {
	databaseName(ctx context.Context, db *sql.DB) (string, error)
	resolveSchema(ctx context.Context, db *sql.DB, schema model.Schema) (model.Schema, error)
	tables(ctx context.Context, db *sql.DB, schema model.Schema) ([]tableRow, error)
	columns(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]columnRow, error)
	primaryKeys(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]string, error)
	indexes(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]indexRow, error)
	importedKeys(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]keyRow, error)
}

// build runs the shared introspection algorithm over a dialect catalog.
// Any failure aborts the run; no partially built database is returned.
func build(ctx context.Context, db *sql.DB, c catalog, req Request) (*model.Database, error) {
	schema, err := c.resolveSchema(ctx, db, req.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve schema: %w", ErrIntrospectionFailed, err)
	}
	name, err := c.databaseName(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: database name: %w", ErrIntrospectionFailed, err)
	}
	rows, err := c.tables(ctx, db, schema)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables in %s: %w", ErrIntrospectionFailed, schema, err)
	}

	database := model.NewDatabase(name, schema)
	for _, tr := range rows {
		if !req.Filter.Match(tr.Name) {
			debug.Debug("skipping filtered table", "schema", schema.Name, "table", tr.Name)
			continue
		}
		table, err := buildTable(ctx, db, c, schema, tr, req.Filter)
		if err != nil {
			return nil, err
		}
		if err := database.AddTable(table); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIntrospectionFailed, err)
		}
	}
	database.Link()
	debug.Info("introspected schema", "database", name, "schema", schema.Name, "tables", len(database.Tables))
	return database, nil
}

func buildTable(ctx context.Context, db *sql.DB, c catalog, schema model.Schema, tr tableRow, filter Filter) (*model.Table, error) {
	table := model.NewTable(schema, tr.Name)
	table.Description = tr.Comment
	fail := func(what string, err error) error {
		return fmt.Errorf("%w: %s of table %s: %w", ErrIntrospectionFailed, what, table.QualifiedName(), err)
	}

	cols, err := c.columns(ctx, db, schema, tr.Name)
	if err != nil {
		return nil, fail("columns", err)
	}
	for _, cr := range cols {
		col := model.NewColumn(cr.Name, cr.Type)
		if cr.GoType != "" {
			col.GoType = cr.GoType
		}
		col.NativeType = cr.NativeType
		col.Nullable = cr.Nullable
		col.Size = cr.Size
		col.Scale = cr.Scale
		col.Description = cr.Comment
		if err := table.AddColumn(col); err != nil {
			return nil, fail("columns", err)
		}
	}

	pks, err := c.primaryKeys(ctx, db, schema, tr.Name)
	if err != nil {
		return nil, fail("primary key", err)
	}
	for _, name := range pks {
		col := table.Column(name)
		if col == nil {
			return nil, fail("primary key", fmt.Errorf("%w %q", model.ErrUnknownColumn, name))
		}
		col.PrimaryKey = true
	}

	idxRows, err := c.indexes(ctx, db, schema, tr.Name)
	if err != nil {
		return nil, fail("indexes", err)
	}
	for _, idx := range groupIndexes(idxRows) {
		if err := table.AddIndex(idx); err != nil {
			return nil, fail("indexes", err)
		}
		if idx.Unique && len(idx.Columns) == 1 {
			table.Column(idx.Columns[0].Name).Unique = true
		}
	}

	keyRows, err := c.importedKeys(ctx, db, schema, tr.Name)
	if err != nil {
		return nil, fail("foreign keys", err)
	}
	keys, err := groupKeys(table, keyRows)
	if err != nil {
		return nil, err
	}
	for _, fk := range keys {
		if fk.ForeignSchema.Name == schema.Name && !filter.Match(fk.ForeignTable) {
			debug.Warn("dropping foreign key to filtered table",
				"table", table.QualifiedName(), "fk", fk.Name, "foreign", fk.ForeignTable)
			continue
		}
		if err := table.AddImportedKey(fk); err != nil {
			return nil, fail("foreign keys", err)
		}
	}
	return table, nil
}

// groupIndexes folds per-column index rows into indices, keeping the
// first-seen index order and ordering columns by position.
func groupIndexes(rows []indexRow) []*model.Index {
	var order []string
	grouped := make(map[string][]indexRow)
	for _, r := range rows {
		if _, ok := grouped[r.Name]; !ok {
			order = append(order, r.Name)
		}
		grouped[r.Name] = append(grouped[r.Name], r)
	}
	indices := make([]*model.Index, 0, len(order))
	for _, name := range order {
		members := grouped[name]
		sort.SliceStable(members, func(i, j int) bool { return members[i].Position < members[j].Position })
		idx := &model.Index{Name: name, Unique: members[0].Unique}
		for _, m := range members {
			idx.Columns = append(idx.Columns, model.IndexColumn{Name: m.Column})
		}
		indices = append(indices, idx)
	}
	return indices
}

// groupKeys folds per-column key rows into foreign keys by constraint
// name, ordering references by key sequence position.
func groupKeys(table *model.Table, rows []keyRow) ([]*model.ForeignKey, error) {
	var order []string
	grouped := make(map[string][]keyRow)
	for _, r := range rows {
		if _, ok := grouped[r.Name]; !ok {
			order = append(order, r.Name)
		}
		grouped[r.Name] = append(grouped[r.Name], r)
	}

	keys := make([]*model.ForeignKey, 0, len(order))
	for _, name := range order {
		members := grouped[name]
		first := members[0]
		seen := make(map[int]bool)
		for _, m := range members {
			if m.ForeignTable != first.ForeignTable || m.ForeignSchema != first.ForeignSchema {
				return nil, &AmbiguousKeyError{
					Table:  table.QualifiedName(),
					Key:    name,
					Reason: fmt.Sprintf("references both %s and %s", first.ForeignTable, m.ForeignTable),
				}
			}
			if seen[m.Position] {
				return nil, &AmbiguousKeyError{
					Table:  table.QualifiedName(),
					Key:    name,
					Reason: fmt.Sprintf("key sequence position %d appears twice", m.Position),
				}
			}
			seen[m.Position] = true
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].Position < members[j].Position })

		fk := model.NewForeignKey(name, model.NewSchema(first.ForeignSchema), first.ForeignTable)
		if first.ForeignSchema == "" {
			fk.ForeignSchema = table.Schema
		}
		fk.OnUpdate = first.OnUpdate
		fk.OnDelete = first.OnDelete
		for _, m := range members {
			fk.AddReference(m.Local, m.Foreign)
		}
		keys = append(keys, fk)
	}
	return keys, nil
}
