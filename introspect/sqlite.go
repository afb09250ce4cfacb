package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/satishbabariya/dbre/model"
)

// SQLiteIntrospector implements introspection for SQLite. SQLite has no
// schemas; every table belongs to model.NoSchema.
type SQLiteIntrospector struct{}

// Introspect reads the main database. The requested schema is ignored.
func (i *SQLiteIntrospector) Introspect(ctx context.Context, db *sql.DB, req Request) (*model.Database, error) {
	return build(ctx, db, i, req)
}

// Schemas always reports the single NoSchema sentinel.
func (i *SQLiteIntrospector) Schemas(_ context.Context, _ *sql.DB) ([]model.Schema, error) {
	return []model.Schema{model.NoSchema}, nil
}

func (i *SQLiteIntrospector) databaseName(_ context.Context, _ *sql.DB) (string, error) {
	return "main", nil
}

// ResolveSchema maps every schema to NoSchema.
func (i *SQLiteIntrospector) ResolveSchema(model.Schema) (model.Schema, bool) {
	return model.NoSchema, true
}

func (i *SQLiteIntrospector) resolveSchema(_ context.Context, _ *sql.DB, _ model.Schema) (model.Schema, error) {
	return model.NoSchema, nil
}

func (i *SQLiteIntrospector) tables(ctx context.Context, db *sql.DB, _ model.Schema) ([]tableRow, error) {
	const query = `
		SELECT name, type
		FROM sqlite_master
		WHERE type IN ('table', 'view')
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	var tables []tableRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var t tableRow
		if err := rows.Scan(&t.Name, &t.Type); err != nil {
			return err
		}
		t.Type = strings.ToUpper(t.Type)
		tables = append(tables, t)
		return nil
	})
	return tables, err
}

func (i *SQLiteIntrospector) columns(ctx context.Context, db *sql.DB, _ model.Schema, table string) ([]columnRow, error) {
	const query = `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`
	var cols []columnRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var (
			c        columnRow
			declared string
			notNull  int
			pk       int
		)
		if err := rows.Scan(&c.Name, &declared, &notNull, &pk); err != nil {
			return err
		}
		base, size, scale := parseTypeArgs(declared)
		c.Type = mapSQLiteType(base)
		c.NativeType = declared
		// Primary-key columns are always required.
		c.Nullable = notNull == 0 && pk == 0
		c.Size = size
		c.Scale = scale
		cols = append(cols, c)
		return nil
	}, table)
	return cols, err
}

func (i *SQLiteIntrospector) primaryKeys(ctx context.Context, db *sql.DB, _ model.Schema, table string) ([]string, error) {
	return queryStrings(ctx, db, `SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`, table)
}

func (i *SQLiteIntrospector) indexes(ctx context.Context, db *sql.DB, _ model.Schema, table string) ([]indexRow, error) {
	// Expression indexes report a NULL column name and are skipped.
	const query = `
		SELECT il.name, ii.name, ii.seqno, il."unique"
		FROM pragma_index_list(?) il
		JOIN pragma_index_info(il.name) ii
		WHERE il.origin <> 'pk'
		  AND ii.name IS NOT NULL
		ORDER BY il.name, ii.seqno
	`
	var idx []indexRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var (
			r      indexRow
			unique int
		)
		if err := rows.Scan(&r.Name, &r.Column, &r.Position, &unique); err != nil {
			return err
		}
		r.Unique = unique != 0
		idx = append(idx, r)
		return nil
	}, table)
	return idx, err
}

func (i *SQLiteIntrospector) importedKeys(ctx context.Context, db *sql.DB, _ model.Schema, table string) ([]keyRow, error) {
	const query = `
		SELECT id, seq, "table", "from", "to", on_update, on_delete
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq
	`
	var (
		keys       []keyRow
		unresolved []int
	)
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var (
			r                  keyRow
			id, seq            int
			to                 sql.NullString
			onUpdate, onDelete string
		)
		if err := rows.Scan(&id, &seq, &r.ForeignTable, &r.Local, &to, &onUpdate, &onDelete); err != nil {
			return err
		}
		// SQLite constraints are anonymous; ids are stable per table.
		r.Name = fmt.Sprintf("fk_%s_%d", table, id)
		r.Position = seq + 1
		r.Foreign = to.String
		r.OnUpdate = model.CascadeActionFromRule(onUpdate)
		r.OnDelete = model.CascadeActionFromRule(onDelete)
		if !to.Valid || to.String == "" {
			unresolved = append(unresolved, len(keys))
		}
		keys = append(keys, r)
		return nil
	}, table)
	if err != nil {
		return nil, err
	}

	// REFERENCES t without a column list targets t's primary key.
	pkCache := make(map[string][]string)
	for _, n := range unresolved {
		r := &keys[n]
		pks, ok := pkCache[r.ForeignTable]
		if !ok {
			if pks, err = i.primaryKeys(ctx, db, model.NoSchema, r.ForeignTable); err != nil {
				return nil, err
			}
			pkCache[r.ForeignTable] = pks
		}
		if r.Position > len(pks) {
			return nil, fmt.Errorf("foreign key %s: %s has no primary key column at position %d", r.Name, r.ForeignTable, r.Position)
		}
		r.Foreign = pks[r.Position-1]
	}
	return keys, nil
}

// mapSQLiteType applies SQLite's type affinity rules to a declared type,
// refined so common declarations keep a precise logical type.
func mapSQLiteType(declared string) model.ColumnType {
	t := strings.ToUpper(strings.TrimSpace(declared))
	switch t {
	case "":
		return model.TypeOther
	case "BOOLEAN", "BOOL":
		return model.TypeBoolean
	case "TINYINT":
		return model.TypeTinyInt
	case "SMALLINT":
		return model.TypeSmallInt
	case "BIGINT":
		return model.TypeBigInt
	case "DATE":
		return model.TypeDate
	case "DATETIME", "TIMESTAMP":
		return model.TypeTimestamp
	case "TIME":
		return model.TypeTime
	case "DECIMAL":
		return model.TypeDecimal
	case "NUMERIC":
		return model.TypeNumeric
	case "CHAR", "CHARACTER", "NCHAR":
		return model.TypeChar
	case "VARCHAR", "NVARCHAR", "VARYING CHARACTER":
		return model.TypeVarchar
	case "FLOAT":
		return model.TypeFloat
	case "REAL":
		return model.TypeReal
	case "DOUBLE", "DOUBLE PRECISION":
		return model.TypeDouble
	}
	switch {
	case strings.Contains(t, "INT"):
		return model.TypeInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return model.TypeLongVarchar
	case strings.Contains(t, "BLOB"):
		return model.TypeBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return model.TypeDouble
	default:
		return model.TypeNumeric
	}
}
