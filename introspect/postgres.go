package introspect

import (
	"context"
	"database/sql"
	"strings"

	"github.com/satishbabariya/dbre/model"
)

// PostgresIntrospector implements introspection for PostgreSQL.
type PostgresIntrospector struct{}

// Introspect reads the requested schema. A blank schema means "public".
func (i *PostgresIntrospector) Introspect(ctx context.Context, db *sql.DB, req Request) (*model.Database, error) {
	return build(ctx, db, i, req)
}

// Schemas lists user schemas, excluding the system catalogs.
func (i *PostgresIntrospector) Schemas(ctx context.Context, db *sql.DB) ([]model.Schema, error) {
	names, err := queryStrings(ctx, db, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		  AND schema_name NOT LIKE 'pg_toast%'
		  AND schema_name NOT LIKE 'pg_temp%'
		ORDER BY schema_name
	`)
	if err != nil {
		return nil, err
	}
	schemas := make([]model.Schema, len(names))
	for n, name := range names {
		schemas[n] = model.NewSchema(name)
	}
	return schemas, nil
}

func (i *PostgresIntrospector) databaseName(ctx context.Context, db *sql.DB) (string, error) {
	var name string
	err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&name)
	return name, err
}

// ResolveSchema maps a blank schema to public.
func (i *PostgresIntrospector) ResolveSchema(schema model.Schema) (model.Schema, bool) {
	if schema.IsDefault() {
		return model.NewSchema("public"), true
	}
	return schema, true
}

func (i *PostgresIntrospector) resolveSchema(_ context.Context, _ *sql.DB, schema model.Schema) (model.Schema, error) {
	resolved, _ := i.ResolveSchema(schema)
	return resolved, nil
}

func (i *PostgresIntrospector) tables(ctx context.Context, db *sql.DB, schema model.Schema) ([]tableRow, error) {
	const query = `
		SELECT
			c.relname,
			CASE WHEN c.relkind IN ('v', 'm') THEN 'VIEW' ELSE 'TABLE' END,
			COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind IN ('r', 'p', 'v', 'm')
		ORDER BY c.relname
	`
	var tables []tableRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var t tableRow
		if err := rows.Scan(&t.Name, &t.Type, &t.Comment); err != nil {
			return err
		}
		tables = append(tables, t)
		return nil
	}, schema.Name)
	return tables, err
}

func (i *PostgresIntrospector) columns(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]columnRow, error) {
	const query = `
		SELECT
			column_name,
			data_type,
			udt_name,
			is_nullable,
			character_maximum_length,
			numeric_precision,
			numeric_scale
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position
	`
	var cols []columnRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var (
			c                              columnRow
			dataType, udtName, isNull      string
			maxLength, precision, numScale sql.NullInt64
		)
		if err := rows.Scan(&c.Name, &dataType, &udtName, &isNull, &maxLength, &precision, &numScale); err != nil {
			return err
		}
		c.Type, c.GoType = mapPostgresType(dataType)
		c.NativeType = udtName
		c.Nullable = isNull == "YES"
		if maxLength.Valid {
			c.Size = nullInt(maxLength)
		} else {
			c.Size = nullInt(precision)
		}
		c.Scale = nullInt(numScale)
		cols = append(cols, c)
		return nil
	}, schema.Name, table)
	return cols, err
}

func (i *PostgresIntrospector) primaryKeys(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]string, error) {
	return queryStrings(ctx, db, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`, schema.Name, table)
}

func (i *PostgresIntrospector) indexes(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]indexRow, error) {
	const query = `
		SELECT
			i.relname,
			a.attname,
			array_position(ix.indkey, a.attnum),
			ix.indisunique
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = $1
		  AND t.relname = $2
		  AND NOT ix.indisprimary
		ORDER BY i.relname, 3
	`
	var idx []indexRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var r indexRow
		if err := rows.Scan(&r.Name, &r.Column, &r.Position, &r.Unique); err != nil {
			return err
		}
		idx = append(idx, r)
		return nil
	}, schema.Name, table)
	return idx, err
}

func (i *PostgresIntrospector) importedKeys(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]keyRow, error) {
	const query = `
		SELECT
			con.conname,
			k.pos,
			la.attname,
			fn.nspname,
			ft.relname,
			fa.attname,
			con.confupdtype,
			con.confdeltype
		FROM pg_constraint con
		JOIN pg_class lt ON lt.oid = con.conrelid
		JOIN pg_namespace ln ON ln.oid = lt.relnamespace
		JOIN pg_class ft ON ft.oid = con.confrelid
		JOIN pg_namespace fn ON fn.oid = ft.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(local_attnum, foreign_attnum, pos)
		JOIN pg_attribute la ON la.attrelid = con.conrelid AND la.attnum = k.local_attnum
		JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.foreign_attnum
		WHERE con.contype = 'f'
		  AND ln.nspname = $1
		  AND lt.relname = $2
		ORDER BY con.conname, k.pos
	`
	var keys []keyRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var (
			r                  keyRow
			onUpdate, onDelete string
		)
		if err := rows.Scan(&r.Name, &r.Position, &r.Local, &r.ForeignSchema, &r.ForeignTable, &r.Foreign, &onUpdate, &onDelete); err != nil {
			return err
		}
		r.OnUpdate = postgresAction(onUpdate)
		r.OnDelete = postgresAction(onDelete)
		keys = append(keys, r)
		return nil
	}, schema.Name, table)
	return keys, err
}

// postgresAction maps pg_constraint's single-letter action codes.
func postgresAction(code string) model.CascadeAction {
	switch code {
	case "c":
		return model.Cascade
	case "n":
		return model.SetNull
	case "d":
		return model.SetDefault
	case "r":
		return model.Restrict
	default:
		return model.None
	}
}

// mapPostgresType maps an information_schema data type to a logical type
// and, where the default Go mapping does not fit, a Go type.
func mapPostgresType(dataType string) (model.ColumnType, string) {
	switch strings.ToLower(dataType) {
	case "smallint":
		return model.TypeSmallInt, ""
	case "integer":
		return model.TypeInteger, ""
	case "bigint":
		return model.TypeBigInt, ""
	case "boolean":
		return model.TypeBoolean, ""
	case "character varying":
		return model.TypeVarchar, ""
	case "character":
		return model.TypeChar, ""
	case "text":
		return model.TypeLongVarchar, ""
	case "numeric":
		return model.TypeNumeric, ""
	case "real":
		return model.TypeReal, ""
	case "double precision":
		return model.TypeDouble, ""
	case "date":
		return model.TypeDate, ""
	case "time without time zone":
		return model.TypeTime, ""
	case "time with time zone":
		return model.TypeTimeWithTimezone, ""
	case "timestamp without time zone":
		return model.TypeTimestamp, ""
	case "timestamp with time zone":
		return model.TypeTimestampWithTimezone, ""
	case "bytea":
		return model.TypeBinary, ""
	case "xml":
		return model.TypeSQLXML, ""
	case "array":
		return model.TypeArray, ""
	case "uuid":
		return model.TypeOther, "string"
	case "json", "jsonb":
		return model.TypeOther, "[]byte"
	case "user-defined":
		// Enums and domains surface as their underlying text value.
		return model.TypeOther, "string"
	default:
		return model.TypeOther, ""
	}
}
