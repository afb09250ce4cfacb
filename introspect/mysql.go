package introspect

import (
	"context"
	"database/sql"
	"strings"

	"github.com/satishbabariya/dbre/model"
)

// MySQLIntrospector implements introspection for MySQL. MySQL has no
// schema level below the catalog; a schema is a database.
type MySQLIntrospector struct{}

// Introspect reads the requested database. A blank schema means the
// connection's current database.
func (i *MySQLIntrospector) Introspect(ctx context.Context, db *sql.DB, req Request) (*model.Database, error) {
	return build(ctx, db, i, req)
}

// Schemas lists databases, excluding the system ones.
func (i *MySQLIntrospector) Schemas(ctx context.Context, db *sql.DB) ([]model.Schema, error) {
	names, err := queryStrings(ctx, db, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
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

func (i *MySQLIntrospector) databaseName(ctx context.Context, db *sql.DB) (string, error) {
	var name sql.NullString
	err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&name)
	return name.String, err
}

// ResolveSchema returns named schemas as they are. A blank schema is the
// connection's current database, which only the server knows.
func (i *MySQLIntrospector) ResolveSchema(schema model.Schema) (model.Schema, bool) {
	return schema, !schema.IsDefault()
}

func (i *MySQLIntrospector) resolveSchema(ctx context.Context, db *sql.DB, schema model.Schema) (model.Schema, error) {
	if !schema.IsDefault() {
		return schema, nil
	}
	name, err := i.databaseName(ctx, db)
	if err != nil {
		return model.Schema{}, err
	}
	return model.NewSchema(name), nil
}

func (i *MySQLIntrospector) tables(ctx context.Context, db *sql.DB, schema model.Schema) ([]tableRow, error) {
	const query = `
		SELECT table_name, table_type, table_comment
		FROM information_schema.tables
		WHERE table_schema = ?
		ORDER BY table_name
	`
	var tables []tableRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var t tableRow
		if err := rows.Scan(&t.Name, &t.Type, &t.Comment); err != nil {
			return err
		}
		if strings.Contains(strings.ToUpper(t.Type), "VIEW") {
			t.Type = "VIEW"
		} else {
			t.Type = "TABLE"
		}
		tables = append(tables, t)
		return nil
	}, schema.Name)
	return tables, err
}

func (i *MySQLIntrospector) columns(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]columnRow, error) {
	const query = `
		SELECT
			column_name,
			data_type,
			column_type,
			is_nullable,
			character_maximum_length,
			numeric_precision,
			numeric_scale,
			column_comment
		FROM information_schema.columns
		WHERE table_schema = ?
		  AND table_name = ?
		ORDER BY ordinal_position
	`
	var cols []columnRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var (
			c                              columnRow
			dataType, isNull               string
			maxLength, precision, numScale sql.NullInt64
		)
		if err := rows.Scan(&c.Name, &dataType, &c.NativeType, &isNull, &maxLength, &precision, &numScale, &c.Comment); err != nil {
			return err
		}
		c.Type = mapMySQLType(dataType, c.NativeType)
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

func (i *MySQLIntrospector) primaryKeys(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]string, error) {
	return queryStrings(ctx, db, `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
		  AND table_name = ?
		  AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`, schema.Name, table)
}

func (i *MySQLIntrospector) indexes(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]indexRow, error) {
	const query = `
		SELECT index_name, column_name, seq_in_index, non_unique
		FROM information_schema.statistics
		WHERE table_schema = ?
		  AND table_name = ?
		  AND index_name <> 'PRIMARY'
		ORDER BY index_name, seq_in_index
	`
	var idx []indexRow
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var (
			r         indexRow
			nonUnique int
		)
		if err := rows.Scan(&r.Name, &r.Column, &r.Position, &nonUnique); err != nil {
			return err
		}
		r.Unique = nonUnique == 0
		idx = append(idx, r)
		return nil
	}, schema.Name, table)
	return idx, err
}

func (i *MySQLIntrospector) importedKeys(ctx context.Context, db *sql.DB, schema model.Schema, table string) ([]keyRow, error) {
	const query = `
		SELECT
			k.constraint_name,
			k.ordinal_position,
			k.column_name,
			k.referenced_table_schema,
			k.referenced_table_name,
			k.referenced_column_name,
			r.update_rule,
			r.delete_rule
		FROM information_schema.key_column_usage k
		JOIN information_schema.referential_constraints r
			ON r.constraint_schema = k.constraint_schema
			AND r.constraint_name = k.constraint_name
			AND r.table_name = k.table_name
		WHERE k.table_schema = ?
		  AND k.table_name = ?
		  AND k.referenced_table_name IS NOT NULL
		ORDER BY k.constraint_name, k.ordinal_position
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
		r.OnUpdate = model.CascadeActionFromRule(onUpdate)
		r.OnDelete = model.CascadeActionFromRule(onDelete)
		keys = append(keys, r)
		return nil
	}, schema.Name, table)
	return keys, err
}

// mapMySQLType maps information_schema.columns.data_type to a logical
// type. tinyint(1) is MySQL's boolean.
func mapMySQLType(dataType, columnType string) model.ColumnType {
	switch strings.ToLower(dataType) {
	case "tinyint":
		if strings.HasPrefix(strings.ToLower(columnType), "tinyint(1)") {
			return model.TypeBoolean
		}
		return model.TypeTinyInt
	case "bit":
		return model.TypeBit
	case "smallint", "year":
		return model.TypeSmallInt
	case "mediumint", "int", "integer":
		return model.TypeInteger
	case "bigint":
		return model.TypeBigInt
	case "float":
		return model.TypeReal
	case "double", "real":
		return model.TypeDouble
	case "decimal", "numeric":
		return model.TypeDecimal
	case "char":
		return model.TypeChar
	case "varchar", "enum", "set":
		return model.TypeVarchar
	case "tinytext", "text", "mediumtext", "longtext", "json":
		return model.TypeLongVarchar
	case "date":
		return model.TypeDate
	case "time":
		return model.TypeTime
	case "datetime", "timestamp":
		return model.TypeTimestamp
	case "binary":
		return model.TypeBinary
	case "varbinary":
		return model.TypeVarbinary
	case "tinyblob", "blob", "mediumblob", "longblob":
		return model.TypeLongVarbinary
	default:
		return model.TypeOther
	}
}
