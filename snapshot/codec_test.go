package snapshot

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/dbre/model"
)

var columnTypes = []model.ColumnType{
	model.TypeInteger, model.TypeBigInt, model.TypeVarchar, model.TypeDecimal,
	model.TypeBoolean, model.TypeTimestamp, model.TypeBlob, model.TypeDate, model.TypeOther,
}

var actions = []model.CascadeAction{model.None, model.Cascade, model.SetNull, model.SetDefault, model.Restrict}

// randomDatabase builds a snapshot from the model constructors only.
func randomDatabase(t *testing.T, r *rand.Rand) *model.Database {
	t.Helper()
	public := model.NewSchema("public")
	db := model.NewDatabase(`shop "east" & <west>`, public)
	if r.Intn(2) == 0 {
		db.Namespace = "example.com/shop"
	}
	db.SetOptions(model.Options{
		ActiveRecord:                 r.Intn(2) == 0,
		Repository:                   r.Intn(2) == 0,
		TestAutomatically:            r.Intn(2) == 0,
		IncludeNonPortableAttributes: r.Intn(2) == 0,
		DisableVersionFields:         r.Intn(2) == 0,
	})

	var tables []*model.Table
	for n := range 1 + r.Intn(6) {
		schema := public
		if r.Intn(5) == 0 {
			schema = model.NewSchema("audit")
		}
		table := model.NewTable(schema, fmt.Sprintf("t%d", n))
		if r.Intn(3) == 0 {
			table.Description = `rows with <tags> & "quotes" it's`
		}
		if r.Intn(4) == 0 {
			table.Catalog = "main"
		}
		id := model.NewColumn("id", model.TypeInteger)
		id.PrimaryKey = true
		id.Nullable = false
		require.NoError(t, table.AddColumn(id))

		for c := range r.Intn(5) {
			col := model.NewColumn(fmt.Sprintf("c%d", c), columnTypes[r.Intn(len(columnTypes))])
			col.Nullable = r.Intn(2) == 0
			col.Unique = r.Intn(4) == 0
			col.Size = r.Intn(3) * 64
			col.Scale = r.Intn(3)
			if r.Intn(3) == 0 {
				col.Description = "a > b && c < d"
			}
			if r.Intn(3) == 0 {
				col.NativeType = "numeric(10,2)"
			}
			if r.Intn(5) == 0 {
				col.GoType = "json.RawMessage"
			}
			require.NoError(t, table.AddColumn(col))
		}

		for k := range r.Intn(3) {
			if len(tables) == 0 {
				break
			}
			foreign := tables[r.Intn(len(tables))]
			local := fmt.Sprintf("fk%d_id", k)
			require.NoError(t, table.AddColumn(model.NewColumn(local, model.TypeInteger)))
			fk := model.NewForeignKey(fmt.Sprintf("fk_%s_%d", table.Name, k), foreign.Schema, foreign.Name)
			fk.OnDelete = actions[r.Intn(len(actions))]
			fk.OnUpdate = actions[r.Intn(len(actions))]
			fk.AddReference(local, "id")
			require.NoError(t, table.AddImportedKey(fk))
		}

		for i := range r.Intn(3) {
			cols := []string{table.Columns[r.Intn(len(table.Columns))].Name}
			require.NoError(t, table.AddIndex(model.NewIndex(fmt.Sprintf("%s_idx%d", table.Name, i), r.Intn(2) == 0, cols...)))
		}
		require.NoError(t, db.AddTable(table))
		tables = append(tables, table)
	}
	db.Link()
	return db
}

func roundTrip(t *testing.T, db *model.Database) *model.Database {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, db))
	decoded, err := Decode(&buf)
	require.NoError(t, err)
	return decoded
}

func TestCodec_RoundTripGeneratedSchemas(t *testing.T) {
	r := rand.New(rand.NewSource(20240611))
	for n := range 200 {
		db := randomDatabase(t, r)
		require.Equal(t, db, roundTrip(t, db), "iteration %d", n)
	}
}

func TestCodec_Layout(t *testing.T) {
	public := model.NewSchema("public")
	db := model.NewDatabase("shop", public)
	db.SetOptions(model.Options{Repository: true})
	customer := model.NewTable(public, "customer")
	id := model.NewColumn("id", model.TypeInteger)
	id.PrimaryKey, id.Nullable = true, false
	require.NoError(t, customer.AddColumn(id))
	require.NoError(t, customer.AddColumn(model.NewColumn("email", model.TypeVarchar)))
	require.NoError(t, customer.AddIndex(model.NewIndex("customer_email", true, "email")))
	require.NoError(t, customer.AddIndex(model.NewIndex("customer_email_lookup", false, "email")))
	require.NoError(t, db.AddTable(customer))

	orders := model.NewTable(public, "orders")
	require.NoError(t, orders.AddColumn(model.NewColumn("customer_id", model.TypeInteger)))
	fk := model.NewForeignKey("fk_customer", public, "customer")
	fk.OnDelete = model.Cascade
	fk.AddReference("customer_id", "id")
	require.NoError(t, orders.AddImportedKey(fk))
	require.NoError(t, db.AddTable(orders))
	db.Link()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, db))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `<database name="shop" schema="public" formatVersion="1.0">`)
	assert.Contains(t, out, `<option key="repository" value="true"></option>`)
	assert.Contains(t, out, `<column name="email" primaryKey="false" javaType="string"`)
	assert.NotContains(t, out, "description=", "blank attributes are omitted")
	assert.Contains(t, out, `<foreignKey name="fk_customer" foreignTable="customer" onDelete="0" onUpdate="3">`)
	assert.Contains(t, out, `<exportedKey name="fk_customer" foreignTable="orders"`)
	assert.Contains(t, out, `<unique name="customer_email">`)
	assert.Contains(t, out, `<unique-column name="email"></unique-column>`)
	assert.Contains(t, out, `<index name="customer_email_lookup">`)
	assert.Less(t, strings.Index(out, "customer_email\""), strings.Index(out, "customer_email_lookup"))
}

func TestDecode_Defaults(t *testing.T) {
	doc := `<database name="shop" schema="public">
  <table name="customer">
    <column name="id" primaryKey="true" required="true" type="INTEGER"/>
    <column name="note" type="VARCHAR"/>
  </table>
  <table name="orders">
    <column name="customer_id" type="INTEGER"/>
    <foreignKey name="fk_customer" foreignTable="customer">
      <reference foreign="id" local="customer_id"/>
    </foreignKey>
    <exportedKey name="stale" foreignTable="nowhere"/>
  </table>
</database>`
	db, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	customer := db.Table(db.Schema, "customer")
	require.NotNil(t, customer)
	note := customer.Column("note")
	assert.True(t, note.Nullable)
	assert.Empty(t, note.Description)
	assert.Equal(t, "string", note.GoType)
	assert.Equal(t, model.Options{}, db.Options)

	fk := db.Table(db.Schema, "orders").ImportedKey("fk_customer")
	require.NotNil(t, fk)
	assert.Equal(t, model.None, fk.OnDelete)
	assert.Equal(t, db.Schema, fk.ForeignSchema)

	require.Len(t, customer.ExportedKeys, 1, "exported keys are derived, not read")
	assert.Equal(t, "orders", customer.ExportedKeys[0].ForeignTable)
	assert.Empty(t, db.Table(db.Schema, "orders").ExportedKeys)
}

func TestDecode_FormatVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr error
	}{
		{version: "1.0"},
		{version: "1.4.2"},
		{version: "2.0", wantErr: ErrUnsupportedFormat},
		{version: "0.9", wantErr: ErrUnsupportedFormat},
		{version: "next", wantErr: ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			doc := fmt.Sprintf(`<database name="shop" schema="public" formatVersion=%q></database>`, tt.version)
			_, err := Decode(strings.NewReader(doc))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsMiss(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDecode_Corrupt(t *testing.T) {
	tests := map[string]string{
		"truncated":      `<database name="shop"><table`,
		"unknown type":   `<database name="a" schema="s"><table name="t"><column name="c" type="MONEY"/></table></database>`,
		"unknown action": `<database name="a" schema="s"><table name="t"><column name="c" type="INTEGER"/><foreignKey name="f" foreignTable="t" onDelete="9"><reference foreign="c" local="c"/></foreignKey></table></database>`,
		"unknown column": `<database name="a" schema="s"><table name="t"><index name="i"><index-column name="missing"/></index></table></database>`,
		"duplicate":      `<database name="a" schema="s"><table name="t"/><table name="t"/></database>`,
		"stray element":  `<database name="a" schema="s"><table name="t"><trigger name="x"/></table></database>`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}
