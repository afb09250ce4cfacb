package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, name string, cols ...string) *Table {
	t.Helper()
	table := NewTable(NewSchema("public"), name)
	for _, c := range cols {
		require.NoError(t, table.AddColumn(NewColumn(c, TypeInteger)))
	}
	return table
}

func TestTable_AddColumnRejectsDuplicates(t *testing.T) {
	table := newTestTable(t, "customer", "id")
	err := table.AddColumn(NewColumn("id", TypeVarchar))
	require.ErrorIs(t, err, ErrDuplicateColumn)
	assert.Contains(t, err.Error(), "public.customer")
	assert.Len(t, table.Columns, 1)
}

func TestTable_ColumnsKeepInsertionOrder(t *testing.T) {
	table := newTestTable(t, "t", "z", "a", "m")
	var names []string
	for _, c := range table.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"z", "a", "m"}, names)
}

func TestTable_AddImportedKeyValidatesLocalColumns(t *testing.T) {
	table := newTestTable(t, "orders", "id")
	fk := NewForeignKey("fk_customer", Schema{}, "customer")
	fk.AddReference("customer_id", "id")

	err := table.AddImportedKey(fk)
	require.ErrorIs(t, err, ErrUnknownColumn)
	assert.Contains(t, err.Error(), "customer_id")
}

func TestTable_AddImportedKeyDefaultsForeignSchema(t *testing.T) {
	table := newTestTable(t, "orders", "id", "customer_id")
	fk := NewForeignKey("fk_customer", Schema{}, "customer")
	fk.AddReference("customer_id", "id")
	require.NoError(t, table.AddImportedKey(fk))
	assert.Equal(t, "public", fk.ForeignSchema.Name)
}

func TestDatabase_AddTableRejectsDuplicateIdentity(t *testing.T) {
	db := NewDatabase("shop", NewSchema("public"))
	require.NoError(t, db.AddTable(newTestTable(t, "customer", "id")))
	require.ErrorIs(t, db.AddTable(newTestTable(t, "customer", "id")), ErrDuplicateTable)

	other := NewTable(NewSchema("sales"), "customer")
	require.NoError(t, db.AddTable(other))
	assert.True(t, db.MultipleSchemas())
}

func TestDatabase_LinkDerivesExportedKeys(t *testing.T) {
	db := NewDatabase("shop", NewSchema("public"))
	customer := newTestTable(t, "customer", "id")
	orders := newTestTable(t, "orders", "id", "customer_id")
	fk := NewForeignKey("fk_orders_customer", Schema{}, "customer")
	fk.OnDelete = Cascade
	fk.AddReference("customer_id", "id")
	require.NoError(t, orders.AddImportedKey(fk))
	require.NoError(t, db.AddTable(customer))
	require.NoError(t, db.AddTable(orders))

	db.Link()

	require.Len(t, customer.ExportedKeys, 1)
	ek := customer.ExportedKey("fk_orders_customer")
	require.NotNil(t, ek)
	assert.Equal(t, "orders", ek.ForeignTable)
	assert.Equal(t, Cascade, ek.OnDelete)
	assert.Equal(t, []Reference{{Local: "id", Foreign: "customer_id"}}, ek.References)
	assert.Empty(t, orders.ExportedKeys)

	// Relinking is stable.
	db.Link()
	assert.Len(t, customer.ExportedKeys, 1)
}

func TestDatabase_LinkAssignsKeySequences(t *testing.T) {
	db := NewDatabase("shop", NewSchema("public"))
	person := newTestTable(t, "person", "id")
	msg := newTestTable(t, "message", "id", "sender_id", "recipient_id", "group_id")
	group := newTestTable(t, "grp", "id")
	for _, tc := range [][3]string{
		{"fk_sender", "person", "sender_id"},
		{"fk_recipient", "person", "recipient_id"},
		{"fk_group", "grp", "group_id"},
	} {
		fk := NewForeignKey(tc[0], Schema{}, tc[1])
		fk.AddReference(tc[2], "id")
		require.NoError(t, msg.AddImportedKey(fk))
	}
	for _, table := range []*Table{person, msg, group} {
		require.NoError(t, db.AddTable(table))
	}

	db.Link()

	assert.Equal(t, 1, msg.ImportedKey("fk_sender").KeySequence)
	assert.Equal(t, 2, msg.ImportedKey("fk_recipient").KeySequence)
	assert.Equal(t, 0, msg.ImportedKey("fk_group").KeySequence)
	assert.Len(t, person.ExportedKeys, 2)
	assert.NotNil(t, person.ExportedKeyFrom(NewSchema("public"), "message", "fk_recipient"))
}

func TestDatabase_SetOptionsPropagatesTableFlags(t *testing.T) {
	db := NewDatabase("shop", NewSchema("public"))
	table := newTestTable(t, "customer", "id")
	require.NoError(t, db.AddTable(table))

	db.SetOptions(Options{DisableVersionFields: true, IncludeNonPortableAttributes: true})
	assert.True(t, table.DisableVersionFields)
	assert.True(t, table.IncludeNonPortableAttributes)
	assert.False(t, table.DisableGeneratedIdentifiers)
}

func TestCascadeAction_Codes(t *testing.T) {
	for _, a := range []CascadeAction{None, Cascade, SetNull, SetDefault, Restrict} {
		got, err := ParseCascadeCode(a.Code())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	assert.Equal(t, "3", None.Code())
	assert.Equal(t, "0", Cascade.Code())

	_, err := ParseCascadeCode("9")
	assert.ErrorIs(t, err, ErrUnknownCascade)

	assert.Equal(t, SetNull, CascadeActionFromRule("SET NULL"))
	assert.Equal(t, None, CascadeActionFromRule("NO ACTION"))
}

func TestColumnType_Lookup(t *testing.T) {
	typ, err := ParseColumnType("varchar")
	require.NoError(t, err)
	assert.Equal(t, TypeVarchar, typ)
	assert.Equal(t, 12, typ.Code())
	assert.Equal(t, "string", typ.GoType())
	assert.Equal(t, TypeTimestamp, ColumnTypeForCode(93))
	assert.Equal(t, TypeOther, ColumnTypeForCode(424242))

	_, err = ParseColumnType("NOPE")
	assert.ErrorIs(t, err, ErrUnknownColumnType)
}

func TestSchema_Sentinel(t *testing.T) {
	assert.Equal(t, NoSchema, NewSchema(""))
	assert.True(t, NoSchema.IsDefault())
	assert.False(t, NewSchema("public").IsDefault())
	assert.Equal(t, "customer", NewTable(NoSchema, "customer").QualifiedName())
}
