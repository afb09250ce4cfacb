package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/dbre/model"
	"github.com/satishbabariya/dbre/naming"
)

var public = model.NewSchema("public")

type dbBuilder struct {
	t  *testing.T
	db *model.Database
}

func newDB(t *testing.T) *dbBuilder {
	return &dbBuilder{t: t, db: model.NewDatabase("shop", public)}
}

// table adds a table whose columns are integers; pk columns are required.
func (b *dbBuilder) table(name string, pks []string, cols ...string) *model.Table {
	b.t.Helper()
	t := model.NewTable(public, name)
	isPK := make(map[string]bool)
	for _, pk := range pks {
		isPK[pk] = true
	}
	for _, c := range append(append([]string{}, pks...), cols...) {
		col := model.NewColumn(c, model.TypeInteger)
		col.PrimaryKey = isPK[c]
		col.Nullable = !isPK[c]
		require.NoError(b.t, t.AddColumn(col))
	}
	require.NoError(b.t, b.db.AddTable(t))
	return t
}

func (b *dbBuilder) key(t *model.Table, name, foreign string, pairs ...string) *model.ForeignKey {
	b.t.Helper()
	fk := model.NewForeignKey(name, public, foreign)
	for i := 0; i < len(pairs); i += 2 {
		fk.AddReference(pairs[i], pairs[i+1])
	}
	require.NoError(b.t, t.AddImportedKey(fk))
	return fk
}

func (b *dbBuilder) infer() *Result {
	b.t.Helper()
	b.db.Link()
	res, err := NewEngine().Infer(b.db)
	require.NoError(b.t, err)
	return res
}

func (b *dbBuilder) inferErr() error {
	b.t.Helper()
	b.db.Link()
	_, err := NewEngine().Infer(b.db)
	require.Error(b.t, err)
	return err
}

func shop(t *testing.T) *dbBuilder {
	b := newDB(t)
	b.table("CUSTOMER", []string{"id"})
	order := b.table("ORDER", []string{"id"}, "customer_id")
	b.key(order, "fk_order_customer", "CUSTOMER", "customer_id", "id")
	item := b.table("ORDER_ITEM", []string{"order_id", "product_id"})
	b.key(item, "fk_item_order", "ORDER", "order_id", "id")
	b.key(item, "fk_item_product", "PRODUCT", "product_id", "id")
	b.table("PRODUCT", []string{"id"})
	return b
}

func TestInfer_ShopScenario(t *testing.T) {
	res := shop(t).infer()

	require.Len(t, res.Entities, 3)
	require.Len(t, res.JoinTables, 1)
	assert.Equal(t, "ORDER_ITEM", res.JoinTables[0].Name)
	assert.True(t, res.JoinTables[0].JoinTable)

	for _, e := range res.Entities {
		assert.False(t, e.Identifier.Composite, e.TypeName)
		assert.Empty(t, e.Identifier.TypeName, e.TypeName)
		require.Len(t, e.Identifier.Fields, 1)
		assert.Equal(t, "id", e.Identifier.Fields[0].Name)
		assert.True(t, e.Identifier.Generated)
	}

	order := res.Entity(public, "ORDER")
	require.NotNil(t, order)
	assert.Equal(t, "Order", order.TypeName)
	assert.Empty(t, order.Fields, "foreign-key columns are mapped by the association")

	customer := order.Association("customer")
	require.NotNil(t, customer)
	assert.Equal(t, ManyToOne, customer.Kind)
	assert.True(t, customer.Owning)
	assert.True(t, customer.Optional)
	assert.Equal(t, "Customer", customer.TargetType)
	assert.Equal(t, []JoinColumn{{Name: "customer_id", ReferencedColumn: "id"}}, customer.JoinColumns)

	orders := res.Entity(public, "CUSTOMER").Association("orders")
	require.NotNil(t, orders)
	assert.Equal(t, OneToMany, orders.Kind)
	assert.Equal(t, "customer", orders.MappedBy)
	assert.Equal(t, "Order", orders.TargetType)
	assert.Equal(t, CascadeNone, orders.Cascade)

	products := order.Association("products")
	require.NotNil(t, products)
	assert.Equal(t, ManyToMany, products.Kind)
	assert.True(t, products.Owning)
	require.NotNil(t, products.JoinTable)
	assert.Equal(t, "ORDER_ITEM", products.JoinTable.Name)
	assert.Equal(t, []JoinColumn{{Name: "order_id", ReferencedColumn: "id", ReadOnly: true}}, products.JoinTable.JoinColumns)
	assert.Equal(t, []JoinColumn{{Name: "product_id", ReferencedColumn: "id", ReadOnly: true}}, products.JoinTable.InverseJoinColumns)

	mapped := res.Entity(public, "PRODUCT").Association("orders")
	require.NotNil(t, mapped)
	assert.Equal(t, ManyToMany, mapped.Kind)
	assert.False(t, mapped.Owning)
	assert.Equal(t, "products", mapped.MappedBy)
	assert.Nil(t, mapped.JoinTable)
}

func TestInfer_JoinTableDetection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *dbBuilder, item *model.Table)
		want   bool
	}{
		{"two keys, two pk columns", func(*dbBuilder, *model.Table) {}, true},
		{"extra column", func(b *dbBuilder, item *model.Table) {
			require.NoError(b.t, item.AddColumn(model.NewColumn("quantity", model.TypeInteger)))
		}, false},
		{"third key", func(b *dbBuilder, item *model.Table) {
			b.table("WAREHOUSE", []string{"id"})
			require.NoError(b.t, item.AddColumn(model.NewColumn("warehouse_id", model.TypeInteger)))
			b.key(item, "fk_item_warehouse", "WAREHOUSE", "warehouse_id", "id")
		}, false},
		{"single pk column", func(_ *dbBuilder, item *model.Table) {
			item.Column("product_id").PrimaryKey = false
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := shop(t)
			item := b.db.Table(public, "ORDER_ITEM")
			tt.mutate(b, item)
			res := b.infer()
			assert.Equal(t, tt.want, item.JoinTable)
			assert.Equal(t, tt.want, res.Entity(public, "ORDER_ITEM") == nil)
		})
	}
}

func TestInfer_OneToOneLaw(t *testing.T) {
	b := newDB(t)
	b.table("PERSON", []string{"id"})
	passport := b.table("PASSPORT", []string{"person_id"}, "number")
	b.key(passport, "fk_passport_person", "PERSON", "person_id", "id")
	visit := b.table("VISIT", []string{"person_id", "seq"})
	b.key(visit, "fk_visit_person", "PERSON", "person_id", "id")
	res := b.infer()

	owning := res.Entity(public, "PASSPORT").Association("person")
	require.NotNil(t, owning)
	assert.Equal(t, OneToOne, owning.Kind)
	assert.True(t, owning.JoinColumns[0].ReadOnly, "join column shared with the primary key")
	assert.False(t, owning.Optional)

	person := res.Entity(public, "PERSON")
	inverse := person.Association("passport")
	require.NotNil(t, inverse)
	assert.Equal(t, OneToOne, inverse.Kind)
	assert.Equal(t, "person", inverse.MappedBy)

	// The key covers only part of VISIT's primary key.
	assert.Equal(t, ManyToOne, res.Entity(public, "VISIT").Association("person").Kind)
	visits := person.Association("visits")
	require.NotNil(t, visits)
	assert.Equal(t, OneToMany, visits.Kind)
}

func TestInfer_IdentifierStrategy(t *testing.T) {
	b := newDB(t)
	b.table("AUDIT_LOG", nil, "at", "actor")
	b.table("STOCK", []string{"warehouse", "sku"}, "quantity")
	res := b.infer()

	log := res.Entity(public, "AUDIT_LOG")
	assert.True(t, log.Identifier.Composite)
	assert.Equal(t, "AuditLogPK", log.Identifier.TypeName)
	assert.Equal(t, []string{"at", "actor"}, fieldNames(log.Identifier.Fields))
	assert.Empty(t, log.Fields)

	stock := res.Entity(public, "STOCK")
	assert.True(t, stock.Identifier.Composite)
	assert.False(t, stock.Identifier.Generated)
	assert.Equal(t, []string{"warehouse", "sku"}, fieldNames(stock.Identifier.Fields))
	assert.Equal(t, []string{"quantity"}, fieldNames(stock.Fields))
}

func TestInfer_GeneratedVersionAndNativeType(t *testing.T) {
	b := newDB(t)
	account := b.table("ACCOUNT", []string{"id"}, "VERSION")
	account.Column("VERSION").NativeType = "int4"
	tag := b.table("TAG", nil)
	code := model.NewColumn("code", model.TypeVarchar)
	code.PrimaryKey = true
	require.NoError(t, tag.AddColumn(code))

	res := b.infer()
	acc := res.Entity(public, "ACCOUNT")
	assert.True(t, acc.Identifier.Generated)
	require.NotNil(t, acc.Version)
	assert.Equal(t, "version", acc.Version.Name)
	assert.Empty(t, acc.Version.NativeType)
	assert.False(t, res.Entity(public, "TAG").Identifier.Generated, "only integer keys are generated")

	b.db.SetOptions(model.Options{DisableVersionFields: true, DisableGeneratedIdentifiers: true, IncludeNonPortableAttributes: true})
	res = b.infer()
	acc = res.Entity(public, "ACCOUNT")
	assert.False(t, acc.Identifier.Generated)
	assert.Nil(t, acc.Version)
	require.Len(t, acc.Fields, 1)
	assert.Equal(t, "int4", acc.Fields[0].NativeType)
}

func TestInfer_KeySequenceAndCollisions(t *testing.T) {
	b := newDB(t)
	b.table("USER", []string{"id"})
	msg := b.table("MESSAGE", []string{"id"}, "sender_id", "recipient_id")
	b.key(msg, "fk_sender", "USER", "sender_id", "id").OnDelete = model.Cascade
	b.key(msg, "fk_recipient", "USER", "recipient_id", "id")
	order := b.table("ORDER", []string{"id"}, "customer", "customer_id")
	b.table("CUSTOMER", []string{"id"})
	b.key(order, "fk_customer", "CUSTOMER", "customer_id", "id")
	res := b.infer()

	message := res.Entity(public, "MESSAGE")
	assert.NotNil(t, message.Association("user1"))
	assert.NotNil(t, message.Association("user2"))

	user := res.Entity(public, "USER")
	sent := user.Association("messages1")
	require.NotNil(t, sent)
	assert.Equal(t, "user1", sent.MappedBy)
	assert.Equal(t, CascadeAll, sent.Cascade)
	received := user.Association("messages2")
	require.NotNil(t, received)
	assert.Equal(t, "user2", received.MappedBy)
	assert.Equal(t, CascadeNone, received.Cascade)

	// A scalar column already owns "customer".
	assert.NotNil(t, res.Entity(public, "ORDER").Association("customer1"))
	assert.Nil(t, res.Entity(public, "ORDER").Association("customer"))
}

func TestInfer_SelfReferencingManyToMany(t *testing.T) {
	b := newDB(t)
	b.table("PERSON", []string{"id"})
	friendship := b.table("FRIENDSHIP", []string{"person_id", "friend_id"})
	b.key(friendship, "fk_person", "PERSON", "person_id", "id")
	b.key(friendship, "fk_friend", "PERSON", "friend_id", "id")
	res := b.infer()

	require.Len(t, res.JoinTables, 1)
	plural := naming.Pluralize("person")
	person := res.Entity(public, "PERSON")
	owning := person.Association(plural + "1")
	require.NotNil(t, owning)
	assert.True(t, owning.Owning)
	inverse := person.Association(plural + "2")
	require.NotNil(t, inverse)
	assert.Equal(t, owning.FieldName, inverse.MappedBy)
}

func TestInfer_Failures(t *testing.T) {
	t.Run("unresolved table", func(t *testing.T) {
		b := newDB(t)
		order := b.table("ORDER", []string{"id"}, "customer_id")
		b.key(order, "fk_customer", "CUSTOMER", "customer_id", "id")
		err := b.inferErr()
		require.ErrorIs(t, err, ErrUnresolvedTable)
		assert.Contains(t, err.Error(), "table public.ORDER: foreign key fk_customer")
	})
	t.Run("key to join table", func(t *testing.T) {
		b := shop(t)
		ship := b.table("SHIPMENT", []string{"id"}, "order_id", "product_id")
		b.key(ship, "fk_ship_item", "ORDER_ITEM", "order_id", "order_id", "product_id", "product_id")
		err := b.inferErr()
		require.ErrorIs(t, err, ErrJoinTableReference)
		var ie *Error
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "public.SHIPMENT", ie.Table)
		assert.Equal(t, "fk_ship_item", ie.Key)
	})
	t.Run("invalid column name", func(t *testing.T) {
		b := newDB(t)
		b.table("PRICE", []string{"id"}, "amount$usd")
		err := b.inferErr()
		require.ErrorIs(t, err, ErrInvalidName)
		require.ErrorIs(t, err, naming.ErrInvalidIdentifier)
		assert.Contains(t, err.Error(), "column amount$usd")
	})
}

func TestEntity_Fingerprint(t *testing.T) {
	b := shop(t)
	first := b.infer().Entity(public, "ORDER").Fingerprint()
	again := b.infer().Entity(public, "ORDER").Fingerprint()
	assert.Equal(t, first, again)
	assert.Len(t, first, 64)

	b.db.Table(public, "ORDER").Column("id").Size = 12
	changed := b.infer().Entity(public, "ORDER").Fingerprint()
	assert.NotEqual(t, first, changed)
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
