// Package inference derives entities and their associations from the
// primary- and foreign-key structure of a database model.
package inference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/satishbabariya/dbre/internal/debug"
	"github.com/satishbabariya/dbre/model"
	"github.com/satishbabariya/dbre/naming"
)

// Engine classifies foreign keys into associations. It performs no I/O.
type Engine struct{}

// NewEngine creates a new inference engine.
func NewEngine() *Engine {
	return &Engine{}
}

type keyRef struct {
	table *model.Table
	name  string
}

type run struct {
	db       *model.Database
	entities map[*model.Table]*Entity
	owning   map[keyRef]*Association
	result   *Result
}

// Infer annotates db with join-table flags and returns one entity per
// remaining table. Passes run in a fixed order: join-table detection,
// many-to-many pairs, owning sides of imported keys, inverse sides of
// exported keys.
func (e *Engine) Infer(db *model.Database) (*Result, error) {
	r := &run{
		db:       db,
		entities: make(map[*model.Table]*Entity),
		owning:   make(map[keyRef]*Association),
		result:   &Result{},
	}

	for _, t := range db.Tables {
		t.JoinTable = r.isJoinTable(t)
		if t.JoinTable {
			r.result.JoinTables = append(r.result.JoinTables, t)
			debug.Debug("join table detected", "table", t.QualifiedName())
		}
	}

	for _, t := range db.Tables {
		if t.JoinTable {
			continue
		}
		ent, err := newEntity(t)
		if err != nil {
			return nil, err
		}
		r.entities[t] = ent
		r.result.Entities = append(r.result.Entities, ent)
	}

	for _, t := range r.result.JoinTables {
		if err := r.manyToMany(t); err != nil {
			return nil, err
		}
	}
	for _, ent := range r.result.Entities {
		for _, fk := range ent.Table.ImportedKeys {
			if err := r.owningSide(ent, fk); err != nil {
				return nil, err
			}
		}
	}
	for _, ent := range r.result.Entities {
		for _, ek := range ent.Table.ExportedKeys {
			if err := r.inverseSide(ent, ek); err != nil {
				return nil, err
			}
		}
	}
	return r.result, nil
}

// isJoinTable reports whether t only links two other tables: exactly two
// primary-key columns, exactly two imported keys with disjoint non-empty
// local columns, every column covered by a key and both foreign tables
// present. Both keys may reference the same table.
func (r *run) isJoinTable(t *model.Table) bool {
	if len(t.PrimaryKeys()) != 2 || len(t.ImportedKeys) != 2 {
		return false
	}
	covered := make(map[string]int)
	for n, fk := range t.ImportedKeys {
		if len(fk.References) == 0 || r.db.Table(fk.ForeignSchema, fk.ForeignTable) == nil {
			return false
		}
		for _, col := range fk.LocalColumns() {
			if prev, ok := covered[col]; ok && prev != n {
				return false
			}
			covered[col] = n
		}
	}
	for _, c := range t.Columns {
		if _, ok := covered[c.Name]; !ok {
			return false
		}
	}
	return true
}

func newEntity(t *model.Table) (*Entity, error) {
	typeName, err := naming.TableToTypeName(t.Name)
	if err != nil {
		return nil, &Error{Table: t.QualifiedName(), Err: fmt.Errorf("%w: %w", ErrInvalidName, err)}
	}
	ent := &Entity{Table: t, TypeName: typeName, taken: make(map[string]bool)}

	keyed := make(map[string]bool)
	for _, fk := range t.ImportedKeys {
		for _, col := range fk.LocalColumns() {
			keyed[col] = true
		}
	}

	pks := t.PrimaryKeys()
	idCols := pks
	if len(pks) == 1 {
		f, err := field(t, pks[0])
		if err != nil {
			return nil, err
		}
		ent.Identifier = Identifier{
			Fields:    []Field{f},
			Generated: pks[0].Type.IsInteger() && !t.DisableGeneratedIdentifiers,
		}
		ent.claim(f.Name)
	} else {
		if len(pks) == 0 {
			idCols = t.Columns
		}
		ent.Identifier = Identifier{Composite: true, TypeName: typeName + "PK"}
		for _, c := range idCols {
			f, err := field(t, c)
			if err != nil {
				return nil, err
			}
			ent.Identifier.Fields = append(ent.Identifier.Fields, f)
		}
		// The embedded identifier is exposed as "id".
		ent.claim("id")
	}
	inID := make(map[string]bool)
	for _, c := range idCols {
		inID[c.Name] = true
	}

	for _, c := range t.Columns {
		if inID[c.Name] || keyed[c.Name] {
			continue
		}
		f, err := field(t, c)
		if err != nil {
			return nil, err
		}
		if ent.Version == nil && strings.EqualFold(c.Name, "version") && !t.DisableVersionFields {
			v := f
			ent.Version = &v
		} else {
			ent.Fields = append(ent.Fields, f)
		}
		ent.claim(f.Name)
	}
	return ent, nil
}

func field(t *model.Table, c *model.Column) (Field, error) {
	name, err := naming.ColumnToFieldName(c.Name)
	if err != nil {
		return Field{}, &Error{Table: t.QualifiedName(), Column: c.Name, Err: fmt.Errorf("%w: %w", ErrInvalidName, err)}
	}
	f := Field{
		Name:     name,
		Column:   c.Name,
		Type:     c.Type,
		GoType:   c.GoType,
		Size:     c.Size,
		Scale:    c.Scale,
		Nullable: c.Nullable,
		Unique:   c.Unique,
	}
	if t.IncludeNonPortableAttributes {
		f.NativeType = c.NativeType
	}
	return f, nil
}

// target resolves the entity fk points at from t.
func (r *run) target(t *model.Table, fk *model.ForeignKey) (*Entity, error) {
	ft := r.db.Table(fk.ForeignSchema, fk.ForeignTable)
	if ft == nil {
		return nil, &Error{Table: t.QualifiedName(), Key: fk.Name,
			Err: fmt.Errorf("%w: %s.%s", ErrUnresolvedTable, fk.ForeignSchema.Name, fk.ForeignTable)}
	}
	if ft.JoinTable {
		return nil, &Error{Table: t.QualifiedName(), Key: fk.Name,
			Err: fmt.Errorf("%w: %s", ErrJoinTableReference, ft.QualifiedName())}
	}
	return r.entities[ft], nil
}

func (r *run) manyToMany(jt *model.Table) error {
	fk1, fk2 := jt.ImportedKeys[0], jt.ImportedKeys[1]
	owner, err := r.target(jt, fk1)
	if err != nil {
		return err
	}
	inverse, err := r.target(jt, fk2)
	if err != nil {
		return err
	}

	ownerSuffix, inverseSuffix := "", ""
	if owner == inverse {
		ownerSuffix, inverseSuffix = "1", "2"
	}

	ownerBase, err := collectionName(jt, fk2, inverse.Table.Name)
	if err != nil {
		return err
	}
	owning := &Association{
		Kind:       ManyToMany,
		FieldName:  allocate(owner, ownerBase+ownerSuffix),
		TargetType: inverse.TypeName,
		Owning:     true,
		ForeignKey: fk1.Name,
		JoinTable: &JoinTable{
			Name:               jt.Name,
			Schema:             jt.Schema.Name,
			JoinColumns:        joinColumns(jt, fk1),
			InverseJoinColumns: joinColumns(jt, fk2),
		},
		Target: inverse.Table,
	}
	owner.Associations = append(owner.Associations, owning)

	inverseBase, err := collectionName(jt, fk1, owner.Table.Name)
	if err != nil {
		return err
	}
	inverse.Associations = append(inverse.Associations, &Association{
		Kind:       ManyToMany,
		FieldName:  allocate(inverse, inverseBase+inverseSuffix),
		TargetType: owner.TypeName,
		MappedBy:   owning.FieldName,
		ForeignKey: fk2.Name,
		Target:     owner.Table,
	})
	debug.Debug("many-to-many", "join", jt.QualifiedName(), "owner", owner.TypeName, "inverse", inverse.TypeName)
	return nil
}

// owningSide adds the association declared by fk to the importing entity.
func (r *run) owningSide(ent *Entity, fk *model.ForeignKey) error {
	tgt, err := r.target(ent.Table, fk)
	if err != nil {
		return err
	}
	kind := ManyToOne
	if oneToOne(ent.Table, fk.LocalColumns()) {
		kind = OneToOne
	}
	base, err := naming.ColumnToFieldName(tgt.Table.Name)
	if err != nil {
		return &Error{Table: ent.Table.QualifiedName(), Key: fk.Name, Err: fmt.Errorf("%w: %w", ErrInvalidName, err)}
	}
	optional := false
	for _, col := range fk.LocalColumns() {
		if c := ent.Table.Column(col); c != nil && c.Nullable {
			optional = true
		}
	}
	a := &Association{
		Kind:        kind,
		FieldName:   allocate(ent, base+sequenceSuffix(fk)),
		TargetType:  tgt.TypeName,
		Owning:      true,
		Optional:    optional,
		ForeignKey:  fk.Name,
		JoinColumns: joinColumns(ent.Table, fk),
		Target:      tgt.Table,
	}
	ent.Associations = append(ent.Associations, a)
	r.owning[keyRef{ent.Table, fk.Name}] = a
	return nil
}

// inverseSide adds the collection or reference mirroring an exported key.
// Keys declared by join tables were handled as many-to-many pairs.
func (r *run) inverseSide(ent *Entity, ek *model.ForeignKey) error {
	ot := r.db.Table(ek.ForeignSchema, ek.ForeignTable)
	if ot == nil {
		return &Error{Table: ent.Table.QualifiedName(), Key: ek.Name,
			Err: fmt.Errorf("%w: %s.%s", ErrUnresolvedTable, ek.ForeignSchema.Name, ek.ForeignTable)}
	}
	if ot.JoinTable {
		return nil
	}
	owner := r.entities[ot]
	owning := r.owning[keyRef{ot, ek.Name}]
	if owner == nil || owning == nil {
		return &Error{Table: ent.Table.QualifiedName(), Key: ek.Name,
			Err: fmt.Errorf("%w: no owning side in %s", ErrUnresolvedTable, ot.QualifiedName())}
	}

	kind := OneToMany
	base, err := naming.ColumnToFieldName(ot.Name)
	if err != nil {
		return &Error{Table: ent.Table.QualifiedName(), Key: ek.Name, Err: fmt.Errorf("%w: %w", ErrInvalidName, err)}
	}
	if owning.Kind == OneToOne {
		kind = OneToOne
	} else {
		base = naming.Pluralize(base)
	}
	cascade := CascadeNone
	if ek.OnDelete == model.Cascade {
		cascade = CascadeAll
	}
	ent.Associations = append(ent.Associations, &Association{
		Kind:       kind,
		FieldName:  allocate(ent, base+sequenceSuffix(ek)),
		TargetType: owner.TypeName,
		MappedBy:   owning.FieldName,
		Cascade:    cascade,
		Optional:   true,
		ForeignKey: ek.Name,
		Target:     ot,
	})
	return nil
}

// oneToOne reports whether local is exactly the primary-key column set of t.
func oneToOne(t *model.Table, local []string) bool {
	pks := t.PrimaryKeyNames()
	if len(pks) == 0 || len(pks) != len(local) {
		return false
	}
	set := make(map[string]bool, len(local))
	for _, c := range local {
		set[c] = true
	}
	for _, pk := range pks {
		if !set[pk] {
			return false
		}
	}
	return len(set) == len(pks)
}

func joinColumns(t *model.Table, fk *model.ForeignKey) []JoinColumn {
	cols := make([]JoinColumn, 0, len(fk.References))
	for _, ref := range fk.References {
		c := t.Column(ref.Local)
		cols = append(cols, JoinColumn{
			Name:             ref.Local,
			ReferencedColumn: ref.Foreign,
			ReadOnly:         c != nil && c.PrimaryKey,
		})
	}
	return cols
}

func collectionName(jt *model.Table, fk *model.ForeignKey, table string) (string, error) {
	base, err := naming.ColumnToFieldName(table)
	if err != nil {
		return "", &Error{Table: jt.QualifiedName(), Key: fk.Name, Err: fmt.Errorf("%w: %w", ErrInvalidName, err)}
	}
	return naming.Pluralize(base), nil
}

func sequenceSuffix(fk *model.ForeignKey) string {
	if fk.KeySequence > 0 {
		return strconv.Itoa(fk.KeySequence)
	}
	return ""
}

// allocate claims name on ent, appending 1, 2, ... while it is taken.
func allocate(ent *Entity, name string) string {
	if ent.claim(name) {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + strconv.Itoa(i)
		if ent.claim(candidate) {
			return candidate
		}
	}
}
