// Package reconcile compares inferred entities with previously generated
// types and plans the creations, updates and deletions that bring them
// back in line.
package reconcile

import (
	"fmt"
	"slices"

	"github.com/satishbabariya/dbre/inference"
	"github.com/satishbabariya/dbre/internal/debug"
	"github.com/satishbabariya/dbre/model"
	"github.com/satishbabariya/dbre/naming"
)

// Options configure a reconciliation run.
type Options struct {
	// Namespace is the explicitly configured destination for new types.
	// When blank the database's own namespace is used.
	Namespace string
	// ProjectNamespace is the fallback for new types when nothing else
	// determines a destination.
	ProjectNamespace string
	// DefaultPolicy applies when no managed type exists yet.
	DefaultPolicy Policy
}

// Create asks for a new type for an entity.
type Create struct {
	Entity    *inference.Entity
	Namespace string
}

// Update asks for an existing type to be refreshed in place from entity.
type Update struct {
	Entity  *inference.Entity
	Managed ManagedType
	// RetireIdentifier is the identifier type that is no longer needed
	// now that the table has a single-column key.
	RetireIdentifier *IdentifierType
}

// Delete removes a managed type whose table is gone.
type Delete struct {
	Managed ManagedType
	// IdentifierType is removed along with the type, when set.
	IdentifierType *IdentifierType
}

// Plan is the change set produced by Reconcile. A table is never both
// created and updated within one plan.
type Plan struct {
	Policy  Policy
	Creates []Create
	Updates []Update
	Deletes []Delete
	// Kept lists types whose table is gone but that may not be deleted.
	Kept []ManagedType
}

// Empty reports whether applying the plan changes nothing.
func (p *Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

type identity struct {
	schema string
	table  string
}

// Reconcile plans the changes needed to align managed with the entities of
// res, inferred from db. The policy flags chosen for the run are written
// back to db.
func Reconcile(db *model.Database, res *inference.Result, managed []ManagedType, opts Options) (*Plan, error) {
	plan := &Plan{Policy: opts.DefaultPolicy}
	if len(managed) > 0 {
		plan.Policy = managed[0].Policy()
	}
	o := db.Options
	o.ActiveRecord = plan.Policy.ActiveRecord
	o.Repository = plan.Policy.Repository
	o.Service = plan.Policy.Service
	o.TestAutomatically = plan.Policy.TestAutomatically
	db.SetOptions(o)

	pending := make(map[identity]*inference.Entity, len(res.Entities))
	for _, e := range res.Entities {
		pending[identity{e.Table.Schema.Name, e.Table.Name}] = e
	}

	claimed := make(map[identity]bool)
	var orphans []ManagedType
	for _, m := range managed {
		schema := m.Schema()
		if schema.IsDefault() {
			schema = db.Schema
		}
		id := identity{schema.Name, m.Table()}
		table := db.Table(schema, m.Table())
		if table == nil || table.JoinTable {
			orphans = append(orphans, m)
			continue
		}
		if claimed[id] {
			debug.Warn("table already managed by another type", "table", table.QualifiedName(), "type", m.TypeName())
			continue
		}
		claimed[id] = true
		ent := pending[id]
		if ent == nil {
			return nil, fmt.Errorf("table %s: no entity inferred", table.QualifiedName())
		}
		delete(pending, id)

		u := Update{Entity: ent, Managed: m}
		if it := m.IdentifierType(); it != nil && !ent.Identifier.Composite && !it.Customized {
			u.RetireIdentifier = it
		}
		if u.RetireIdentifier != nil || m.Fingerprint() != ent.Fingerprint() {
			plan.Updates = append(plan.Updates, u)
		}
	}

	plan.Deletes, plan.Kept = deletions(orphans, managed)

	for _, e := range res.Entities {
		if pending[identity{e.Table.Schema.Name, e.Table.Name}] == nil {
			continue
		}
		ns, err := destination(db, e.Table, managed, opts)
		if err != nil {
			return nil, err
		}
		plan.Creates = append(plan.Creates, Create{Entity: e, Namespace: ns})
	}

	debug.Info("reconciled", "schema", db.Schema.Name,
		"creates", len(plan.Creates), "updates", len(plan.Updates), "deletes", len(plan.Deletes))
	return plan, nil
}

// deletions splits orphans into deletable and kept types. An identifier
// type goes with its owner unless customised or shared with a type that
// stays.
func deletions(orphans, managed []ManagedType) ([]Delete, []ManagedType) {
	var (
		deletes []Delete
		kept    []ManagedType
	)
	deleted := make(map[string]bool)
	for _, m := range orphans {
		if m.Customized() || !m.AutoDelete() {
			debug.Debug("keeping managed type", "type", m.TypeName(), "customized", m.Customized())
			kept = append(kept, m)
			continue
		}
		deleted[typeKey(m)] = true
		deletes = append(deletes, Delete{Managed: m})
	}
	for n := range deletes {
		it := deletes[n].Managed.IdentifierType()
		if it == nil || it.Customized {
			continue
		}
		shared := slices.ContainsFunc(managed, func(o ManagedType) bool {
			oid := o.IdentifierType()
			return !deleted[typeKey(o)] && oid != nil && oid.Name == it.Name
		})
		if !shared {
			deletes[n].IdentifierType = it
		}
	}
	return deletes, kept
}

// destination picks the namespace for a new type: the configured one,
// else that of an existing managed type when the database has a single
// schema, else the project namespace. Multi-schema databases append a
// per-schema package.
func destination(db *model.Database, t *model.Table, managed []ManagedType, opts Options) (string, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = db.Namespace
	}
	multi := db.MultipleSchemas()
	if ns == "" && !multi && len(managed) > 0 {
		ns = managed[0].Namespace()
	}
	if ns == "" {
		ns = opts.ProjectNamespace
	}
	if multi {
		return naming.SchemaPackage(ns, t.Schema.Name)
	}
	return ns, nil
}

// Apply returns the managed set as it stands once the plan has been
// emitted. Reconciling the result against the same database yields an
// empty plan.
func (p *Plan) Apply(managed []ManagedType) []*Descriptor {
	gone := make(map[string]bool, len(p.Deletes))
	for _, d := range p.Deletes {
		gone[typeKey(d.Managed)] = true
	}
	updates := make(map[string]Update, len(p.Updates))
	for _, u := range p.Updates {
		updates[typeKey(u.Managed)] = u
	}

	out := make([]*Descriptor, 0, len(managed)+len(p.Creates))
	for _, m := range managed {
		if gone[typeKey(m)] {
			continue
		}
		d := describe(m)
		d.Flags = p.Policy
		if u, ok := updates[typeKey(m)]; ok {
			d.Hash = u.Entity.Fingerprint()
			d.Identifier = identifierOf(u.Entity, d.Identifier)
			if u.RetireIdentifier != nil {
				d.Identifier = nil
			}
		}
		out = append(out, d)
	}
	for _, c := range p.Creates {
		d := &Descriptor{
			Type:        c.Entity.TypeName,
			Package:     c.Namespace,
			TableName:   c.Entity.Table.Name,
			Identifier:  identifierOf(c.Entity, nil),
			Markers:     slices.Clone(StandardMarkers),
			AllowDelete: true,
			Flags:       p.Policy,
			Hash:        c.Entity.Fingerprint(),
		}
		if s := c.Entity.Table.Schema; !s.IsDefault() {
			d.SchemaName = s.Name
		}
		out = append(out, d)
	}
	return out
}

// typeKey identifies a managed type by its qualified name.
func typeKey(m ManagedType) string {
	return m.Namespace() + "." + m.TypeName()
}

func identifierOf(e *inference.Entity, current *IdentifierType) *IdentifierType {
	if !e.Identifier.Composite {
		return current
	}
	if current != nil && current.Name == e.Identifier.TypeName {
		return current
	}
	return &IdentifierType{Name: e.Identifier.TypeName}
}
