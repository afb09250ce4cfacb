package inference

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/satishbabariya/dbre/model"
)

// Kind is the cardinality of an association.
type Kind int

const (
	OneToOne Kind = iota
	ManyToOne
	OneToMany
	ManyToMany
)

func (k Kind) String() string {
	switch k {
	case OneToOne:
		return "one-to-one"
	case ManyToOne:
		return "many-to-one"
	case OneToMany:
		return "one-to-many"
	case ManyToMany:
		return "many-to-many"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Cascade is the persistence cascade applied from an association's owner
// to its target.
type Cascade int

const (
	CascadeNone Cascade = iota
	CascadeAll
)

func (c Cascade) String() string {
	if c == CascadeAll {
		return "all"
	}
	return "none"
}

// MarshalText encodes the cascade by name.
func (c Cascade) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Field is a scalar attribute mapped from a column.
type Field struct {
	Name       string           `json:"name"`
	Column     string           `json:"column"`
	Type       model.ColumnType `json:"type"`
	GoType     string           `json:"goType"`
	Size       int              `json:"size,omitempty"`
	Scale      int              `json:"scale,omitempty"`
	Nullable   bool             `json:"nullable,omitempty"`
	Unique     bool             `json:"unique,omitempty"`
	NativeType string           `json:"nativeType,omitempty"`
}

// JoinColumn maps one local column of an association to the column it
// references. Columns shared with the primary key are read-only.
type JoinColumn struct {
	Name             string `json:"name"`
	ReferencedColumn string `json:"referencedColumn"`
	ReadOnly         bool   `json:"readOnly,omitempty"`
}

// JoinTable describes the link table of a many-to-many association, seen
// from its owning side.
type JoinTable struct {
	Name               string       `json:"name"`
	Schema             string       `json:"schema"`
	JoinColumns        []JoinColumn `json:"joinColumns"`
	InverseJoinColumns []JoinColumn `json:"inverseJoinColumns"`
}

// Association is one side of a relationship between two entities.
type Association struct {
	Kind       Kind   `json:"kind"`
	FieldName  string `json:"fieldName"`
	TargetType string `json:"targetType"`
	// MappedBy names the owning side's field on the target; empty on the
	// owning side.
	MappedBy    string       `json:"mappedBy,omitempty"`
	Cascade     Cascade      `json:"cascade"`
	Owning      bool         `json:"owning"`
	Optional    bool         `json:"optional,omitempty"`
	ForeignKey  string       `json:"foreignKey"`
	JoinColumns []JoinColumn `json:"joinColumns,omitempty"`
	JoinTable   *JoinTable   `json:"joinTable,omitempty"`

	Target *model.Table `json:"-"`
}

// Identifier is the identifier strategy of an entity. A single-column
// primary key maps to a plain field; anything else needs a composite
// identifier type.
type Identifier struct {
	Composite bool    `json:"composite"`
	TypeName  string  `json:"typeName,omitempty"`
	Fields    []Field `json:"fields"`
	Generated bool    `json:"generated,omitempty"`
}

// Entity is the domain type derived from one non-join table.
type Entity struct {
	Table        *model.Table   `json:"-"`
	TypeName     string         `json:"typeName"`
	Identifier   Identifier     `json:"identifier"`
	Version      *Field         `json:"version,omitempty"`
	Fields       []Field        `json:"fields"`
	Associations []*Association `json:"associations"`

	taken map[string]bool
}

// Association returns the association with the given field name or nil.
func (e *Entity) Association(field string) *Association {
	for _, a := range e.Associations {
		if a.FieldName == field {
			return a
		}
	}
	return nil
}

// Fingerprint hashes everything the entity contributes to generated code.
// Equal fingerprints mean a regenerated type would not change.
func (e *Entity) Fingerprint() string {
	payload := struct {
		Schema string  `json:"schema"`
		Table  string  `json:"table"`
		Entity *Entity `json:"entity"`
	}{e.Table.Schema.Name, e.Table.Name, e}
	b, err := json.Marshal(payload)
	if err != nil {
		// Every field is a plain value; Marshal cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// claim reserves name on the entity, or reports that it is taken.
func (e *Entity) claim(name string) bool {
	if e.taken[name] {
		return false
	}
	e.taken[name] = true
	return true
}

// Result is the outcome of inference over one database.
type Result struct {
	Entities   []*Entity
	JoinTables []*model.Table
}

// Entity returns the entity for the given table or nil.
func (r *Result) Entity(schema model.Schema, table string) *Entity {
	for _, e := range r.Entities {
		if e.Table.Name == table && e.Table.Schema.Name == schema.Name {
			return e
		}
	}
	return nil
}
