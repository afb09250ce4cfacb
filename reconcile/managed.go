package reconcile

import (
	"slices"

	"github.com/satishbabariya/dbre/model"
)

// StandardMarkers are the markers generation places on every managed type.
// A type carrying any other set has been edited by hand.
var StandardMarkers = []string{"dbre:entity", "dbre:table", "dbre:generated"}

// Policy holds the run-wide code generation choices.
type Policy struct {
	ActiveRecord      bool `yaml:"activeRecord,omitempty"`
	Repository        bool `yaml:"repository,omitempty"`
	Service           bool `yaml:"service,omitempty"`
	TestAutomatically bool `yaml:"testAutomatically,omitempty"`
}

// IdentifierType is a generated composite identifier type owned by one
// managed entity.
type IdentifierType struct {
	Name       string `yaml:"name"`
	Customized bool   `yaml:"customized,omitempty"`
}

// ManagedType is a previously generated domain type as seen by the host
// that discovered it.
type ManagedType interface {
	TypeName() string
	Namespace() string
	Table() string
	Schema() model.Schema
	// IdentifierType returns the dedicated identifier type, or nil.
	IdentifierType() *IdentifierType
	Customized() bool
	// AutoDelete reports whether the type may be removed when its table
	// disappears.
	AutoDelete() bool
	Policy() Policy
	// Fingerprint is the entity fingerprint the type was last generated
	// from.
	Fingerprint() string
}

// Descriptor is a plain ManagedType, as stored in a manifest.
type Descriptor struct {
	Type       string          `yaml:"type"`
	Package    string          `yaml:"package"`
	TableName  string          `yaml:"table"`
	SchemaName string          `yaml:"schema,omitempty"`
	Identifier *IdentifierType `yaml:"identifier,omitempty"`
	Markers    []string        `yaml:"markers"`

	ExtraFields       []string `yaml:"extraFields,omitempty"`
	ExtraMethods      []string `yaml:"extraMethods,omitempty"`
	ExtraConstructors []string `yaml:"extraConstructors,omitempty"`
	// Modified flags a type edited in ways the lists above do not capture.
	Modified bool `yaml:"modified,omitempty"`

	AllowDelete bool   `yaml:"autoDelete"`
	Flags       Policy `yaml:"policy"`
	Hash        string `yaml:"fingerprint,omitempty"`
}

func (d *Descriptor) TypeName() string { return d.Type }
func (d *Descriptor) Namespace() string { return d.Package }
func (d *Descriptor) Table() string { return d.TableName }
func (d *Descriptor) Schema() model.Schema { return model.NewSchema(d.SchemaName) }
func (d *Descriptor) IdentifierType() *IdentifierType { return d.Identifier }
func (d *Descriptor) AutoDelete() bool { return d.AllowDelete }
func (d *Descriptor) Policy() Policy { return d.Flags }
func (d *Descriptor) Fingerprint() string { return d.Hash }

// Customized reports whether the type differs from what generation
// produces.
func (d *Descriptor) Customized() bool {
	if d.Modified || len(d.ExtraFields) > 0 || len(d.ExtraMethods) > 0 || len(d.ExtraConstructors) > 0 {
		return true
	}
	return !sameMarkers(d.Markers, StandardMarkers)
}

func sameMarkers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// describe copies any ManagedType into a Descriptor.
func describe(m ManagedType) *Descriptor {
	if d, ok := m.(*Descriptor); ok {
		c := *d
		c.Markers = slices.Clone(d.Markers)
		if d.Identifier != nil {
			id := *d.Identifier
			c.Identifier = &id
		}
		return &c
	}
	d := &Descriptor{
		Type:        m.TypeName(),
		Package:     m.Namespace(),
		TableName:   m.Table(),
		Markers:     slices.Clone(StandardMarkers),
		Modified:    m.Customized(),
		AllowDelete: m.AutoDelete(),
		Flags:       m.Policy(),
		Hash:        m.Fingerprint(),
	}
	if s := m.Schema(); !s.IsDefault() {
		d.SchemaName = s.Name
	}
	if id := m.IdentifierType(); id != nil {
		c := *id
		d.Identifier = &c
	}
	return d
}
