package model

import (
	"fmt"
	"strconv"
	"strings"
)

// CascadeAction is the ON UPDATE / ON DELETE behaviour of a foreign key.
type CascadeAction int

const (
	None CascadeAction = iota
	Cascade
	SetNull
	SetDefault
	Restrict
)

var cascadeNames = map[CascadeAction]string{
	None:       "NONE",
	Cascade:    "CASCADE",
	SetNull:    "SET_NULL",
	SetDefault: "SET_DEFAULT",
	Restrict:   "RESTRICT",
}

// cascadeCodes are the standard SQL metadata codes for each action.
var cascadeCodes = map[CascadeAction]int{
	Cascade:    0,
	Restrict:   1,
	SetNull:    2,
	None:       3,
	SetDefault: 4,
}

func (a CascadeAction) String() string {
	if s, ok := cascadeNames[a]; ok {
		return s
	}
	return fmt.Sprintf("CascadeAction(%d)", int(a))
}

// Code returns the short code used by the snapshot file.
func (a CascadeAction) Code() string {
	return strconv.Itoa(cascadeCodes[a])
}

// ParseCascadeCode resolves a short code written by Code.
func ParseCascadeCode(code string) (CascadeAction, error) {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return None, fmt.Errorf("%w: %q", ErrUnknownCascade, code)
	}
	for a, c := range cascadeCodes {
		if c == n {
			return a, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownCascade, code)
}

// CascadeActionFromRule maps a referential rule as reported by
// information_schema ("NO ACTION", "SET NULL", ...) to an action.
func CascadeActionFromRule(rule string) CascadeAction {
	switch strings.ToUpper(strings.TrimSpace(rule)) {
	case "CASCADE":
		return Cascade
	case "SET NULL", "SET_NULL":
		return SetNull
	case "SET DEFAULT", "SET_DEFAULT":
		return SetDefault
	case "RESTRICT":
		return Restrict
	default:
		return None
	}
}

// Reference pairs a local column with the foreign column it references.
type Reference struct {
	Local   string
	Foreign string
}

// ForeignKey belongs to a table and references exactly one foreign table.
// For exported keys the roles are inverted: ForeignTable names the table
// that declares the constraint and Local names columns of the referenced
// table.
type ForeignKey struct {
	Name          string
	ForeignSchema Schema
	ForeignTable  string
	OnUpdate      CascadeAction
	OnDelete      CascadeAction
	// KeySequence disambiguates several keys from one table to the same
	// foreign table. Zero when the key is the only one.
	KeySequence int
	References  []Reference
}

// NewForeignKey returns a key referencing the given table.
func NewForeignKey(name string, foreignSchema Schema, foreignTable string) *ForeignKey {
	return &ForeignKey{
		Name:          name,
		ForeignSchema: foreignSchema,
		ForeignTable:  foreignTable,
	}
}

// AddReference appends a local/foreign column pair.
func (fk *ForeignKey) AddReference(local, foreign string) {
	fk.References = append(fk.References, Reference{Local: local, Foreign: foreign})
}

// LocalColumns returns the local column names in key order.
func (fk *ForeignKey) LocalColumns() []string {
	cols := make([]string, len(fk.References))
	for i, r := range fk.References {
		cols[i] = r.Local
	}
	return cols
}

// ForeignColumns returns the foreign column names in key order.
func (fk *ForeignKey) ForeignColumns() []string {
	cols := make([]string, len(fk.References))
	for i, r := range fk.References {
		cols[i] = r.Foreign
	}
	return cols
}

// Targets reports whether fk points at the given table.
func (fk *ForeignKey) Targets(schema Schema, table string) bool {
	return fk.ForeignTable == table && fk.ForeignSchema.Name == schema.Name
}

// inverse builds the exported view of fk as seen from the foreign table.
func (fk *ForeignKey) inverse(owner *Table) *ForeignKey {
	ek := &ForeignKey{
		Name:          fk.Name,
		ForeignSchema: owner.Schema,
		ForeignTable:  owner.Name,
		OnUpdate:      fk.OnUpdate,
		OnDelete:      fk.OnDelete,
		KeySequence:   fk.KeySequence,
	}
	for _, r := range fk.References {
		ek.References = append(ek.References, Reference{Local: r.Foreign, Foreign: r.Local})
	}
	return ek
}
