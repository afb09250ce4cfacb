package snapshot

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/dbre/model"
)

// FormatVersion is written to every snapshot.
const FormatVersion = "1.0"

// supportedFormats is the range of snapshot versions Decode accepts.
var supportedFormats = version.MustConstraints(version.NewConstraint(">= 1.0, < 2.0"))

type xmlDatabase struct {
	XMLName       xml.Name    `xml:"database"`
	Name          string      `xml:"name,attr"`
	Schema        string      `xml:"schema,attr"`
	Package       string      `xml:"package,attr,omitempty"`
	FormatVersion string      `xml:"formatVersion,attr,omitempty"`
	Options       []xmlOption `xml:"option"`
	Tables        []xmlTable  `xml:"table"`
}

type xmlOption struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

type xmlTable struct {
	Name        string      `xml:"name,attr"`
	Schema      string      `xml:"schema,attr,omitempty"`
	Catalog     string      `xml:"catalog,attr,omitempty"`
	Description string      `xml:"description,attr,omitempty"`
	Columns     []xmlColumn `xml:"column"`
	ForeignKeys []xmlKey    `xml:"foreignKey"`
	Exported    []xmlKey    `xml:"exportedKey"`
	Indices     []xmlIndex  `xml:",any"`
}

type xmlColumn struct {
	Name        string `xml:"name,attr"`
	Description string `xml:"description,attr,omitempty"`
	PrimaryKey  bool   `xml:"primaryKey,attr"`
	GoType      string `xml:"javaType,attr,omitempty"`
	Required    bool   `xml:"required,attr"`
	Size        int    `xml:"size,attr,omitempty"`
	Scale       int    `xml:"scale,attr,omitempty"`
	Type        string `xml:"type,attr"`
	Unique      bool   `xml:"unique,attr,omitempty"`
	NativeType  string `xml:"nativeType,attr,omitempty"`
}

type xmlKey struct {
	Name          string         `xml:"name,attr"`
	ForeignTable  string         `xml:"foreignTable,attr"`
	ForeignSchema string         `xml:"foreignSchema,attr,omitempty"`
	OnDelete      string         `xml:"onDelete,attr"`
	OnUpdate      string         `xml:"onUpdate,attr"`
	References    []xmlReference `xml:"reference"`
}

type xmlReference struct {
	Foreign string `xml:"foreign,attr"`
	Local   string `xml:"local,attr"`
}

// xmlIndex is written as <index> or <unique> with matching
// <index-column> or <unique-column> children, keeping table order.
type xmlIndex struct {
	XMLName xml.Name
	Name    string           `xml:"name,attr"`
	Columns []xmlIndexColumn `xml:",any"`
}

type xmlIndexColumn struct {
	XMLName xml.Name
	Name    string `xml:"name,attr"`
}

var optionKeys = []struct {
	key string
	get func(*model.Options) *bool
}{
	{"activeRecord", func(o *model.Options) *bool { return &o.ActiveRecord }},
	{"repository", func(o *model.Options) *bool { return &o.Repository }},
	{"service", func(o *model.Options) *bool { return &o.Service }},
	{"testAutomatically", func(o *model.Options) *bool { return &o.TestAutomatically }},
	{"includeNonPortableAttributes", func(o *model.Options) *bool { return &o.IncludeNonPortableAttributes }},
	{"disableVersionFields", func(o *model.Options) *bool { return &o.DisableVersionFields }},
	{"disableGeneratedIdentifiers", func(o *model.Options) *bool { return &o.DisableGeneratedIdentifiers }},
}

// Encode writes db as an XML snapshot.
func Encode(w io.Writer, db *model.Database) error {
	doc := xmlDatabase{
		Name:          db.Name,
		Schema:        db.Schema.Name,
		Package:       db.Namespace,
		FormatVersion: FormatVersion,
	}
	opts := db.Options
	for _, opt := range optionKeys {
		if *opt.get(&opts) {
			doc.Options = append(doc.Options, xmlOption{Key: opt.key, Value: "true"})
		}
	}
	for _, t := range db.Tables {
		doc.Tables = append(doc.Tables, encodeTable(db, t))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func encodeTable(db *model.Database, t *model.Table) xmlTable {
	xt := xmlTable{Name: t.Name, Catalog: t.Catalog, Description: t.Description}
	if t.Schema != db.Schema {
		xt.Schema = t.Schema.Name
	}
	for _, c := range t.Columns {
		xc := xmlColumn{
			Name:        c.Name,
			Description: c.Description,
			PrimaryKey:  c.PrimaryKey,
			GoType:      c.GoType,
			Required:    c.Required(),
			Size:        c.Size,
			Scale:       c.Scale,
			Type:        c.Type.String(),
			Unique:      c.Unique,
			NativeType:  c.NativeType,
		}
		xt.Columns = append(xt.Columns, xc)
	}
	for _, fk := range t.ImportedKeys {
		xt.ForeignKeys = append(xt.ForeignKeys, encodeKey(t, fk))
	}
	for _, ek := range t.ExportedKeys {
		xt.Exported = append(xt.Exported, encodeKey(t, ek))
	}
	for _, idx := range t.Indices {
		elem, col := "index", "index-column"
		if idx.Unique {
			elem, col = "unique", "unique-column"
		}
		xi := xmlIndex{XMLName: xml.Name{Local: elem}, Name: idx.Name}
		for _, c := range idx.Columns {
			xi.Columns = append(xi.Columns, xmlIndexColumn{XMLName: xml.Name{Local: col}, Name: c.Name})
		}
		xt.Indices = append(xt.Indices, xi)
	}
	return xt
}

func encodeKey(t *model.Table, fk *model.ForeignKey) xmlKey {
	xk := xmlKey{
		Name:         fk.Name,
		ForeignTable: fk.ForeignTable,
		OnDelete:     fk.OnDelete.Code(),
		OnUpdate:     fk.OnUpdate.Code(),
	}
	if fk.ForeignSchema != t.Schema {
		xk.ForeignSchema = fk.ForeignSchema.Name
	}
	for _, r := range fk.References {
		xk.References = append(xk.References, xmlReference{Foreign: r.Foreign, Local: r.Local})
	}
	return xk
}

// Decode reads an XML snapshot. The result is rebuilt through the model
// constructors and linked, so exported keys in the file are only
// informational.
func Decode(r io.Reader) (*model.Database, error) {
	var doc xmlDatabase
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if doc.FormatVersion != "" {
		v, err := version.NewVersion(doc.FormatVersion)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrUnsupportedFormat, doc.FormatVersion, err)
		}
		if !supportedFormats.Check(v) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, v)
		}
	}

	db := model.NewDatabase(doc.Name, model.NewSchema(doc.Schema))
	db.Namespace = doc.Package
	var opts model.Options
	for _, o := range doc.Options {
		for _, opt := range optionKeys {
			if opt.key == o.Key {
				b, err := strconv.ParseBool(o.Value)
				if err != nil {
					return nil, fmt.Errorf("%w: option %s: %w", ErrCorruptSnapshot, o.Key, err)
				}
				*opt.get(&opts) = b
			}
		}
	}
	db.SetOptions(opts)

	for _, xt := range doc.Tables {
		t, err := decodeTable(db, xt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
		}
		if err := db.AddTable(t); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
		}
	}
	db.Link()
	return db, nil
}

func decodeTable(db *model.Database, xt xmlTable) (*model.Table, error) {
	schema := db.Schema
	if xt.Schema != "" {
		schema = model.NewSchema(xt.Schema)
	}
	t := model.NewTable(schema, xt.Name)
	t.Catalog = xt.Catalog
	t.Description = xt.Description

	for _, xc := range xt.Columns {
		typ := model.TypeOther
		if xc.Type != "" {
			var err error
			if typ, err = model.ParseColumnType(xc.Type); err != nil {
				return nil, fmt.Errorf("table %s: column %s: %w", xt.Name, xc.Name, err)
			}
		}
		c := model.NewColumn(xc.Name, typ)
		c.Description = xc.Description
		c.PrimaryKey = xc.PrimaryKey
		c.Nullable = !xc.Required
		c.Size = xc.Size
		c.Scale = xc.Scale
		c.Unique = xc.Unique
		c.NativeType = xc.NativeType
		if xc.GoType != "" {
			c.GoType = xc.GoType
		}
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}

	for _, xk := range xt.ForeignKeys {
		fk := model.NewForeignKey(xk.Name, model.Schema{Name: xk.ForeignSchema}, xk.ForeignTable)
		var err error
		if fk.OnDelete, err = decodeAction(xk.OnDelete); err != nil {
			return nil, fmt.Errorf("table %s: foreign key %s: %w", xt.Name, xk.Name, err)
		}
		if fk.OnUpdate, err = decodeAction(xk.OnUpdate); err != nil {
			return nil, fmt.Errorf("table %s: foreign key %s: %w", xt.Name, xk.Name, err)
		}
		for _, r := range xk.References {
			fk.AddReference(r.Local, r.Foreign)
		}
		if err := t.AddImportedKey(fk); err != nil {
			return nil, err
		}
	}

	for _, xi := range xt.Indices {
		var unique bool
		switch xi.XMLName.Local {
		case "index":
		case "unique":
			unique = true
		default:
			return nil, fmt.Errorf("table %s: unexpected element <%s>", xt.Name, xi.XMLName.Local)
		}
		cols := make([]string, len(xi.Columns))
		for n, xc := range xi.Columns {
			cols[n] = xc.Name
		}
		if err := t.AddIndex(model.NewIndex(xi.Name, unique, cols...)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func decodeAction(code string) (model.CascadeAction, error) {
	if code == "" {
		return model.None, nil
	}
	return model.ParseCascadeCode(code)
}

// Clone returns a deep copy of db made by encoding and decoding it. Only
// what the snapshot format records is copied; inference results such as
// the join-table flag are not.
func Clone(db *model.Database) (*model.Database, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, db); err != nil {
		return nil, err
	}
	return Decode(&buf)
}
