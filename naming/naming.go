// Package naming converts between database identifiers and Go type and
// field names.
package naming

import (
	"errors"
	"fmt"
	"go/token"
	"path"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

// ErrInvalidIdentifier is returned when a name cannot be turned into a
// valid Go identifier.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// predeclared holds Go's predeclared identifiers that would shadow
// builtins when used as generated type or field names.
var predeclared = map[string]bool{
	"any": true, "bool": true, "byte": true, "error": true, "string": true,
	"rune": true, "int": true, "uint": true, "float32": true, "float64": true,
	"nil": true, "true": true, "false": true, "iota": true, "len": true,
	"cap": true, "new": true, "make": true, "append": true, "copy": true,
}

// IsReserved reports whether name collides with a Go keyword or a
// predeclared identifier.
func IsReserved(name string) bool {
	return token.IsKeyword(name) || predeclared[name]
}

func isDelimiter(r rune) bool {
	switch r {
	case '_', '-', ' ', '.', '/', '\\':
		return true
	}
	return false
}

// convert applies the shared table/column algorithm. Delimiters introduce
// a capitalisation boundary, an upper-case letter following a lower-case
// one keeps its case, everything else is lower-cased.
func convert(name string, field bool) (string, error) {
	runes := []rune(strings.TrimSpace(name))
	var b strings.Builder
	boundary := false
	var prev rune
	for i, r := range runes {
		if isDelimiter(r) {
			boundary = b.Len() > 0
			prev = r
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidIdentifier, name, r)
		}
		switch {
		case b.Len() == 0:
			if unicode.IsDigit(r) {
				if field {
					b.WriteRune('f')
				} else {
					b.WriteRune('T')
				}
				b.WriteRune(r)
			} else if field {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
		case boundary:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(prev):
			b.WriteRune(r)
		default:
			b.WriteRune(unicode.ToLower(r))
		}
		boundary = false
		prev = r
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	out := b.String()
	if IsReserved(out) {
		out += "1"
	}
	return out, nil
}

// TableToTypeName converts a table name to an exported type name, e.g.
// "ORDER_ITEM" to "OrderItem".
func TableToTypeName(table string) (string, error) {
	return convert(table, false)
}

// ColumnToFieldName converts a column name to an unexported field name,
// e.g. "CUSTOMER_ID" to "customerId".
func ColumnToFieldName(column string) (string, error) {
	return convert(column, true)
}

// TypeToTableName is the lossy inverse of TableToTypeName: an underscore
// is inserted before each internal upper-case letter and the result is
// upper-cased.
func TypeToTableName(typeName string) string {
	var b strings.Builder
	for i, r := range typeName {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteRune('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Pluralize returns the plural form of word. Words the rule set cannot
// handle are returned unchanged.
func Pluralize(word string) (plural string) {
	if word == "" {
		return word
	}
	defer func() {
		if recover() != nil || plural == "" {
			plural = word
		}
	}()
	return inflect.Pluralize(word)
}

// SchemaPackage returns the sub-package a schema's types are placed in
// below base.
func SchemaPackage(base, schema string) (string, error) {
	name, err := convert(schema, true)
	if err != nil {
		return "", fmt.Errorf("schema %q: %w", schema, err)
	}
	name = strings.ToLower(name)
	if base == "" {
		return name, nil
	}
	return path.Join(base, name), nil
}
