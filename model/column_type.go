package model

import (
	"fmt"
	"strings"
)

// ColumnType is the logical SQL type of a column.
type ColumnType int

const (
	TypeOther ColumnType = iota
	TypeBit
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeFloat
	TypeReal
	TypeDouble
	TypeNumeric
	TypeDecimal
	TypeChar
	TypeVarchar
	TypeLongVarchar
	TypeDate
	TypeTime
	TypeTimestamp
	TypeBinary
	TypeVarbinary
	TypeLongVarbinary
	TypeNull
	TypeObject
	TypeDistinct
	TypeStruct
	TypeArray
	TypeBlob
	TypeClob
	TypeRef
	TypeDatalink
	TypeBoolean
	TypeRowID
	TypeNChar
	TypeNVarchar
	TypeLongNVarchar
	TypeNClob
	TypeSQLXML
	TypeTimeWithTimezone
	TypeTimestampWithTimezone
)

type columnTypeInfo struct {
	name   string
	code   int
	goType string
}

// columnTypes maps each logical type to its symbolic name, standard SQL
// type code and the Go type used for generated fields.
var columnTypes = map[ColumnType]columnTypeInfo{
	TypeOther:                 {"OTHER", 1111, "any"},
	TypeBit:                   {"BIT", -7, "bool"},
	TypeTinyInt:               {"TINYINT", -6, "int8"},
	TypeSmallInt:              {"SMALLINT", 5, "int16"},
	TypeInteger:               {"INTEGER", 4, "int32"},
	TypeBigInt:                {"BIGINT", -5, "int64"},
	TypeFloat:                 {"FLOAT", 6, "float64"},
	TypeReal:                  {"REAL", 7, "float32"},
	TypeDouble:                {"DOUBLE", 8, "float64"},
	TypeNumeric:               {"NUMERIC", 2, "float64"},
	TypeDecimal:               {"DECIMAL", 3, "float64"},
	TypeChar:                  {"CHAR", 1, "string"},
	TypeVarchar:               {"VARCHAR", 12, "string"},
	TypeLongVarchar:           {"LONGVARCHAR", -1, "string"},
	TypeDate:                  {"DATE", 91, "time.Time"},
	TypeTime:                  {"TIME", 92, "time.Time"},
	TypeTimestamp:             {"TIMESTAMP", 93, "time.Time"},
	TypeBinary:                {"BINARY", -2, "[]byte"},
	TypeVarbinary:             {"VARBINARY", -3, "[]byte"},
	TypeLongVarbinary:         {"LONGVARBINARY", -4, "[]byte"},
	TypeNull:                  {"NULL", 0, "any"},
	TypeObject:                {"JAVA_OBJECT", 2000, "any"},
	TypeDistinct:              {"DISTINCT", 2001, "any"},
	TypeStruct:                {"STRUCT", 2002, "any"},
	TypeArray:                 {"ARRAY", 2003, "[]any"},
	TypeBlob:                  {"BLOB", 2004, "[]byte"},
	TypeClob:                  {"CLOB", 2005, "string"},
	TypeRef:                   {"REF", 2006, "any"},
	TypeDatalink:              {"DATALINK", 70, "string"},
	TypeBoolean:               {"BOOLEAN", 16, "bool"},
	TypeRowID:                 {"ROWID", -8, "string"},
	TypeNChar:                 {"NCHAR", -15, "string"},
	TypeNVarchar:              {"NVARCHAR", -9, "string"},
	TypeLongNVarchar:          {"LONGNVARCHAR", -16, "string"},
	TypeNClob:                 {"NCLOB", 2011, "string"},
	TypeSQLXML:                {"SQLXML", 2009, "string"},
	TypeTimeWithTimezone:      {"TIME_WITH_TIMEZONE", 2013, "time.Time"},
	TypeTimestampWithTimezone: {"TIMESTAMP_WITH_TIMEZONE", 2014, "time.Time"},
}

var (
	columnTypesByName = make(map[string]ColumnType, len(columnTypes))
	columnTypesByCode = make(map[int]ColumnType, len(columnTypes))
)

func init() {
	for t, info := range columnTypes {
		columnTypesByName[info.name] = t
		columnTypesByCode[info.code] = t
	}
}

// String returns the symbolic name, e.g. "VARCHAR".
func (t ColumnType) String() string {
	if info, ok := columnTypes[t]; ok {
		return info.name
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// Code returns the standard SQL type code.
func (t ColumnType) Code() int {
	return columnTypes[t].code
}

// GoType returns the Go type generated fields of this type use.
func (t ColumnType) GoType() string {
	if info, ok := columnTypes[t]; ok {
		return info.goType
	}
	return "any"
}

// IsInteger reports whether values of t are whole numbers.
func (t ColumnType) IsInteger() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt:
		return true
	default:
		return false
	}
}

// ParseColumnType resolves a symbolic type name.
func ParseColumnType(name string) (ColumnType, error) {
	t, ok := columnTypesByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return TypeOther, fmt.Errorf("%w: %q", ErrUnknownColumnType, name)
	}
	return t, nil
}

// ColumnTypeForCode resolves a standard SQL type code. Unknown codes map
// to TypeOther.
func ColumnTypeForCode(code int) ColumnType {
	if t, ok := columnTypesByCode[code]; ok {
		return t
	}
	return TypeOther
}
