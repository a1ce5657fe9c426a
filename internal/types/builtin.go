package types

import (
	"slices"
	"strings"
)

var VALID_BUILTIN_TYPES = []ColumnType{
	ColumnTypeInt, ColumnTypeReal, ColumnTypeText,
	ColumnTypeChar, ColumnTypeComplexInt, ColumnTypeComplexReal,
}

type ColumnType string

const (
	ColumnTypeInt         ColumnType = "Int"
	ColumnTypeReal        ColumnType = "Real"
	ColumnTypeText        ColumnType = "Text"
	ColumnTypeChar        ColumnType = "Char"
	ColumnTypeComplexInt  ColumnType = "ComplexInt"
	ColumnTypeComplexReal ColumnType = "ComplexReal"
)

// canonical (uppercase) declared type name -> column type
var type_mappings = map[string]ColumnType{
	"INT":         ColumnTypeInt,
	"REAL":        ColumnTypeReal,
	"TEXT":        ColumnTypeText,
	"CHAR":        ColumnTypeChar,
	"COMPLEXINT":  ColumnTypeComplexInt,
	"COMPLEXREAL": ColumnTypeComplexReal,
}

// Resolve looks a declared type name up, ignoring case.
func Resolve(name string) (ColumnType, bool) {
	t, ok := type_mappings[strings.ToUpper(strings.TrimSpace(name))]
	return t, ok
}

// AvailableTypeNames lists the display names offered to clients when creating columns.
func AvailableTypeNames() []string {
	names := make([]string, len(VALID_BUILTIN_TYPES))
	for i, t := range VALID_BUILTIN_TYPES {
		names[i] = string(t)
	}
	return names
}

func (t ColumnType) IsValid() bool {
	return slices.Contains(VALID_BUILTIN_TYPES, t)
}

func (t ColumnType) Name() string { return string(t) }

// Empty returns a value of type t holding no payload. A non-nullable empty
// value is only a parse target; it must not be persisted before a successful
// ParseString or SetFromObject.
func (t ColumnType) Empty(nullable bool) *Value {
	return &Value{typ: t, nullable: nullable}
}

// Instance builds a value of type t from raw: a native value of the matching
// kind, a string to parse, or nil. The value is returned even when ok is false,
// in which case it holds no payload.
func (t ColumnType) Instance(raw any, nullable bool) (v *Value, ok bool) {
	v = t.Empty(nullable)
	ok = v.SetFromObject(raw)
	return v, ok
}
