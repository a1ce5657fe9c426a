package parser

import "slices"

type FieldProp string

var VALID_BUILTIN_PROPS = []FieldProp{FieldPropOptional, FieldPropDefault, FieldPropKey}

const (
	FieldPropOptional FieldProp = "optional" // optional(true/false)
	FieldPropDefault  FieldProp = "default"
	FieldPropKey      FieldProp = "key" // key(primary)
)

func (p FieldProp) IsValid() bool {
	return slices.Contains(VALID_BUILTIN_PROPS, p)
}

const KeyPropPrimary string = "primary"
