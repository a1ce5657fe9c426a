package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Payload is the native content of a non-null Value. The set of
// implementations is closed: IntVal, RealVal, TextVal, CharVal and ComplexVal.
type Payload interface{ isPayload() }

type (
	IntVal     int32
	RealVal    float64
	TextVal    string
	CharVal    rune
	ComplexVal complex128
)

func (IntVal) isPayload()     {}
func (RealVal) isPayload()    {}
func (TextVal) isPayload()    {}
func (CharVal) isPayload()    {}
func (ComplexVal) isPayload() {}

// Value is a cell bound to one column type. A nil payload is the null state.
type Value struct {
	typ      ColumnType
	nullable bool
	data     Payload
}

func (v *Value) Type() ColumnType { return v.typ }
func (v *Value) IsNullable() bool { return v.nullable }
func (v *Value) IsNull() bool     { return v.data == nil }
func (v *Value) Native() Payload  { return v.data }

func (v *Value) Clone() *Value {
	c := *v
	return &c
}

// Equal compares the native payloads of two values of the same type.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v.typ == other.typ && v.data == other.data
}

func (v *Value) setNull() bool {
	if !v.nullable {
		return false
	}
	v.data = nil
	return true
}

// SetFromObject replaces the payload with raw. Strings are parsed with
// ParseString, except for Text where they are taken verbatim. On failure the
// previous payload is kept.
func (v *Value) SetFromObject(raw any) bool {
	if raw == nil {
		return v.setNull()
	}
	if s, ok := raw.(string); ok && v.typ != ColumnTypeText {
		return v.ParseString(s)
	}

	p, ok := fromNative(v.typ, raw)
	if !ok {
		return false
	}
	v.data = p
	return true
}

// ParseString is the validation entry point for wire-level strings.
// An empty string or the token null (any case) clears the value when it is
// nullable. On failure the previous payload is kept.
func (v *Value) ParseString(s string) bool {
	if len(s) == 0 || strings.EqualFold(s, "null") {
		return v.setNull()
	}

	p, ok := parseString(v.typ, s)
	if !ok {
		return false
	}
	v.data = p
	return true
}

// StringValue is the display form.
func (v *Value) StringValue() string {
	switch p := v.data.(type) {
	case nil:
		return "null"
	case IntVal:
		return strconv.FormatInt(int64(p), 10)
	case RealVal:
		return formatReal(float64(p))
	case TextVal:
		return `"` + string(p) + `"`
	case CharVal:
		return string(rune(p))
	case ComplexVal:
		return formatComplex(v.typ, complex128(p))
	}
	panic(fmt.Sprintf("unhandled payload %T", v.data))
}

// ObjectValue is the form handed to the store. The store has no complex
// type, so complex values are stored as their display string.
func (v *Value) ObjectValue() any {
	switch p := v.data.(type) {
	case nil:
		return nil
	case IntVal:
		return int64(p)
	case RealVal:
		return float64(p)
	case TextVal:
		return string(p)
	case CharVal:
		return string(rune(p))
	case ComplexVal:
		return formatComplex(v.typ, complex128(p))
	}
	panic(fmt.Sprintf("unhandled payload %T", v.data))
}

func (v *Value) String() string { return v.StringValue() }

func (v *Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		IsNullable  bool   `json:"isNullable"`
		StringValue string `json:"stringValue"`
		ObjectValue any    `json:"objectValue"`
		IsNull      bool   `json:"isNull"`
	}{v.nullable, v.StringValue(), v.ObjectValue(), v.IsNull()})
}

func formatReal(f float64) string {
	abs := math.Abs(f)
	if abs >= 1e21 || (abs != 0 && abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatComplex renders {real}{+ when imag >= 0}{imag}i. Negative zero is
// printed as zero so the output always parses back.
func formatComplex(t ColumnType, c complex128) string {
	re, im := real(c), imag(c)
	if re == 0 {
		re = 0
	}
	if im == 0 {
		im = 0
	}

	sign := ""
	if im >= 0 {
		sign = "+"
	}

	if t == ColumnTypeComplexInt {
		return fmt.Sprintf("%d%s%di", int64(re), sign, int64(im))
	}
	return strconv.FormatFloat(re, 'f', -1, 64) + sign + strconv.FormatFloat(im, 'f', -1, 64) + "i"
}
