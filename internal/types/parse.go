package types

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	real_regex = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

	// <int> <sign> <digits>i, blanks allowed around the sign
	complex_int_regex = regexp.MustCompile(`^([-+]?\d+)\s*([-+])\s*(\d+)i$`)
	// same shape with decimal components
	complex_real_regex = regexp.MustCompile(
		`^([-+]?\d+\.?\d*|[-+]?\d*\.?\d+)\s*([-+])\s*(\d+\.?\d*|\d*\.?\d+)i$`)
)

func parseString(t ColumnType, s string) (Payload, bool) {
	switch t {
	case ColumnTypeInt:
		return parseInt(s)
	case ColumnTypeReal:
		return parseReal(s)
	case ColumnTypeText:
		return parseText(s)
	case ColumnTypeChar:
		return parseChar(s)
	case ColumnTypeComplexInt:
		return parseComplexInt(s)
	case ColumnTypeComplexReal:
		return parseComplexReal(s)
	}
	return nil, false
}

func parseInt(s string) (Payload, bool) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return nil, false
	}
	return IntVal(i), true
}

func parseReal(s string) (Payload, bool) {
	s = strings.TrimSpace(s)
	if !real_regex.MatchString(s) {
		return nil, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return RealVal(f), true
}

// A leading and trailing " mark explicit quoting and are dropped.
func parseText(s string) (Payload, bool) {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return TextVal(s[1 : len(s)-1]), true
	}
	return TextVal(s), true
}

// Only the first code point is kept.
func parseChar(s string) (Payload, bool) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return nil, false
	}
	return CharVal(r), true
}

func parseComplexInt(s string) (Payload, bool) {
	match := complex_int_regex.FindStringSubmatch(s)
	if match == nil {
		return nil, false
	}

	re, err := strconv.ParseInt(match[1], 10, 32)
	if err != nil {
		return nil, false
	}
	im, err := strconv.ParseInt(match[2]+match[3], 10, 32)
	if err != nil {
		return nil, false
	}
	return ComplexVal(complex(float64(re), float64(im))), true
}

func parseComplexReal(s string) (Payload, bool) {
	match := complex_real_regex.FindStringSubmatch(s)
	if match == nil {
		return nil, false
	}

	re, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil, false
	}
	im, err := strconv.ParseFloat(match[2]+match[3], 64)
	if err != nil {
		return nil, false
	}
	return ComplexVal(complex(re, im)), true
}

func fromNative(t ColumnType, raw any) (Payload, bool) {
	switch t {
	case ColumnTypeInt:
		switch raw := raw.(type) {
		case IntVal:
			return raw, true
		case int32:
			return IntVal(raw), true
		case int:
			return intInRange(int64(raw))
		case int64:
			return intInRange(raw)
		}
	case ColumnTypeReal:
		switch raw := raw.(type) {
		case RealVal:
			return raw, true
		case float64:
			return RealVal(raw), true
		case float32:
			return RealVal(raw), true
		}
	case ColumnTypeText:
		switch raw := raw.(type) {
		case TextVal:
			return raw, true
		case string:
			return TextVal(raw), true
		case []byte:
			return TextVal(raw), true
		}
	case ColumnTypeChar:
		switch raw := raw.(type) {
		case CharVal:
			return raw, true
		case rune:
			return CharVal(raw), true
		}
	case ColumnTypeComplexInt:
		c, ok := nativeComplex(raw)
		if !ok || !isInt32(real(c)) || !isInt32(imag(c)) {
			return nil, false
		}
		return ComplexVal(c), true
	case ColumnTypeComplexReal:
		c, ok := nativeComplex(raw)
		if !ok {
			return nil, false
		}
		return ComplexVal(c), true
	}
	return nil, false
}

func nativeComplex(raw any) (complex128, bool) {
	switch raw := raw.(type) {
	case ComplexVal:
		return complex128(raw), true
	case complex128:
		return raw, true
	case complex64:
		return complex128(raw), true
	}
	return 0, false
}

func intInRange(i int64) (Payload, bool) {
	if i < math.MinInt32 || i > math.MaxInt32 {
		return nil, false
	}
	return IntVal(i), true
}

func isInt32(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32
}
