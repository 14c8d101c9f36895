// Package decompose rebuilds a config from a flat set of remote parameters,
// one parameter per field.
//
// Remote parameters are untyped strings, so every value is first sniffed
// into a scalar Kind by shape: booleans, then integers, then floats, then
// strings. This is a heuristic, not a schema. A string field whose value is
// literally "true" or "42" is classified as a bool or an int; typed setters
// in Schema coerce back to the declared field type from the raw text, so
// the misclassification only matters for catch-all (WithRest) fields. Values of
// StringThreshold characters or more always take the string branch.
package decompose

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/build1/unityconfig/pkg/codec"
)

// StringThreshold is the length from which a value is never treated as a scalar.
const StringThreshold = 24

// Kind is the sniffed type of a remote value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

var (
	intPattern   = regexp.MustCompile(`^[+-]?[0-9]+$`)
	floatPattern = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)

	trueWords  = map[string]struct{}{"true": {}, "t": {}, "yes": {}, "y": {}, "on": {}, "1": {}}
	falseWords = map[string]struct{}{"false": {}, "f": {}, "no": {}, "n": {}, "off": {}, "0": {}, "": {}}
)

// Value is one classified remote parameter. Raw always holds the original
// text; Str holds the string payload after optional decompression.
type Value struct {
	Kind  Kind
	Raw   string
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// ClassifyValue sniffs raw into a Value. It is deterministic: the same input
// always yields the same Value.
func ClassifyValue(raw string) Value {
	if len(raw) >= StringThreshold {
		return stringValue(raw)
	}
	lower := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := trueWords[lower]; ok {
		return Value{Kind: KindBool, Raw: raw, Bool: true}
	}
	if _, ok := falseWords[lower]; ok {
		return Value{Kind: KindBool, Raw: raw, Bool: false}
	}
	if intPattern.MatchString(lower) {
		if n, err := strconv.ParseInt(lower, 10, 64); err == nil {
			return Value{Kind: KindInt, Raw: raw, Int: n}
		}
	}
	if floatPattern.MatchString(lower) {
		if f, err := strconv.ParseFloat(lower, 64); err == nil {
			return Value{Kind: KindFloat, Raw: raw, Float: f}
		}
	}
	return stringValue(raw)
}

// stringValue keeps JSON verbatim and unpacks compressed payloads. Text
// that neither looks like JSON nor decompresses is kept as is.
func stringValue(raw string) Value {
	v := Value{Kind: KindString, Raw: raw, Str: raw}
	if codec.LooksLikeJSON(raw) {
		return v
	}
	if s, err := codec.Decompress(raw); err == nil {
		v.Str = s
	}
	return v
}

// Any returns the natural Go value: bool, int64, float64 or string. JSON
// strings are parsed into maps and slices.
func (v Value) Any() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	}
	if codec.LooksLikeJSON(v.Str) {
		var out any
		if err := codec.Unmarshal([]byte(v.Str), &out); err == nil {
			return out
		}
	}
	return v.Str
}

// AsBool coerces the value to a bool.
func (v Value) AsBool() (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.Bool, nil
	case KindInt:
		return v.Int != 0, nil
	case KindFloat:
		return v.Float != 0, nil
	}
	return strconv.ParseBool(strings.TrimSpace(v.Str))
}

// AsInt coerces the value to an int64.
func (v Value) AsInt() (int64, error) {
	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindBool:
		// "0", "1" and "" sniff as bools.
		if strings.TrimSpace(v.Raw) == "" {
			return 0, nil
		}
		return strconv.ParseInt(strings.TrimSpace(v.Raw), 10, 64)
	case KindFloat:
		if v.Float == float64(int64(v.Float)) {
			return int64(v.Float), nil
		}
	}
	return strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
}

// AsFloat coerces the value to a float64.
func (v Value) AsFloat() (float64, error) {
	switch v.Kind {
	case KindFloat:
		return v.Float, nil
	case KindInt:
		return float64(v.Int), nil
	case KindBool:
		if strings.TrimSpace(v.Raw) == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
	}
	return strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
}

// AsString returns the text of the value: the decompressed payload for
// strings, the original text otherwise.
func (v Value) AsString() string {
	if v.Kind == KindString {
		return v.Str
	}
	return v.Raw
}
