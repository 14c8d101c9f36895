package decompose

import (
	"fmt"
	"math"
	"sort"

	"github.com/build1/unityconfig/pkg/codec"
)

// Field describes one settable field of T and the remote key it is read from.
type Field[T any] struct {
	Key  string
	Kind Kind
	set  func(*T, Value) error
}

// Bool binds key to a bool field.
func Bool[T any](key string, field func(*T) *bool) Field[T] {
	return Field[T]{Key: key, Kind: KindBool, set: func(t *T, v Value) error {
		b, err := v.AsBool()
		if err != nil {
			return err
		}
		*field(t) = b
		return nil
	}}
}

// Int binds key to an int field.
func Int[T any](key string, field func(*T) *int) Field[T] {
	return Field[T]{Key: key, Kind: KindInt, set: func(t *T, v Value) error {
		n, err := v.AsInt()
		if err != nil {
			return err
		}
		if n > math.MaxInt || n < math.MinInt {
			return fmt.Errorf("%d overflows int", n)
		}
		*field(t) = int(n)
		return nil
	}}
}

// Int64 binds key to an int64 field.
func Int64[T any](key string, field func(*T) *int64) Field[T] {
	return Field[T]{Key: key, Kind: KindInt, set: func(t *T, v Value) error {
		n, err := v.AsInt()
		if err != nil {
			return err
		}
		*field(t) = n
		return nil
	}}
}

// Float binds key to a float64 field.
func Float[T any](key string, field func(*T) *float64) Field[T] {
	return Field[T]{Key: key, Kind: KindFloat, set: func(t *T, v Value) error {
		f, err := v.AsFloat()
		if err != nil {
			return err
		}
		*field(t) = f
		return nil
	}}
}

// String binds key to a string field.
func String[T any](key string, field func(*T) *string) Field[T] {
	return Field[T]{Key: key, Kind: KindString, set: func(t *T, v Value) error {
		*field(t) = v.AsString()
		return nil
	}}
}

// JSON binds key to a field of any JSON-decodable type F. The remote value
// (after decompression) is decoded into a fresh F.
func JSON[T, F any](key string, field func(*T) *F) Field[T] {
	return Field[T]{Key: key, Kind: KindString, set: func(t *T, v Value) error {
		f, err := codec.Decode[F](v.AsString())
		if err != nil {
			return err
		}
		*field(t) = f
		return nil
	}}
}

// Schema is the field-descriptor table of T, built once and reused for
// every load.
type Schema[T any] struct {
	fields map[string]Field[T]
	rest   func(*T, string, Value) error
}

// NewSchema builds a schema. Duplicate keys panic: the table is static and
// a duplicate is a programming error.
func NewSchema[T any](fields ...Field[T]) *Schema[T] {
	s := &Schema[T]{fields: make(map[string]Field[T], len(fields))}
	for _, f := range fields {
		if _, dup := s.fields[f.Key]; dup {
			panic(fmt.Sprintf("decompose: duplicate key %q", f.Key))
		}
		s.fields[f.Key] = f
	}
	return s
}

// WithRest installs a catch-all for keys without a field. Without one,
// unknown keys are ignored.
func (s *Schema[T]) WithRest(rest func(t *T, key string, v Value) error) *Schema[T] {
	s.rest = rest
	return s
}

// Keys returns the bound remote keys in sorted order.
func (s *Schema[T]) Keys() []string {
	keys := make([]string, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Classify turns raw remote values into the intermediate key→Value map.
func Classify(values map[string]string) map[string]Value {
	out := make(map[string]Value, len(values))
	for k, raw := range values {
		out[k] = ClassifyValue(raw)
	}
	return out
}

// Build classifies values and populates a fresh T. Keys are applied in
// sorted order so the same input always yields the same result and the same
// error. OnDeserialized runs once all fields are set.
func (s *Schema[T]) Build(values map[string]string) (T, error) {
	var t T
	classified := Classify(values)
	keys := make([]string, 0, len(classified))
	for k := range classified {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := classified[k]
		if f, ok := s.fields[k]; ok {
			if err := f.set(&t, v); err != nil {
				var zero T
				return zero, fmt.Errorf("field %q (%s): %w", k, f.Kind, err)
			}
			continue
		}
		if s.rest != nil {
			if err := s.rest(&t, k, v); err != nil {
				var zero T
				return zero, fmt.Errorf("field %q: %w", k, err)
			}
		}
	}
	codec.Finish(&t)
	return t, nil
}
