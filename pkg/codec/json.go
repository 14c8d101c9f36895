// Package codec is the JSON and compression layer shared by repositories,
// the decomposed decoder and the workspace.
//
// JSON goes through github.com/goccy/go-json, which honours encoding/json
// struct tags; fields tagged omitempty are left out, which is how configs
// drop default values on save. Compression is gzip (klauspost/compress)
// wrapped in standard base64 so a payload fits in a remote string parameter.
package codec

import (
	"strings"

	json "github.com/goccy/go-json"
)

// Deserialized is implemented by config types that need to finish setup
// once every field has been populated.
type Deserialized interface {
	OnDeserialized()
}

// Marshal serializes v compactly.
func Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// MarshalIndent serializes v with two-space indentation.
func MarshalIndent(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

// Unmarshal parses data into v.
func Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Valid reports whether data is a well-formed JSON document.
func Valid(data []byte) bool { return json.Valid(data) }

// Decode parses text into a fresh T and runs its OnDeserialized hook.
func Decode[T any](text string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		var zero T
		return zero, err
	}
	Finish(&v)
	return v, nil
}

// Finish calls OnDeserialized on *v or v, whichever implements it.
func Finish[T any](v *T) {
	if h, ok := any(v).(Deserialized); ok {
		h.OnDeserialized()
		return
	}
	if h, ok := any(*v).(Deserialized); ok {
		h.OnDeserialized()
	}
}

// LooksLikeJSONObject is the cheap test used before decompressing a
// remote value: a bare object starts with '{' and ends with '}'.
func LooksLikeJSONObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

// LooksLikeJSON extends LooksLikeJSONObject to arrays.
func LooksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return LooksLikeJSONObject(s) || (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}
