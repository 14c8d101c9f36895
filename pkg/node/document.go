// Package node provides Document, a schema-less config tree for tools that
// handle configs without knowing the game's types: the CLI prints, stamps
// and splits them into remote parameters.
package node

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/build1/unityconfig/pkg/codec"
	"github.com/build1/unityconfig/pkg/decompose"
)

// Document is a config tree decoded from JSON. Top-level keys other than
// MetadataKey are sections.
type Document map[string]any

// Parse decodes a JSON object into a Document.
func Parse(text string) (Document, error) {
	d, err := codec.Decode[Document](text)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("config document must be a JSON object")
	}
	return d, nil
}

// JSON encodes the document, indented when asked.
func (d Document) JSON(indented bool) ([]byte, error) {
	if indented {
		return codec.MarshalIndent(d)
	}
	return codec.Marshal(d)
}

// Sections returns the section keys in sorted order.
func (d Document) Sections() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		if k != MetadataKey {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Metadata returns the document's metadata block, if it has one.
func (d Document) Metadata() (*Metadata, error) {
	raw, ok := d[MetadataKey]
	if !ok || raw == nil {
		return nil, nil
	}
	if m, ok := raw.(*Metadata); ok {
		return m, nil
	}
	data, err := codec.Marshal(raw)
	if err != nil {
		return nil, err
	}
	m, err := codec.Decode[*Metadata](string(data))
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	return m, nil
}

// Touch stamps the metadata block with author and now, creating it when
// missing and keeping any note.
func (d Document) Touch(author string, now time.Time) error {
	m, err := d.Metadata()
	if err != nil {
		return err
	}
	if m == nil {
		m = &Metadata{}
	}
	m.Update(author, now)
	d[MetadataKey] = m
	return nil
}

// ClearMetadata drops the metadata block.
func (d Document) ClearMetadata() { delete(d, MetadataKey) }

// Decompose flattens the document into remote parameters, one per section.
// Scalars are written as text; objects and arrays as JSON, compressed when
// compress is set. The metadata block is not exported.
func (d Document) Decompose(compress bool) (map[string]string, error) {
	out := make(map[string]string, len(d))
	for _, k := range d.Sections() {
		s, err := scalarText(d[k])
		if errors.Is(err, errNotScalar) {
			data, merr := codec.Marshal(d[k])
			if merr != nil {
				return nil, fmt.Errorf("section %q: %w", k, merr)
			}
			s = string(data)
			if compress {
				if s, err = codec.Compress(s); err != nil {
					return nil, fmt.Errorf("section %q: %w", k, err)
				}
			}
		} else if err != nil {
			return nil, fmt.Errorf("section %q: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

var errNotScalar = errors.New("not a scalar")

func scalarText(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case bool:
		return strconv.FormatBool(x), nil
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return "", fmt.Errorf("%v is not representable", x)
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", errNotScalar
	}
}

// Schema rebuilds a Document from decomposed remote parameters. Every key
// becomes a section holding the classified value.
func Schema() *decompose.Schema[Document] {
	return decompose.NewSchema[Document]().WithRest(func(d *Document, key string, v decompose.Value) error {
		if *d == nil {
			*d = Document{}
		}
		(*d)[key] = v.Any()
		return nil
	})
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document { return maps.Clone(d) }
