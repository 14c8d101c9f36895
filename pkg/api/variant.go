package api

import (
	"context"

	"github.com/build1/unityconfig/pkg/codec"
	"github.com/build1/unityconfig/pkg/node"
	"github.com/build1/unityconfig/pkg/settings"
)

// VariantReader reads a variant document by name.
type VariantReader interface {
	Read(name string) ([]byte, error)
}

// Layout describes how a variant is laid out as remote parameters.
type Layout struct {
	Mode      settings.Mode
	Parameter string
	Compress  bool
}

// VariantSource serves a workspace variant. The variant is read on every
// fetch, so edits show up on the next client fetch.
func VariantSource(r VariantReader, name string, l Layout) Source {
	if l.Parameter == "" {
		l.Parameter = settings.DefaultParameterName
	}
	return SourceFunc(func(_ context.Context) (map[string]string, error) {
		data, err := r.Read(name)
		if err != nil {
			return nil, err
		}
		doc, err := node.Parse(string(data))
		if err != nil {
			return nil, err
		}
		if l.Mode == settings.ModeDecomposed {
			return doc.Decompose(l.Compress)
		}
		text, err := doc.JSON(false)
		if err != nil {
			return nil, err
		}
		value := string(text)
		if l.Compress {
			if value, err = codec.Compress(value); err != nil {
				return nil, err
			}
		}
		return map[string]string{l.Parameter: value}, nil
	})
}
