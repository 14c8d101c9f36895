package repository

import (
	"context"
	"errors"
	"io/fs"

	"github.com/build1/unityconfig/pkg/configerr"
)

// Bundle reads <name>.json from the bundled resources.
type Bundle[T any] struct {
	resources fs.FS
	name      string
	single
}

var _ Repository[struct{}] = (*Bundle[struct{}])(nil)

// NewBundle returns a repository for the named resource.
func NewBundle[T any](resources fs.FS, name string) *Bundle[T] {
	return &Bundle[T]{resources: resources, name: name}
}

// Name returns the logical resource name.
func (b *Bundle[T]) Name() string { return b.name }

// ReadText returns the raw resource text.
func (b *Bundle[T]) ReadText() (string, error) {
	data, err := fs.ReadFile(b.resources, b.name+".json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", configerr.Newf(configerr.ResourceNotFound, "resource %q not found", b.name)
		}
		return "", configerr.Wrap(configerr.ResourceNotFound, err, "reading resource "+b.name)
	}
	return string(data), nil
}

// Load implements Repository.
func (b *Bundle[T]) Load(_ context.Context) (T, error) {
	var zero T
	if err := b.enter("bundle " + b.name); err != nil {
		return zero, err
	}
	defer b.leave()

	text, err := b.ReadText()
	if err != nil {
		return zero, err
	}
	v, perr := decodeJSON[T](text, "resource "+b.name)
	if perr != nil {
		return zero, perr
	}
	return v, nil
}
