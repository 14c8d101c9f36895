// Package repository provides the three origins a config can be loaded
// from: a bundled resource, the on-disk cache of the last remote config,
// and the remote provider. Every failure is returned as a *configerr.Error.
package repository

import (
	"context"
	"strings"

	"go.uber.org/atomic"

	"github.com/build1/unityconfig/pkg/codec"
	"github.com/build1/unityconfig/pkg/configerr"
)

const (
	// PrimaryName is the bundled resource holding the published local config.
	PrimaryName = "config"
	// FallbackName is the bundled resource served when remote loading fails.
	FallbackName = "config_fallback"
)

// Repository loads a config of type T from one origin.
type Repository[T any] interface {
	Load(ctx context.Context) (T, error)
}

// LoadAsync runs r.Load on a new goroutine and reports the outcome to
// exactly one of the callbacks.
func LoadAsync[T any](ctx context.Context, r Repository[T], onComplete func(T), onError func(*configerr.Error)) {
	go func() {
		v, err := r.Load(ctx)
		if err != nil {
			onError(configerr.From(err))
			return
		}
		onComplete(v)
	}()
}

// single guards a repository against overlapping loads. A second load while
// one is outstanding fails instead of sharing state with the first.
type single struct {
	busy atomic.Bool
}

func (s *single) enter(origin string) *configerr.Error {
	if !s.busy.CompareAndSwap(false, true) {
		return configerr.Newf(configerr.Unknown, "%s: load already in progress", origin)
	}
	return nil
}

func (s *single) leave() { s.busy.Store(false) }

// decodeJSON decodes a config document. A null root is rejected so an empty
// document never passes for a loaded config.
func decodeJSON[T any](text, origin string) (T, *configerr.Error) {
	if strings.TrimSpace(text) == "null" {
		var zero T
		return zero, configerr.New(configerr.ParsingError, origin+": document is null")
	}
	v, err := codec.Decode[T](text)
	if err != nil {
		var zero T
		return zero, configerr.Wrap(configerr.ParsingError, err, origin+": "+text)
	}
	return v, nil
}
