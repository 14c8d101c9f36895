package repository

import (
	"context"
	"errors"
	"time"

	"github.com/build1/unityconfig/internal/buildinfo"
	"github.com/build1/unityconfig/internal/log"
	"github.com/build1/unityconfig/pkg/codec"
	"github.com/build1/unityconfig/pkg/configerr"
	"github.com/build1/unityconfig/pkg/decompose"
	"github.com/build1/unityconfig/pkg/firebase"
	"github.com/build1/unityconfig/pkg/settings"
)

// Remote runs one fetch session per load: apply client settings, fetch and
// activate, then decode the active values according to the settings mode.
type Remote[T any] struct {
	client   firebase.Client
	schema   *decompose.Schema[T]
	settings settings.Provider
	debug    bool
	single
}

var _ Repository[struct{}] = (*Remote[struct{}])(nil)

// RemoteOption configures a Remote.
type RemoteOption[T any] func(*Remote[T])

// WithSchema sets the field table used in decomposed mode.
func WithSchema[T any](schema *decompose.Schema[T]) RemoteOption[T] {
	return func(r *Remote[T]) { r.schema = schema }
}

// WithDebug makes every session refetch, ignoring the provider's minimum
// fetch interval. It defaults to buildinfo.Debug().
func WithDebug[T any](debug bool) RemoteOption[T] {
	return func(r *Remote[T]) { r.debug = debug }
}

// WithSettings sets the provider consulted by Load.
func WithSettings[T any](p settings.Provider) RemoteOption[T] {
	return func(r *Remote[T]) { r.settings = p }
}

// NewRemote returns a remote repository. A nil client means remote config
// is not available in this build.
func NewRemote[T any](client firebase.Client, opts ...RemoteOption[T]) *Remote[T] {
	r := &Remote[T]{client: client, debug: buildinfo.Debug()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Available reports whether a provider client is wired in.
func (r *Remote[T]) Available() bool { return r != nil && r.client != nil }

// Load implements Repository using the configured settings provider, or
// the defaults when none is set.
func (r *Remote[T]) Load(ctx context.Context) (T, error) {
	s := settings.Default()
	if r.settings != nil {
		s = r.settings.GetSettings()
	}
	return r.LoadWith(ctx, s)
}

// LoadWith runs a fetch session under the given settings snapshot.
func (r *Remote[T]) LoadWith(ctx context.Context, s settings.Settings) (T, error) {
	var zero T
	if r.client == nil {
		return zero, configerr.New(configerr.FirebaseRemoteConfigUnavailable, "no remote config client")
	}
	if err := r.enter("remote"); err != nil {
		return zero, err
	}
	defer r.leave()

	s = s.Effective()
	if err := r.client.SetConfigSettings(ctx, r.clientSettings(s)); err != nil {
		return zero, classify(err, "applying fetch settings")
	}
	changed, err := r.client.FetchAndActivate(ctx)
	if err != nil {
		return zero, classify(err, "fetch and activate")
	}
	values := r.client.AllValues()
	log.Debug("remote: activated", "changed", changed, "parameters", len(values), "mode", s.Mode.String())

	var (
		v    T
		cerr *configerr.Error
	)
	switch s.Mode {
	case settings.ModeDecomposed:
		v, cerr = r.decodeDecomposed(values)
	default:
		v, cerr = r.decodeParameter(values, s.ParameterName)
	}
	if cerr != nil {
		return zero, cerr
	}
	return v, nil
}

func (r *Remote[T]) clientSettings(s settings.Settings) firebase.ConfigSettings {
	cs := firebase.ConfigSettings{MinimumFetchInterval: firebase.DefaultMinimumFetchInterval}
	if s.FallbackEnabled && s.FallbackTimeout > 0 {
		cs.FetchTimeout = time.Duration(s.FallbackTimeout) * time.Millisecond
	}
	if r.debug {
		cs.MinimumFetchInterval = 0
	}
	return cs
}

func (r *Remote[T]) decodeParameter(values map[string]string, name string) (T, *configerr.Error) {
	var zero T
	raw, ok := values[name]
	if !ok {
		return zero, configerr.Newf(configerr.FieldNotFound, "key %q not found in remote config", name)
	}
	text := raw
	if !codec.LooksLikeJSONObject(raw) {
		unpacked, err := codec.Decompress(raw)
		if err != nil {
			return zero, configerr.Wrap(configerr.ParsingError, err, "decompressing parameter "+name)
		}
		text = unpacked
	}
	return decodeJSON[T](text, "parameter "+name)
}

func (r *Remote[T]) decodeDecomposed(values map[string]string) (T, *configerr.Error) {
	var zero T
	if r.schema == nil {
		return zero, configerr.New(configerr.ParsingError, "decomposed mode needs a schema")
	}
	if len(values) == 0 {
		return zero, configerr.New(configerr.FieldNotFound, "remote config has no parameters")
	}
	v, err := r.schema.Build(values)
	if err != nil {
		return zero, configerr.Wrap(configerr.ParsingError, err, "rebuilding decomposed config")
	}
	return v, nil
}

// classify maps a provider failure onto the config error kinds. Codes
// without a better match become Unknown.
func classify(err error, step string) *configerr.Error {
	if errors.Is(err, context.Canceled) {
		return configerr.Wrap(configerr.Unknown, err, step+" cancelled")
	}
	switch firebase.CodeOf(err) {
	case firebase.CodeNetwork, firebase.CodeTimeout, firebase.CodeThrottled:
		return configerr.Wrap(configerr.NetworkError, err, step)
	case firebase.CodeNotConfigured:
		return configerr.Wrap(configerr.FirebaseRemoteConfigUnavailable, err, step)
	case firebase.CodeInvalidResponse:
		return configerr.Wrap(configerr.ParsingError, err, step)
	default:
		return configerr.Wrap(configerr.Unknown, err, step)
	}
}
