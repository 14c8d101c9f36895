// Package loader resolves the config a game starts with. Given the settings
// snapshot it decides between the remote provider, the on-disk cache of the
// last remote config and the bundled fallback, applies the cache policy, and
// classifies every failure as a *configerr.Error.
//
// The decision tree for a remote source:
//
//	fast loading:  cache or fallback now, refresh remote in the background
//	otherwise:     remote, then cache or fallback on NetworkError/ParsingError
//
// Cache or fallback reads the cache (when enabled) and escalates to the
// bundled fallback once, on ResourceNotFound or ParsingError.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/build1/unityconfig/internal/log"
	"github.com/build1/unityconfig/pkg/configerr"
	"github.com/build1/unityconfig/pkg/repository"
	"github.com/build1/unityconfig/pkg/settings"
)

// ErrNoBundle is returned by New when neither resources nor explicit
// primary and fallback repositories are given.
var ErrNoBundle = errors.New("loader: bundled resources are required")

// State is the phase of the most recent load request.
type State int32

const (
	Idle State = iota
	Resolving
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Cache is a repository that can also store the last remote config.
type Cache[T any] interface {
	repository.Repository[T]
	Save(ctx context.Context, v T) error
}

// Remote runs one fetch session under a settings snapshot.
type Remote[T any] interface {
	LoadWith(ctx context.Context, s settings.Settings) (T, error)
}

// Options wires a Loader. Resources provides the primary and fallback
// bundles unless Primary or Fallback override them. A nil Remote means the
// remote provider is not part of this build.
type Options[T any] struct {
	Settings  settings.Provider
	Resources fs.FS
	Primary   repository.Repository[T]
	Fallback  repository.Repository[T]
	Cache     Cache[T]
	Remote    Remote[T]
}

// Loader is the resolution engine. It is safe for concurrent use; each
// request works on its own settings snapshot and the only state shared
// between requests is the cache file.
type Loader[T any] struct {
	settings settings.Provider
	primary  repository.Repository[T]
	fallback repository.Repository[T]
	cache    Cache[T]
	remote   Remote[T]

	state  atomic.Int32
	closed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	bg     errgroup.Group
	calls  sync.WaitGroup
}

// New returns a Loader.
func New[T any](o Options[T]) (*Loader[T], error) {
	primary, fallback := o.Primary, o.Fallback
	if o.Resources != nil {
		if primary == nil {
			primary = repository.NewBundle[T](o.Resources, repository.PrimaryName)
		}
		if fallback == nil {
			fallback = repository.NewBundle[T](o.Resources, repository.FallbackName)
		}
	}
	if primary == nil || fallback == nil {
		return nil, ErrNoBundle
	}
	provider := o.Settings
	if provider == nil {
		provider = settings.Static(settings.Default())
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader[T]{
		settings: provider,
		primary:  primary,
		fallback: fallback,
		cache:    o.Cache,
		remote:   o.Remote,
		ctx:      ctx,
		cancel:   cancel,
	}
	// One background refresh at a time; a fast load that finds one running
	// does not start another.
	l.bg.SetLimit(1)
	return l, nil
}

// State returns the phase of the most recent request.
func (l *Loader[T]) State() State { return State(l.state.Load()) }

// Load resolves a config. The returned error, if any, is a *configerr.Error.
func (l *Loader[T]) Load(ctx context.Context) (T, error) {
	var zero T
	if l.closed.Load() {
		return zero, configerr.New(configerr.Unknown, "loader closed")
	}

	lg := log.With("request", uuid.NewString())
	l.state.Store(int32(Resolving))

	v, cerr := l.resolve(ctx, lg)
	if cerr != nil {
		l.state.Store(int32(Failed))
		lg.Warnw("loader: failed", "kind", cerr.Kind.String(), "error", cerr.Error())
		return zero, cerr
	}
	l.state.Store(int32(Succeeded))
	lg.Infow("loader: resolved")
	return v, nil
}

// LoadConfig resolves a config on a new goroutine and reports the outcome
// to exactly one of the callbacks.
func (l *Loader[T]) LoadConfig(ctx context.Context, onComplete func(T), onError func(*configerr.Error)) {
	l.calls.Add(1)
	repository.LoadAsync[T](ctx, l,
		func(v T) {
			defer l.calls.Done()
			onComplete(v)
		},
		func(e *configerr.Error) {
			defer l.calls.Done()
			onError(e)
		})
}

// Wait blocks until pending LoadConfig callbacks and background refreshes
// have finished.
func (l *Loader[T]) Wait() {
	l.calls.Wait()
	_ = l.bg.Wait()
}

// Close cancels background refreshes and waits for them. Loads after Close
// fail.
func (l *Loader[T]) Close() {
	l.closed.Store(true)
	l.cancel()
	l.Wait()
}

func (l *Loader[T]) resolve(ctx context.Context, lg *zap.SugaredLogger) (T, *configerr.Error) {
	var zero T
	s := l.settings.GetSettings().Effective()
	lg = lg.With("source", s.Source)

	if !s.IsRemote() {
		lg.Debugw("loader: local source")
		return l.load(ctx, l.primary)
	}
	if !l.remoteAvailable() {
		return zero, configerr.New(configerr.FirebaseRemoteConfigUnavailable, "remote config is not available in this build")
	}

	if s.FastLoadingEnabled {
		v, cerr := l.cacheOrFallback(ctx, s, lg)
		l.refresh(s, lg)
		return v, cerr
	}

	v, err := l.remote.LoadWith(ctx, s)
	if err == nil {
		l.save(ctx, s, v, lg)
		return v, nil
	}
	cerr := configerr.From(err)
	if s.FallbackEnabled && (cerr.Kind == configerr.NetworkError || cerr.Kind == configerr.ParsingError) {
		lg.Infow("loader: remote failed, falling back", "kind", cerr.Kind.String(), "error", cerr.Error())
		return l.cacheOrFallback(ctx, s, lg)
	}
	return zero, cerr
}

// cacheOrFallback serves the cached remote config, escalating to the
// bundled fallback at most once.
func (l *Loader[T]) cacheOrFallback(ctx context.Context, s settings.Settings, lg *zap.SugaredLogger) (T, *configerr.Error) {
	if !s.CacheEnabled || l.cache == nil {
		return l.load(ctx, l.fallback)
	}
	v, cerr := l.load(ctx, l.cache)
	if cerr == nil {
		lg.Debugw("loader: served from cache")
		return v, nil
	}
	switch cerr.Kind {
	case configerr.ResourceNotFound, configerr.ParsingError:
		lg.Debugw("loader: cache unusable, serving bundled fallback", "kind", cerr.Kind.String())
		return l.load(ctx, l.fallback)
	default:
		return v, cerr
	}
}

// refresh fetches the remote config in the background and writes it to the
// cache. Nothing it does reaches the caller.
func (l *Loader[T]) refresh(s settings.Settings, lg *zap.SugaredLogger) {
	started := l.bg.TryGo(func() error {
		v, err := l.remote.LoadWith(l.ctx, s)
		if err != nil {
			lg.Warnw("loader: background refresh failed", "error", err.Error())
			return nil
		}
		l.save(l.ctx, s, v, lg)
		return nil
	})
	if !started {
		lg.Debugw("loader: background refresh already running")
	}
}

func (l *Loader[T]) save(ctx context.Context, s settings.Settings, v T, lg *zap.SugaredLogger) {
	if !s.CacheEnabled || l.cache == nil {
		return
	}
	if err := l.cache.Save(ctx, v); err != nil {
		lg.Warnw("loader: cache write failed", "error", err.Error())
		return
	}
	lg.Debugw("loader: cache updated")
}

func (l *Loader[T]) load(ctx context.Context, r repository.Repository[T]) (T, *configerr.Error) {
	v, err := r.Load(ctx)
	if err != nil {
		return v, configerr.From(err)
	}
	return v, nil
}

func (l *Loader[T]) remoteAvailable() bool {
	if l.remote == nil {
		return false
	}
	if a, ok := l.remote.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}
