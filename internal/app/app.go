// Package app is the composition root: it turns the tool configuration into
// one wired loader, workspace and cache. Only one App may exist per process.
package app

import (
	"errors"
	"net/http"
	"os"

	"go.uber.org/atomic"

	"github.com/build1/unityconfig/internal/buildinfo"
	"github.com/build1/unityconfig/internal/config"
	"github.com/build1/unityconfig/internal/filesys"
	"github.com/build1/unityconfig/internal/log"
	"github.com/build1/unityconfig/pkg/firebase"
	"github.com/build1/unityconfig/pkg/loader"
	"github.com/build1/unityconfig/pkg/node"
	"github.com/build1/unityconfig/pkg/repository"
	"github.com/build1/unityconfig/pkg/settings"
	"github.com/build1/unityconfig/pkg/workspace"
)

// ErrAlreadyConstructed is returned by New after the first successful call.
var ErrAlreadyConstructed = errors.New("app: a config context already exists in this process")

var constructed atomic.Bool

// Options overrides parts of the wiring.
type Options struct {
	// Client replaces the Firebase client built from the config.
	Client firebase.Client
	// Debug forces refetching regardless of the provider's fetch interval.
	// Defaults to buildinfo.Debug().
	Debug *bool
}

// App holds the wired components.
type App struct {
	Config    *config.Config
	Settings  settings.Provider
	Workspace *workspace.Workspace
	Cache     *repository.Cache[node.Document]
	Remote    *repository.Remote[node.Document]
	Loader    *loader.Loader[node.Document]
}

// New wires an App from cfg.
func New(cfg *config.Config, o Options) (*App, error) {
	if !constructed.CompareAndSwap(false, true) {
		return nil, ErrAlreadyConstructed
	}

	resources := cfg.ResourcesPath()
	bundle := os.DirFS(resources)
	provider := settings.NewFileProvider(bundle)

	client := o.Client
	if client == nil && cfg.Firebase.Enabled() {
		client = firebase.NewREST(firebase.RESTConfig{
			Endpoint:  cfg.Firebase.Endpoint,
			ProjectID: cfg.Firebase.ProjectID,
			APIKey:    cfg.Firebase.APIKey,
			AppID:     cfg.Firebase.AppID,
			Timeout:   cfg.Firebase.RequestTimeout,
		}, &http.Client{})
	}
	if client == nil {
		log.Debug("app: no remote config client configured")
	}

	debug := buildinfo.Debug()
	if o.Debug != nil {
		debug = *o.Debug
	}

	cache := repository.NewCache[node.Document](filesys.OS(), cfg.Cache.Dir, cfg.CacheVersion())
	remote := repository.NewRemote(client,
		repository.WithSchema(node.Schema()),
		repository.WithDebug[node.Document](debug),
		repository.WithSettings[node.Document](provider),
	)
	l, err := loader.New(loader.Options[node.Document]{
		Settings:  provider,
		Resources: bundle,
		Cache:     cache,
		Remote:    remote,
	})
	if err != nil {
		constructed.Store(false)
		return nil, err
	}

	return &App{
		Config:    cfg,
		Settings:  provider,
		Workspace: workspace.New(filesys.OS(), cfg.Project.Root, resources),
		Cache:     cache,
		Remote:    remote,
		Loader:    l,
	}, nil
}

// Close stops background work. The process still may not build a second
// App.
func (a *App) Close() {
	a.Loader.Close()
}
