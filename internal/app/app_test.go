package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/build1/unityconfig/internal/config"
	"github.com/build1/unityconfig/pkg/configerr"
	"github.com/build1/unityconfig/pkg/firebase"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Project.Root = t.TempDir()
	cfg.Cache.Version = "test"
	require.NoError(t, os.MkdirAll(cfg.ResourcesPath(), 0o755))
	return cfg
}

func writeResource(t *testing.T, cfg *config.Config, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ResourcesPath(), name), []byte(content), 0o644))
}

func TestNewIsSingleUse(t *testing.T) {
	t.Cleanup(func() { constructed.Store(false) })

	a, err := New(testConfig(t), Options{})
	require.NoError(t, err)
	defer a.Close()

	_, err = New(testConfig(t), Options{})
	assert.ErrorIs(t, err, ErrAlreadyConstructed)
}

func TestLoadWithoutRemoteClient(t *testing.T) {
	t.Cleanup(func() { constructed.Store(false) })
	cfg := testConfig(t)

	a, err := New(cfg, Options{})
	require.NoError(t, err)
	defer a.Close()

	// No bundled settings: source is remote, and no client is configured
	_, err = a.Loader.Load(context.Background())
	assert.Equal(t, configerr.FirebaseRemoteConfigUnavailable, configerr.KindOf(err))
}

func TestLoadWiring(t *testing.T) {
	t.Cleanup(func() { constructed.Store(false) })
	cfg := testConfig(t)
	writeResource(t, cfg, "build1-config-settings.json",
		`{"source":"remote","fallback_enabled":true,"fallback_timeout":500,"cache_enabled":true}`)
	writeResource(t, cfg, "config_fallback.json", `{"lives":1}`)

	client := firebase.NewMemory(map[string]string{"config": `{"lives":5}`})
	debug := true
	a, err := New(cfg, Options{Client: client, Debug: &debug})
	require.NoError(t, err)
	defer a.Close()

	doc, err := a.Loader.Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, doc["lives"])
	assert.Zero(t, client.Settings().MinimumFetchInterval)

	// The remote result was cached for the next offline launch
	cached, err := a.Cache.Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, cached["lives"])

	client.FetchErr = &firebase.Error{Code: firebase.CodeNetwork}
	doc, err = a.Loader.Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, doc["lives"])
}
