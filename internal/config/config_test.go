package config_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/build1/unityconfig/internal/buildinfo"
	"github.com/build1/unityconfig/internal/config"
)

type ConfigTestSuite struct {
	suite.Suite
	fs       mockFS
	provider config.Provider
}

type mockFS struct {
	files map[string]string
}

func (m mockFS) Stat(path string) (os.FileInfo, error) {
	if _, ok := m.files[path]; !ok {
		return nil, os.ErrNotExist
	}
	return nil, nil
}

func (m mockFS) MkdirAll(_ string, _ os.FileMode) error {
	return nil
}

func (m mockFS) Open(path string) (*os.File, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	tmp, err := os.CreateTemp("", "mock-*")
	if err != nil {
		return nil, err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, err
	}
	return tmp, nil
}

func (m mockFS) WriteFile(path string, content []byte, _ os.FileMode) error {
	m.files[path] = string(content)
	return nil
}

func (s *ConfigTestSuite) SetupTest() {
	s.fs = mockFS{
		files: make(map[string]string),
	}
	s.provider = config.NewWithPath(s.fs, "test/config.yaml", "/home/dev")
}

func (s *ConfigTestSuite) TestLoadDefaultWhenNoFile() {
	// When loading configuration with no file present
	cfg, err := s.provider.Load()

	// Then default configuration should be returned
	s.Require().NoError(err)
	s.Equal(".", cfg.Project.Root)
	s.Equal(config.DefaultResourcesDir, cfg.Project.Resources)
	s.Equal(filepath.Join("/home/dev", config.DefaultCacheDir), cfg.Cache.Dir)
	s.Equal(config.DefaultEndpoint, cfg.Firebase.Endpoint)
	s.Equal(config.DefaultRequestTimeout, cfg.Firebase.RequestTimeout)
	s.False(cfg.Firebase.Enabled())
}

func (s *ConfigTestSuite) TestLoadValidConfig() {
	// Given a valid config file
	s.fs.files["test/config.yaml"] = `
project:
  root: /work/game
  resources: Assets/Resources
cache:
  dir: ~/cache
  version: "42"
firebase:
  project_id: game-prod
  api_key: key
  app_id: "1:2:android:3"
  request_timeout: 3s
`
	// When loading configuration
	cfg, err := s.provider.Load()

	// Then custom values should be loaded
	s.Require().NoError(err)
	s.Equal("/work/game", cfg.Project.Root)
	s.Equal("/work/game/Assets/Resources", cfg.ResourcesPath())
	s.Equal("/home/dev/cache", cfg.Cache.Dir)
	s.Equal("42", cfg.CacheVersion())
	s.Equal(3*time.Second, cfg.Firebase.RequestTimeout)
	s.True(cfg.Firebase.Enabled())

	// And unset fields keep their defaults
	s.Equal(config.DefaultEndpoint, cfg.Firebase.Endpoint)
}

func (s *ConfigTestSuite) TestLoadEmptyFileKeepsDefaults() {
	// Given an empty config file
	s.fs.files["test/config.yaml"] = ""

	// When loading configuration
	cfg, err := s.provider.Load()

	// Then defaults should be returned
	s.Require().NoError(err)
	s.Equal(config.DefaultResourcesDir, cfg.Project.Resources)
	s.Equal(buildinfo.Version, cfg.CacheVersion())
}

func (s *ConfigTestSuite) TestValidation() {
	valid := func() config.Config {
		return *config.Default("/home/dev")
	}

	testCases := []struct {
		name        string
		mutate      func(*config.Config)
		expectedErr string
	}{
		{
			name:        "defaults are valid",
			mutate:      func(*config.Config) {},
			expectedErr: "",
		},
		{
			name:        "empty project root",
			mutate:      func(c *config.Config) { c.Project.Root = " " },
			expectedErr: "project root cannot be empty",
		},
		{
			name:        "empty resources",
			mutate:      func(c *config.Config) { c.Project.Resources = "" },
			expectedErr: "resources folder cannot be empty",
		},
		{
			name:        "empty cache dir",
			mutate:      func(c *config.Config) { c.Cache.Dir = "\t" },
			expectedErr: "cache dir cannot be empty",
		},
		{
			name:        "endpoint without scheme",
			mutate:      func(c *config.Config) { c.Firebase.Endpoint = "firebaseremoteconfig.googleapis.com" },
			expectedErr: "firebase endpoint must be an http(s) URL",
		},
		{
			name:        "request timeout too short",
			mutate:      func(c *config.Config) { c.Firebase.RequestTimeout = 10 * time.Millisecond },
			expectedErr: "firebase request timeout must be at least 100ms",
		},
		{
			name:        "request timeout exactly 100ms",
			mutate:      func(c *config.Config) { c.Firebase.RequestTimeout = 100 * time.Millisecond },
			expectedErr: "",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.expectedErr == "" {
				s.NoError(err)
			} else {
				s.Error(err)
				s.Contains(err.Error(), tc.expectedErr)
			}
		})
	}
}

func (s *ConfigTestSuite) TestLoadInvalidYAML() {
	// Given an invalid YAML file
	s.fs.files["test/config.yaml"] = `
project:
  root: [invalid: yaml]
`
	// When loading configuration
	_, err := s.provider.Load()

	// Then an error should be returned
	s.Error(err)
	s.Contains(err.Error(), "decoding config file")
}

func (s *ConfigTestSuite) TestLoadRejectsInvalidValues() {
	// Given a config file with a bad endpoint
	s.fs.files["test/config.yaml"] = `
firebase:
  endpoint: ftp://nowhere
`
	// When loading configuration
	_, err := s.provider.Load()

	// Then ErrInvalidConfig should be returned
	s.ErrorIs(err, config.ErrInvalidConfig)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
