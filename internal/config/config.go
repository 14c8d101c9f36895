package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/build1/unityconfig/internal/buildinfo"
	"github.com/build1/unityconfig/internal/filesys"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoConfig is returned when the configuration file is not found.
	ErrNoConfig = errors.New("configuration file not found")
)

const (
	// DefaultConfigPath is the default path for the configuration file,
	// relative to the user's home directory.
	DefaultConfigPath = ".unityconfig/config.yaml"
	// DefaultResourcesDir is where published configs live inside a project.
	DefaultResourcesDir = "Assets/Resources"
	// DefaultCacheDir is the cache root, relative to the user's home directory.
	DefaultCacheDir = ".cache/unityconfig"
	// DefaultEndpoint is the Firebase Remote Config REST endpoint.
	DefaultEndpoint = "https://firebaseremoteconfig.googleapis.com"
	// DefaultRequestTimeout bounds a single REST call when the settings do
	// not provide a fetch timeout.
	DefaultRequestTimeout = 10 * time.Second
)

// Config holds the tool configuration.
type Config struct {
	Project  ProjectConfig  `yaml:"project"`
	Cache    CacheConfig    `yaml:"cache"`
	Firebase FirebaseConfig `yaml:"firebase"`
}

// ProjectConfig locates the variant workspace and its resources folder.
type ProjectConfig struct {
	Root      string `yaml:"root"`
	Resources string `yaml:"resources"`
}

// CacheConfig locates the on-disk remote config cache.
type CacheConfig struct {
	Dir string `yaml:"dir"`
	// Version discriminates cache files across app builds. Empty means
	// buildinfo.Version.
	Version string `yaml:"version"`
}

// FirebaseConfig identifies the Firebase project serving remote config.
type FirebaseConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	ProjectID      string        `yaml:"project_id"`
	APIKey         string        `yaml:"api_key"`
	AppID          string        `yaml:"app_id"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Enabled reports whether enough is configured to talk to Firebase.
func (f FirebaseConfig) Enabled() bool {
	return f.ProjectID != "" && f.APIKey != "" && f.AppID != ""
}

// ResourcesPath returns the absolute-or-relative resources folder.
func (c *Config) ResourcesPath() string {
	if filepath.IsAbs(c.Project.Resources) {
		return c.Project.Resources
	}
	return filepath.Join(c.Project.Root, c.Project.Resources)
}

// CacheVersion returns the cache discriminator.
func (c *Config) CacheVersion() string {
	if c.Cache.Version != "" {
		return c.Cache.Version
	}
	return buildinfo.Version
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load() (*Config, error)
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   filesys.ReadWriteFS
	path string
	home string
}

// Verify FSProvider implements Provider interface.
var _ Provider = (*FSProvider)(nil)

// New creates a configuration provider for path. An empty path selects
// ~/.unityconfig/config.yaml. If the home directory cannot be determined
// the current directory is used instead.
func New(path string) Provider {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not determine home directory: %v\n", err)
		home = ""
	}
	if path == "" {
		path = filepath.Join(home, DefaultConfigPath)
	}
	return NewWithPath(filesys.OS(), path, home)
}

// NewWithPath creates a new provider with a specific config path and home
// directory.
func NewWithPath(fs filesys.ReadWriteFS, path, home string) Provider {
	return &FSProvider{
		fs:   fs,
		path: path,
		home: home,
	}
}

// Default returns a default configuration with preset values.
// This is used when no configuration file exists.
func Default(home string) *Config {
	return &Config{
		Project: ProjectConfig{
			Root:      ".",
			Resources: DefaultResourcesDir,
		},
		Cache: CacheConfig{
			Dir: filepath.Join(home, DefaultCacheDir),
		},
		Firebase: FirebaseConfig{
			Endpoint:       DefaultEndpoint,
			RequestTimeout: DefaultRequestTimeout,
		},
	}
}

// Load loads the configuration from the provider's path. Fields missing
// from the file keep their default values.
func (p *FSProvider) Load() (*Config, error) {
	_ = p.ensureConfigDir()

	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(p.home), nil
		}
		return nil, err
	}
	cfg.Cache.Dir = p.expandHome(cfg.Cache.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate checks the configuration to ensure all required fields are set.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Project.Root) == "" {
		return errors.New("project root cannot be empty")
	}
	if strings.TrimSpace(c.Project.Resources) == "" {
		return errors.New("resources folder cannot be empty")
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return errors.New("cache dir cannot be empty")
	}
	if !strings.HasPrefix(c.Firebase.Endpoint, "http://") && !strings.HasPrefix(c.Firebase.Endpoint, "https://") {
		return errors.New("firebase endpoint must be an http(s) URL")
	}
	if c.Firebase.RequestTimeout < 100*time.Millisecond {
		return errors.New("firebase request timeout must be at least 100ms")
	}
	return nil
}

func (p *FSProvider) expandHome(path string) string {
	if path == "~" {
		return p.home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(p.home, path[2:])
	}
	return path
}

func (p *FSProvider) ensureConfigDir() error {
	dir := filepath.Dir(p.path)
	if _, err := p.fs.Stat(dir); os.IsNotExist(err) {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	return nil
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	cfg := Default(p.home)
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	return cfg, nil
}
