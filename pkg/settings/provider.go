package settings

import (
	"errors"
	"io/fs"

	"github.com/build1/unityconfig/internal/log"
	"github.com/build1/unityconfig/pkg/codec"
)

// Provider hands out the current settings snapshot.
type Provider interface {
	GetSettings() Settings
}

// Static is a Provider returning a fixed snapshot.
type Static Settings

// GetSettings implements Provider.
func (s Static) GetSettings() Settings { return Settings(s) }

// FileProvider reads build1-config-settings.json from the bundled
// resources. A missing file yields Default; a malformed one yields Default
// and a warning, so GetSettings never fails.
type FileProvider struct {
	resources fs.FS
}

var (
	_ Provider = Static{}
	_ Provider = (*FileProvider)(nil)
)

// NewFileProvider returns a provider reading from resources.
func NewFileProvider(resources fs.FS) *FileProvider {
	return &FileProvider{resources: resources}
}

// GetSettings implements Provider.
func (p *FileProvider) GetSettings() Settings {
	s, err := Read(p.resources)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warnf("settings: ignoring %s.json: %v", FileName, err)
		}
		return Default()
	}
	return s
}

// Read parses the settings resource. Fields absent from the file keep the
// values of Default.
func Read(resources fs.FS) (Settings, error) {
	data, err := fs.ReadFile(resources, FileName+".json")
	if err != nil {
		return Settings{}, err
	}
	s := Default()
	if err := codec.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	s.Source = NormalizeSource(s.Source)
	return s, nil
}
