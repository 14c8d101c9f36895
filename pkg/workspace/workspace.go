// Package workspace manages the authoring side of a project: named config
// variants kept under <root>/Config, the editor settings, and publishing the
// active and fallback variants into the bundled resources folder together
// with the runtime settings file.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/multierr"

	"github.com/build1/unityconfig/internal/filesys"
	"github.com/build1/unityconfig/internal/log"
	"github.com/build1/unityconfig/pkg/codec"
	"github.com/build1/unityconfig/pkg/repository"
	"github.com/build1/unityconfig/pkg/settings"
)

const (
	// ConfigDir holds one folder per variant.
	ConfigDir = "Config"
	// VariantFile is the document inside a variant folder.
	VariantFile = "config.json"
	// SettingsFile stores the editor settings at the project root.
	SettingsFile = "unityconfig.json"
)

var (
	ErrRemoteVariant    = errors.New("the remote variant cannot be changed or removed")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrVariantExists    = errors.New("variant already exists")
	ErrInvalidName      = errors.New("invalid variant name")
	ErrInvalidJSON      = errors.New("variant content is not valid JSON")
	ErrNoFallbackSource = errors.New("fallback is enabled but no fallback variant is selected")
)

// Workspace is a project directory on disk.
type Workspace struct {
	fs        filesys.TreeFS
	root      string
	resources string
}

// New returns a workspace rooted at root. A relative resources path is
// resolved against root.
func New(fsys filesys.TreeFS, root, resources string) *Workspace {
	if !filepath.IsAbs(resources) {
		resources = filepath.Join(root, resources)
	}
	return &Workspace{fs: fsys, root: root, resources: resources}
}

// Resources returns the bundled resources folder.
func (w *Workspace) Resources() string { return w.resources }

// VariantPath returns the document path of a variant.
func (w *Workspace) VariantPath(name string) string {
	return filepath.Join(w.root, ConfigDir, name, VariantFile)
}

// List returns SourceRemote followed by the local variants in sorted order.
func (w *Workspace) List() ([]string, error) {
	out := []string{settings.SourceRemote}
	entries, err := w.fs.ReadDir(filepath.Join(w.root, ConfigDir))
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return append(out, names...), nil
}

// Read returns the raw document of a variant.
func (w *Workspace) Read(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := w.fs.ReadFile(w.VariantPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, name)
		}
		return nil, err
	}
	return data, nil
}

// Add creates a new variant.
func (w *Workspace) Add(name string, content []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if !validDocument(content) {
		return ErrInvalidJSON
	}
	if _, err := w.fs.Stat(filepath.Dir(w.VariantPath(name))); err == nil {
		return fmt.Errorf("%w: %s", ErrVariantExists, name)
	}
	if err := filesys.AtomicWrite(w.fs, w.VariantPath(name), content, 0o644); err != nil {
		return fmt.Errorf("adding variant %s: %w", name, err)
	}
	log.Info("workspace: variant added", "name", name)
	return nil
}

// Save replaces a variant's document and refreshes any published copy of it.
func (w *Workspace) Save(name string, content []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if !validDocument(content) {
		return ErrInvalidJSON
	}
	if _, err := w.fs.Stat(w.VariantPath(name)); err != nil {
		return fmt.Errorf("%w: %s", ErrVariantNotFound, name)
	}
	if err := filesys.AtomicWrite(w.fs, w.VariantPath(name), content, 0o644); err != nil {
		return fmt.Errorf("saving variant %s: %w", name, err)
	}

	ed, err := w.Settings()
	if err != nil {
		return err
	}
	s := ed.Settings()
	if s.Source == name {
		if err := w.write(repository.PrimaryName, content); err != nil {
			return err
		}
	}
	if s.FallbackEnabled && s.FallbackSource == name {
		if err := w.write(repository.FallbackName, content); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes a variant. Removing the active variant switches the source
// back to remote; removing the fallback variant turns fallback off.
func (w *Workspace) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	dir := filepath.Dir(w.VariantPath(name))
	if _, err := w.fs.Stat(dir); err != nil {
		return fmt.Errorf("%w: %s", ErrVariantNotFound, name)
	}
	if err := w.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing variant %s: %w", name, err)
	}
	if err := filesys.RemoveIfExists(w.fs, dir+".meta"); err != nil {
		return err
	}
	log.Info("workspace: variant removed", "name", name)

	ed, err := w.Settings()
	if err != nil {
		return err
	}
	s := ed.Settings()
	if s.Source == name {
		ed.SetSource(settings.SourceRemote)
	}
	if s.FallbackSource == name {
		ed.SetFallbackSource("")
		ed.SetFallbackEnabled(false)
	}
	return w.SaveSettings(ed)
}

// Settings loads the editor settings. A missing file yields the defaults.
func (w *Workspace) Settings() (*settings.Editor, error) {
	es := settings.EditorSettings{Settings: settings.Default()}
	data, err := w.fs.ReadFile(filepath.Join(w.root, SettingsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return settings.NewEditor(es), nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if err := codec.Unmarshal(data, &es); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SettingsFile, err)
	}
	return settings.NewEditor(es), nil
}

// SaveSettings persists a dirty editor, publishes the runtime settings and
// the bundled configs, then clears the dirty flag.
func (w *Workspace) SaveSettings(ed *settings.Editor) error {
	if !ed.Dirty() {
		return nil
	}
	if err := w.Publish(ed.Settings()); err != nil {
		return err
	}
	data, err := codec.MarshalIndent(ed.Settings())
	if err != nil {
		return err
	}
	if err := filesys.AtomicWrite(w.fs, filepath.Join(w.root, SettingsFile), data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	ed.ResetDirty()
	return nil
}

// Publish writes the runtime settings and the bundled configs for s. The
// primary config is bundled unless the source is remote; the fallback config
// only when fallback is enabled. Stale copies are removed. Variants are
// validated before anything in resources changes.
func (w *Workspace) Publish(s settings.EditorSettings) error {
	runtime := s.Settings.Effective()

	var primary, fallback []byte
	if !runtime.IsRemote() {
		data, err := w.validated(runtime.Source)
		if err != nil {
			return err
		}
		primary = data
	}
	if runtime.FallbackEnabled {
		if s.FallbackSource == "" {
			return ErrNoFallbackSource
		}
		data, err := w.validated(s.FallbackSource)
		if err != nil {
			return err
		}
		fallback = data
	}

	data, err := codec.MarshalIndent(runtime)
	if err != nil {
		return err
	}
	if err := filesys.AtomicWrite(w.fs, w.resource(settings.FileName), data, 0o644); err != nil {
		return fmt.Errorf("publishing settings: %w", err)
	}
	if err := w.clear(); err != nil {
		return err
	}
	if primary != nil {
		if err := w.write(repository.PrimaryName, primary); err != nil {
			return err
		}
	}
	if fallback != nil {
		if err := w.write(repository.FallbackName, fallback); err != nil {
			return err
		}
	}
	log.Info("workspace: published", "source", runtime.Source, "fallback", s.FallbackSource)
	return nil
}

// PublishForBuild publishes the settings a release build ships with. When
// the editor asks for it the source is reset to remote for the build only;
// the editor settings file keeps the selected variant, and a later Publish
// restores the development layout.
func (w *Workspace) PublishForBuild(s settings.EditorSettings) error {
	build := s.ForBuild()
	if build.Source != s.Source {
		log.Info("workspace: resetting source for build", "source", s.Source, "build", build.Source)
	}
	return w.Publish(build)
}

// Check creates the variants folder when missing.
func (w *Workspace) Check() error {
	dir := filepath.Join(w.root, ConfigDir)
	if _, err := w.fs.Stat(dir); err == nil {
		return nil
	}
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	log.Info("workspace: configs folder created", "path", dir)
	return nil
}

func (w *Workspace) validated(name string) ([]byte, error) {
	data, err := w.Read(name)
	if err != nil {
		return nil, err
	}
	if !validDocument(data) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, name)
	}
	return data, nil
}

func (w *Workspace) resource(name string) string {
	return filepath.Join(w.resources, name+".json")
}

func (w *Workspace) write(name string, data []byte) error {
	if err := filesys.AtomicWrite(w.fs, w.resource(name), data, 0o644); err != nil {
		return fmt.Errorf("publishing %s: %w", name, err)
	}
	return nil
}

// clear removes the published configs and their asset metadata.
func (w *Workspace) clear() error {
	var err error
	for _, name := range []string{repository.PrimaryName, repository.FallbackName} {
		p := w.resource(name)
		err = multierr.Append(err, filesys.RemoveIfExists(w.fs, p))
		err = multierr.Append(err, filesys.RemoveIfExists(w.fs, p+".meta"))
	}
	return err
}

// validDocument accepts a JSON object, the only root a bundled config can
// decode from.
func validDocument(data []byte) bool {
	return codec.LooksLikeJSONObject(string(data)) && codec.Valid(data)
}

func checkName(name string) error {
	switch {
	case name == settings.SourceRemote:
		return ErrRemoteVariant
	case name == "", name == ".", name == "..",
		strings.ContainsAny(name, `/\`), strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
