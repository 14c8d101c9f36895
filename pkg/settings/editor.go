package settings

import "errors"

var (
	// ErrRequiresFallback is returned when enabling the cache with fallback off.
	ErrRequiresFallback = errors.New("cache requires fallback to be enabled")
	// ErrRequiresCache is returned when enabling fast loading with the cache off.
	ErrRequiresCache = errors.New("fast loading requires cache to be enabled")
	// ErrNegativeTimeout is returned for a negative fallback timeout.
	ErrNegativeTimeout = errors.New("fallback timeout cannot be negative")
)

// EditorSettings is the persisted authoring-side form of Settings. It adds
// the variant published as the bundled fallback and whether release builds
// switch the source back to remote.
type EditorSettings struct {
	Settings
	ResetSourceForBuilds bool   `json:"source_reset,omitempty"`
	FallbackSource       string `json:"fallback_source,omitempty"`
}

// ForBuild returns the settings a release build ships with. With
// ResetSourceForBuilds the source becomes SourceRemote and no local variant
// is bundled as the primary config.
func (s EditorSettings) ForBuild() EditorSettings {
	if s.ResetSourceForBuilds {
		s.Source = SourceRemote
	}
	return s
}

// Editor mutates settings while keeping the policy chain intact: switching
// a flag off switches off every flag that depends on it.
type Editor struct {
	s     EditorSettings
	dirty bool
}

// NewEditor starts editing from s.
func NewEditor(s EditorSettings) *Editor {
	if s.ParameterName == "" {
		s.ParameterName = DefaultParameterName
	}
	s.Source = NormalizeSource(s.Source)
	return &Editor{s: s}
}

// Settings returns the current editor state.
func (e *Editor) Settings() EditorSettings { return e.s }

// Runtime returns the snapshot published next to the configs.
func (e *Editor) Runtime() Settings { return e.s.Settings.Effective() }

// Dirty reports whether anything changed since the last ResetDirty.
func (e *Editor) Dirty() bool { return e.dirty }

// ResetDirty clears the dirty flag after a save.
func (e *Editor) ResetDirty() { e.dirty = false }

// SetSource selects the active variant or SourceRemote.
func (e *Editor) SetSource(source string) {
	source = NormalizeSource(source)
	if e.s.Source == source {
		return
	}
	e.s.Source = source
	e.dirty = true
}

// SetMode selects how remote values are decoded.
func (e *Editor) SetMode(m Mode) {
	if e.s.Mode == m {
		return
	}
	e.s.Mode = m
	e.dirty = true
}

// SetParameterName sets the remote parameter read in ModeDefault.
func (e *Editor) SetParameterName(name string) {
	if name == "" {
		name = DefaultParameterName
	}
	if e.s.ParameterName == name {
		return
	}
	e.s.ParameterName = name
	e.dirty = true
}

// SetResetSourceForBuilds toggles switching the source to remote in
// release builds.
func (e *Editor) SetResetSourceForBuilds(on bool) {
	if e.s.ResetSourceForBuilds == on {
		return
	}
	e.s.ResetSourceForBuilds = on
	e.dirty = true
}

// SetFallbackEnabled toggles fallback. Enabling with no timeout applies
// DefaultFallbackTimeout; disabling also disables the cache.
func (e *Editor) SetFallbackEnabled(on bool) {
	if e.s.FallbackEnabled == on {
		return
	}
	e.s.FallbackEnabled = on
	e.dirty = true
	if on && e.s.FallbackTimeout == 0 {
		e.s.FallbackTimeout = DefaultFallbackTimeout
	}
	if !on {
		_ = e.SetCacheEnabled(false)
	}
}

// SetFallbackTimeout sets the fetch timeout in milliseconds.
func (e *Editor) SetFallbackTimeout(ms int) error {
	if ms < 0 {
		return ErrNegativeTimeout
	}
	if e.s.FallbackTimeout != ms {
		e.s.FallbackTimeout = ms
		e.dirty = true
	}
	return nil
}

// SetFallbackSource selects the variant published as config_fallback.
func (e *Editor) SetFallbackSource(name string) {
	if e.s.FallbackSource == name {
		return
	}
	e.s.FallbackSource = name
	e.dirty = true
}

// SetCacheEnabled toggles the cache. Disabling also disables fast loading.
func (e *Editor) SetCacheEnabled(on bool) error {
	if on && !e.s.FallbackEnabled {
		return ErrRequiresFallback
	}
	if e.s.CacheEnabled == on {
		return nil
	}
	e.s.CacheEnabled = on
	e.dirty = true
	if !on {
		_ = e.SetFastLoadingEnabled(false)
	}
	return nil
}

// SetFastLoadingEnabled toggles fast loading.
func (e *Editor) SetFastLoadingEnabled(on bool) error {
	if on && !e.s.CacheEnabled {
		return ErrRequiresCache
	}
	if e.s.FastLoadingEnabled == on {
		return nil
	}
	e.s.FastLoadingEnabled = on
	e.dirty = true
	return nil
}
