// Package settings holds the config loading policy: which source is active,
// how remote values are decoded, and whether fallback, cache and fast
// loading are allowed.
//
// The policy chain is FastLoadingEnabled ⟹ CacheEnabled ⟹ FallbackEnabled.
// Editor enforces it on mutation; Effective enforces it on read so a hand
// edited settings file can never enable a weaker flag on its own.
package settings

import (
	"fmt"
	"strings"
)

const (
	// FileName is the bundled runtime settings resource (without extension).
	FileName = "build1-config-settings"
	// SourceRemote selects the remote config provider.
	SourceRemote = "remote"
	// SourceDefault is used when no settings file is bundled.
	SourceDefault = SourceRemote
	// DefaultParameterName is the remote parameter read in ModeDefault.
	DefaultParameterName = "config"
	// DefaultFallbackTimeout is applied when fallback is switched on with no timeout.
	DefaultFallbackTimeout = 3000

	legacySourceFirebase = "Firebase"
)

// Mode selects how remote values are turned into a config.
type Mode int

const (
	// ModeDefault reads one JSON document from a single parameter.
	ModeDefault Mode = iota
	// ModeDecomposed rebuilds the config from one parameter per field.
	ModeDecomposed
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeDecomposed:
		return "decomposed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the textual form of a Mode, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ModeDefault, nil
	case "decomposed":
		return ModeDecomposed, nil
	default:
		return ModeDefault, fmt.Errorf("unknown mode %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Settings is an immutable snapshot of the loading policy. It is passed and
// stored by value.
type Settings struct {
	Source             string `json:"source"`
	Mode               Mode   `json:"mode,omitempty"`
	ParameterName      string `json:"parameter_name,omitempty"`
	FallbackEnabled    bool   `json:"fallback_enabled,omitempty"`
	FallbackTimeout    int    `json:"fallback_timeout,omitempty"`
	CacheEnabled       bool   `json:"cache_enabled,omitempty"`
	FastLoadingEnabled bool   `json:"fast_loading_enabled,omitempty"`
}

// Default returns the settings used when nothing is bundled.
func Default() Settings {
	return Settings{
		Source:        SourceDefault,
		Mode:          ModeDefault,
		ParameterName: DefaultParameterName,
	}
}

// IsRemote reports whether the remote provider is the active source.
func (s Settings) IsRemote() bool { return s.Source == SourceRemote }

// Effective returns a copy that honours the policy chain, with the source
// and parameter name normalised. A flag whose prerequisite is off reads as
// off, and a negative timeout reads as zero.
func (s Settings) Effective() Settings {
	out := s
	out.Source = NormalizeSource(s.Source)
	if out.ParameterName == "" {
		out.ParameterName = DefaultParameterName
	}
	if out.FallbackTimeout < 0 {
		out.FallbackTimeout = 0
	}
	if !out.FallbackEnabled {
		out.CacheEnabled = false
	}
	if !out.CacheEnabled {
		out.FastLoadingEnabled = false
	}
	return out
}

// Consistent reports whether the snapshot already honours the policy chain.
func (s Settings) Consistent() bool {
	return (!s.FastLoadingEnabled || s.CacheEnabled) && (!s.CacheEnabled || s.FallbackEnabled)
}

// NormalizeSource maps the empty source to the default and the legacy
// "Firebase" literal to SourceRemote.
func NormalizeSource(source string) string {
	switch strings.TrimSpace(source) {
	case "":
		return SourceDefault
	case legacySourceFirebase, SourceRemote:
		return SourceRemote
	default:
		return strings.TrimSpace(source)
	}
}
