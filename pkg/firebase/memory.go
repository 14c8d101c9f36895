package firebase

import (
	"context"
	"maps"
	"sync"

	"go.uber.org/atomic"
)

// MemoryClient serves a fixed value set. Errors injected through
// SettingsErr and FetchErr are returned by the matching step. When Gate is
// set, FetchAndActivate blocks until it is closed or ctx is done.
type MemoryClient struct {
	SettingsErr error
	FetchErr    error
	Gate        chan struct{}

	mu       sync.Mutex
	values   map[string]string
	active   map[string]string
	settings ConfigSettings

	fetches atomic.Int64
}

var _ Client = (*MemoryClient)(nil)

// NewMemory returns a client that will activate values on fetch.
func NewMemory(values map[string]string) *MemoryClient {
	return &MemoryClient{values: maps.Clone(values), active: map[string]string{}}
}

// SetValues replaces the values returned by the next fetch.
func (m *MemoryClient) SetValues(values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = maps.Clone(values)
}

// SetConfigSettings implements Client.
func (m *MemoryClient) SetConfigSettings(_ context.Context, s ConfigSettings) error {
	if m.SettingsErr != nil {
		return m.SettingsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

// FetchAndActivate implements Client.
func (m *MemoryClient) FetchAndActivate(ctx context.Context) (bool, error) {
	m.fetches.Inc()
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return false, newError(CodeTimeout, ctx.Err(), "fetch cancelled")
		}
	}
	if m.FetchErr != nil {
		return false, m.FetchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := !maps.Equal(m.active, m.values)
	m.active = maps.Clone(m.values)
	return changed, nil
}

// AllValues implements Client.
func (m *MemoryClient) AllValues() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.active)
}

// Settings returns the last applied settings.
func (m *MemoryClient) Settings() ConfigSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Fetches returns how many times FetchAndActivate ran.
func (m *MemoryClient) Fetches() int64 { return m.fetches.Load() }
