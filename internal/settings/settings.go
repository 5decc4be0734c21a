// ABOUTME: Persisted user settings: API keys, model choice, streaming and pro mode, focus categories
// ABOUTME: Serialized as one JSON document under a single key of a key/value store

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/2389/moplexity-client/internal/client"
	"github.com/2389/moplexity-client/internal/store"
)

// StorageKey is the key the settings document is stored under.
const StorageKey = "moplexity-settings"

// DefaultModel is used until the user picks one.
const DefaultModel = "gpt-3.5-turbo"

// DefaultFocusMode is the focus category used when none are configured.
const DefaultFocusMode = "web"

// APIKeyNames lists the provider keys the backend understands.
var APIKeyNames = []string{
	"openai_api_key",
	"anthropic_api_key",
	"google_api_key",
	"bing_search_api_key",
	"google_search_api_key",
	"google_cse_id",
}

// KV is the key/value contract settings are persisted through.
// Get must return store.ErrNotFound for a missing key.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Settings is the user's local configuration.
type Settings struct {
	APIKeys          map[string]string `json:"apiKeys"`
	AdminToken       string            `json:"adminToken,omitempty"`
	Model            string            `json:"model"`
	ModelID          client.ID         `json:"modelId,omitempty"`
	StreamingEnabled bool              `json:"streamingEnabled"`
	ProMode          bool              `json:"proMode"`
	FocusModes       []string          `json:"focusModes"`
}

// Default returns the settings used before anything has been saved.
func Default() Settings {
	keys := make(map[string]string, len(APIKeyNames))
	for _, name := range APIKeyNames {
		keys[name] = ""
	}
	return Settings{
		APIKeys:          keys,
		Model:            DefaultModel,
		StreamingEnabled: true,
		FocusModes:       []string{DefaultFocusMode},
	}
}

// clone returns a copy that shares no map or slice with s.
func (s Settings) clone() Settings {
	c := s
	c.APIKeys = maps.Clone(s.APIKeys)
	c.FocusModes = slices.Clone(s.FocusModes)
	return c
}

// stored mirrors Settings with loosely typed fields so a partially valid
// document still loads.
type stored struct {
	APIKeys          map[string]string `json:"apiKeys"`
	AdminToken       string            `json:"adminToken"`
	Model            string            `json:"model"`
	ModelID          client.ID         `json:"modelId"`
	StreamingEnabled *bool             `json:"streamingEnabled"`
	ProMode          *bool             `json:"proMode"`
	FocusModes       json.RawMessage   `json:"focusModes"`
}

// decode merges a stored document over the defaults.
func decode(data string) (Settings, error) {
	s := Default()

	var raw stored
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return s, err
	}

	maps.Copy(s.APIKeys, raw.APIKeys)
	s.AdminToken = raw.AdminToken
	if raw.Model != "" {
		s.Model = raw.Model
	}
	s.ModelID = raw.ModelID
	if raw.StreamingEnabled != nil {
		s.StreamingEnabled = *raw.StreamingEnabled
	}
	if raw.ProMode != nil {
		s.ProMode = *raw.ProMode
	}
	s.FocusModes = focusModes(raw.FocusModes)
	return s, nil
}

// focusModes returns the stored categories, or the default when the value is
// absent, empty, or not a list of strings.
func focusModes(raw json.RawMessage) []string {
	var modes []string
	if len(raw) == 0 || json.Unmarshal(raw, &modes) != nil || len(modes) == 0 {
		return []string{DefaultFocusMode}
	}
	return modes
}

// Manager holds the current settings and writes every change through to the
// key/value store. Safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	kv      KV
	current Settings
	logger  *slog.Logger
}

// NewManager creates a manager holding the defaults. Call Load to read the
// persisted document.
func NewManager(kv KV, logger *slog.Logger) *Manager {
	return &Manager{
		kv:      kv,
		current: Default(),
		logger:  logger.With("component", "settings"),
	}
}

// Load reads the persisted settings. A missing or corrupt document leaves
// the defaults in place; only storage failures are returned.
func (m *Manager) Load(ctx context.Context) error {
	data, err := m.kv.Get(ctx, StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		m.mu.Lock()
		m.current = Default()
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	s, err := decode(data)
	if err != nil {
		m.logger.Warn("stored settings are corrupt, using defaults", "error", err)
		s = Default()
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}

// Save writes the current settings.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.RLock()
	data, err := json.Marshal(m.current)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := m.kv.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// Current returns a copy of the settings.
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

// update applies fn under the lock and persists the result.
func (m *Manager) update(ctx context.Context, fn func(*Settings)) error {
	m.mu.Lock()
	fn(&m.current)
	m.mu.Unlock()
	return m.Save(ctx)
}

// UpdateAPIKey sets one provider key.
func (m *Manager) UpdateAPIKey(ctx context.Context, name, value string) error {
	return m.update(ctx, func(s *Settings) {
		if s.APIKeys == nil {
			s.APIKeys = make(map[string]string)
		}
		s.APIKeys[name] = value
	})
}

// UpdateModel sets the preferred model name.
func (m *Manager) UpdateModel(ctx context.Context, model string) error {
	return m.update(ctx, func(s *Settings) {
		s.Model = model
	})
}

// SetModelID sets the backend model id sent with each query. The empty id
// lets the backend choose.
func (m *Manager) SetModelID(ctx context.Context, id client.ID) error {
	return m.update(ctx, func(s *Settings) {
		s.ModelID = id
	})
}

// SetAdminToken stores the admin token.
func (m *Manager) SetAdminToken(ctx context.Context, token string) error {
	return m.update(ctx, func(s *Settings) {
		s.AdminToken = token
	})
}

// ToggleStreaming flips the streaming flag and returns the new value.
func (m *Manager) ToggleStreaming(ctx context.Context) (bool, error) {
	var enabled bool
	err := m.update(ctx, func(s *Settings) {
		s.StreamingEnabled = !s.StreamingEnabled
		enabled = s.StreamingEnabled
	})
	return enabled, err
}

// ToggleProMode flips pro mode and returns the new value.
func (m *Manager) ToggleProMode(ctx context.Context) (bool, error) {
	var enabled bool
	err := m.update(ctx, func(s *Settings) {
		s.ProMode = !s.ProMode
		enabled = s.ProMode
	})
	return enabled, err
}

// SetFocusModes replaces the default focus categories. An empty list resets
// to the default category.
func (m *Manager) SetFocusModes(ctx context.Context, modes []string) error {
	if len(modes) == 0 {
		modes = []string{DefaultFocusMode}
	}
	modes = slices.Clone(modes)
	return m.update(ctx, func(s *Settings) {
		s.FocusModes = modes
	})
}
