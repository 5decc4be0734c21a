// ABOUTME: In-memory key/value store with the same contract as SQLiteStore
// ABOUTME: Used by tests and by ephemeral sessions that should leave nothing on disk

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps settings in a map. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]*Setting
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings: make(map[string]*Setting),
	}
}

// Set creates or replaces the value stored under key.
func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.settings[key]; ok {
		existing.Value = value
		existing.UpdatedAt = now
		return nil
	}
	m.settings[key] = &Setting{Key: key, Value: value, CreatedAt: now, UpdatedAt: now}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return st.Value, nil
}

// List returns copies of every stored setting ordered by key.
func (m *MemoryStore) List(ctx context.Context) ([]*Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	settings := make([]*Setting, 0, len(m.settings))
	for _, st := range m.settings {
		c := *st
		settings = append(settings, &c)
	}
	sort.Slice(settings, func(i, j int) bool {
		return settings[i].Key < settings[j].Key
	})
	return settings, nil
}

// Delete removes key. It returns ErrNotFound if nothing was stored under it.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.settings[key]; !ok {
		return ErrNotFound
	}
	delete(m.settings, key)
	return nil
}

// Close is a no-op; it lets MemoryStore stand in for SQLiteStore.
func (m *MemoryStore) Close() error {
	return nil
}
