// Package settings caches user preferences persisted in the store.
package settings

import (
	"context"
	"fmt"
	"sync"

	"focus-blocks/internal/models"
)

// Backend is the persistence the manager caches.
type Backend interface {
	Settings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error
}

// Manager handles cached access to Settings.
type Manager struct {
	backend Backend
	mu      sync.RWMutex
	cached  models.Settings
	loaded  bool
}

// NewManager creates a settings manager over backend.
func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// Get returns the cached settings, loading from the backend if necessary.
func (m *Manager) Get(ctx context.Context) (models.Settings, error) {
	m.mu.RLock()
	if m.loaded {
		defer m.mu.RUnlock()
		return m.cached, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return m.cached, nil
	}
	current, err := m.backend.Settings(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	m.cached = current
	m.loaded = true
	return current, nil
}

// Save persists the provided settings.
func (m *Manager) Save(ctx context.Context, settings models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.backend.SaveSettings(ctx, settings); err != nil {
		return err
	}
	m.cached = settings
	m.loaded = true
	return nil
}

// Update saves the user-editable fields of next, keeping credentials intact.
func (m *Manager) Update(ctx context.Context, next models.Settings) (models.Settings, error) {
	if next.QuickFocusDuration < 0 || next.DeepFocusDuration < 0 || next.BypassHoldDurationMS < 0 {
		return models.Settings{}, fmt.Errorf("%w: durations must not be negative", models.ErrValidation)
	}
	current, err := m.Get(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	next.APITokenHash = current.APITokenHash
	if err := m.Save(ctx, next); err != nil {
		return models.Settings{}, err
	}
	return next, nil
}

// NotificationsEnabled reports the enableNotifications preference.
// Read failures default to enabled.
func (m *Manager) NotificationsEnabled(ctx context.Context) bool {
	current, err := m.Get(ctx)
	if err != nil {
		return true
	}
	return current.EnableNotifications
}
