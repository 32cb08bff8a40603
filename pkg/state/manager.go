package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/bookowl/botross/pkg/logger"
)

// Manager owns the in-memory settings and keeps them in step with a Store.
type Manager struct {
	store    Store
	settings Settings
	mu       sync.RWMutex
}

// NewManager loads the current settings from store. A load failure is
// returned as is; the caller treats it as fatal.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	s, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	logger.InfoCF("state", "Loaded settings", map[string]any{
		"delete_pin_confs": s.DeletePinConfirmations,
	})

	return &Manager{store: store, settings: s}, nil
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

func (m *Manager) DeletePinConfirmations() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.DeletePinConfirmations
}

// SetDeletePinConfirmations updates the flag and persists it before
// returning. If the save fails the in-memory value is left unchanged.
func (m *Manager) SetDeletePinConfirmations(ctx context.Context, v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.settings
	next.DeletePinConfirmations = v
	if err := m.store.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	m.settings = next
	return nil
}
