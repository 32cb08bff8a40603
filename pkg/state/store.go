// Package state holds the bot's persisted settings.
//
// A Store reads and writes the settings record; a Manager keeps the live copy
// in memory and writes every change straight through to its Store.
package state

import (
	"context"
	"sync"
)

// Settings is the single persisted configuration record.
type Settings struct {
	DeletePinConfirmations bool
}

// DefaultSettings is what a fresh store is initialised with.
func DefaultSettings() Settings {
	return Settings{DeletePinConfirmations: true}
}

// Store loads and saves Settings. Load on an empty store persists and
// returns DefaultSettings.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// MemoryStore is a Store without durability. SaveErr, when set, is
// returned by every Save.
type MemoryStore struct {
	mu      sync.Mutex
	saved   *Settings
	saves   int
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		def := DefaultSettings()
		m.saved = &def
	}
	return *m.saved, nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.saved = &s
	m.saves++
	return nil
}

// Saves reports how many successful saves have happened.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
