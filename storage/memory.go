package storage

import (
	"context"
	"sync"
)

var _ Storage = (*MemoryStorage)(nil)

type MemoryStorage struct {
	lk    sync.Mutex
	items map[string]string

	writes int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(ctx context.Context, key, value string) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.items[key] = value
	m.writes++
	return nil
}

func (m *MemoryStorage) RemoveItem(ctx context.Context, key string) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	if _, ok := m.items[key]; ok {
		delete(m.items, key)
		m.writes++
	}
	return nil
}

// Writes counts mutations that changed the map, tests use it to check that
// no-op paths stay no-op.
func (m *MemoryStorage) Writes() int {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.writes
}

func (m *MemoryStorage) Snapshot() map[string]string {
	m.lk.Lock()
	defer m.lk.Unlock()
	out := make(map[string]string, len(m.items))
	for k, v := range m.items {
		out[k] = v
	}
	return out
}
