package history

import (
	"context"
	"maps"
	"sync"
)

// MemStore is an in-process [Store]. Contents are lost on restart.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]map[string]string)}
}

// Get implements [Store].
func (m *MemStore) Get(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data[key]))
	maps.Copy(out, m.data[key])
	return out, nil
}

// Put implements [Store].
func (m *MemStore) Put(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.data[key]
	if !ok {
		fields = make(map[string]string)
		m.data[key] = fields
	}
	fields[field] = value
	return nil
}

// Delete implements [Store].
func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
