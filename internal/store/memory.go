package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemStore is an in-memory Collection for tests. Values round-trip through
// JSON so callers see the same copy semantics as the real backends.
type MemStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{records: map[string][]byte{}}
}

func (m *MemStore) Load(ctx context.Context, name string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.records[name]
	if !ok {
		return nil
	}
	return json.Unmarshal(b, v)
}

func (m *MemStore) Replace(ctx context.Context, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.records[name] = b
	m.mu.Unlock()
	return nil
}
