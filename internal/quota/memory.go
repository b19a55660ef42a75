package quota

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]State
	saves   int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]State)}
}

func (m *MemoryStore) Load(_ context.Context, user string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[user]
	return s, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, user string, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[user] = s
	m.saves++
	return nil
}

// Saves returns how many writes the store has received.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
