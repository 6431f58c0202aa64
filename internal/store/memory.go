package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is the in-process Store used in tests and as a fallback when no
// Redis is configured. Values are kept JSON-encoded so the round trip
// matches the durable implementation exactly.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte, 1024)}
}

func (m *Memory) Get(_ context.Context, kind, id string, dst any) (bool, error) {
	m.mu.RLock()
	b, ok := m.items[kind+":"+id]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, kind, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}

	m.mu.Lock()
	m.items[kind+":"+id] = b
	m.mu.Unlock()
	return nil
}

// Len reports how many entities are stored, for tests.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
