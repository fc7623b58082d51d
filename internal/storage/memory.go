package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryArchive keeps audit records in memory. Used when no storage account
// is configured and as a test double.
type MemoryArchive struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// Ensure MemoryArchive implements Archive
var _ Archive = (*MemoryArchive)(nil)

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{data: make(map[string][]byte)}
}

func (m *MemoryArchive) Store(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[name] = stored
	return nil
}

func (m *MemoryArchive) Retrieve(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("record not found: %s", name)
	}
	return data, nil
}

func (m *MemoryArchive) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name := range m.data {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}
