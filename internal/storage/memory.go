package storage

import (
	"fmt"
	"maps"
	"sync"

	"github.com/desertthunder/melodymatch/internal/shared"
)

// MemoryStore is an in-memory [Store] and [Batcher].
//
// Setting Fail makes every operation return an error wrapping [shared.ErrStorage],
// which is how tests simulate a disabled browser store.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string]string
	fail    bool
	Removes int // Removes counts Remove calls plus keys removed through Apply
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Batcher = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// SetFail toggles failure injection.
func (m *MemoryStore) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail {
		return "", false, fmt.Errorf("%w: get %s", shared.ErrStorage, key)
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("%w: set %s", shared.ErrStorage, key)
	}
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("%w: remove %s", shared.ErrStorage, key)
	}
	m.Removes++
	delete(m.data, key)
	return nil
}

// Apply writes set and deletes remove under a single lock.
func (m *MemoryStore) Apply(set map[string]string, remove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("%w: apply", shared.ErrStorage)
	}
	for _, k := range remove {
		m.Removes++
		delete(m.data, k)
	}
	maps.Copy(m.data, set)
	return nil
}

// Snapshot returns a copy of the stored pairs.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.data)
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
