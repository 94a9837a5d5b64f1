package statestore

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryBackend is a map-backed Backend for standalone mode and tests.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
	open bool
}

// NewMemoryBackend creates an in-memory backend. The config is unused.
func NewMemoryBackend(_ *Config) (Backend, error) {
	return &MemoryBackend{}, nil
}

// Name identifies the backend instance.
func (m *MemoryBackend) Name() string { return "memory" }

// Open prepares the backend.
func (m *MemoryBackend) Open(_ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.open = true
	return nil
}

// Close releases the backend, keeping the data for a later reopen.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrClosed
	}
	m.open = false
	return nil
}

// Get returns the value for key.
func (m *MemoryBackend) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.open {
		return nil, ErrClosed
	}
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores value under key.
func (m *MemoryBackend) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

// Delete removes key.
func (m *MemoryBackend) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrClosed
	}
	delete(m.data, string(key))
	return nil
}

// Scan calls fn for every key with the given prefix, in key order.
func (m *MemoryBackend) Scan(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	if !m.open {
		m.mu.RUnlock()
		return ErrClosed
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	snapshot := make([][]byte, len(keys))
	for i, k := range keys {
		snapshot[i] = m.data[k]
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}
