// Package statestore provides the persistent key-value storage behind
// the offer engine: offers, asset balances, dividend ledgers and id
// sequences survive restarts through it. Records are CBOR-encoded,
// optionally compressed, and served through an LRU read cache.
package statestore

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("statestore: key not found")

	// ErrClosed is returned when the store is used after Close.
	ErrClosed = errors.New("statestore: closed")
)

// Backend is the raw byte-oriented storage under a Store.
type Backend interface {
	// Name identifies the backend instance.
	Name() string

	// Open prepares the backend, creating it if createIfMissing.
	Open(createIfMissing bool) error

	// Close releases the backend. Further calls return ErrClosed.
	Close() error

	// Get returns the value for key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Put stores value under key.
	Put(key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Scan calls fn for every key with the given prefix, in key order.
	// A non-nil error from fn stops the scan and is returned.
	Scan(prefix []byte, fn func(key, value []byte) error) error
}

// BackendFactory creates a backend instance from a config.
type BackendFactory func(cfg *Config) (Backend, error)

var (
	backendMu        sync.RWMutex
	backendFactories = make(map[string]BackendFactory)
)

// RegisterBackend registers a backend factory with the given name.
func RegisterBackend(name string, factory BackendFactory) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendFactories[name] = factory
}

// CreateBackend creates a backend instance for the given name.
func CreateBackend(name string, cfg *Config) (Backend, error) {
	backendMu.RLock()
	factory, ok := backendFactories[name]
	backendMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
	return factory(cfg)
}

// AvailableBackends returns the registered backend names.
func AvailableBackends() []string {
	backendMu.RLock()
	defer backendMu.RUnlock()

	names := make([]string, 0, len(backendFactories))
	for name := range backendFactories {
		names = append(names, name)
	}
	return names
}

func init() {
	RegisterBackend("memory", NewMemoryBackend)
	RegisterBackend("pebble", NewPebbleBackend)
}
