package statestore

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ugorji/go/codec"

	"github.com/barterlabs/goBarterd/internal/storage/statestore/compression"
)

var cborHandle = func() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}()

// Store is the record-oriented view over a Backend: values are
// CBOR-encoded, compressed per the configured compressor, and cached
// decoded-side in an LRU.
type Store struct {
	backend Backend
	comp    compression.Compressor
	cache   *lru.Cache[string, []byte]
}

// Open creates the configured backend and wraps it in a Store.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	backend, err := CreateBackend(cfg.Backend, cfg)
	if err != nil {
		return nil, err
	}
	return OpenWithBackend(backend, cfg)
}

// OpenWithBackend wraps an explicit backend, for tests and standalone
// mode.
func OpenWithBackend(backend Backend, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	name := cfg.Compressor
	if name == "" {
		name = "none"
	}
	comp, err := compression.Get(name)
	if err != nil {
		return nil, err
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("statestore: create cache: %w", err)
	}
	if err := backend.Open(true); err != nil {
		return nil, err
	}
	return &Store{backend: backend, comp: comp, cache: cache}, nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	s.cache.Purge()
	return s.backend.Close()
}

// Name identifies the underlying backend.
func (s *Store) Name() string { return s.backend.Name() }

// PutRecord encodes v and stores it under key.
func (s *Store) PutRecord(key string, v interface{}) error {
	var encoded []byte
	if err := codec.NewEncoderBytes(&encoded, cborHandle).Encode(v); err != nil {
		return fmt.Errorf("statestore: encode %s: %w", key, err)
	}
	compressed, err := s.comp.Compress(encoded)
	if err != nil {
		return fmt.Errorf("statestore: compress %s: %w", key, err)
	}
	if err := s.backend.Put([]byte(key), compressed); err != nil {
		return err
	}
	s.cache.Add(key, encoded)
	return nil
}

// GetRecord decodes the value under key into out, or returns
// ErrNotFound.
func (s *Store) GetRecord(key string, out interface{}) error {
	if encoded, ok := s.cache.Get(key); ok {
		return s.decode(key, encoded, out)
	}
	raw, err := s.backend.Get([]byte(key))
	if err != nil {
		return err
	}
	encoded, err := s.comp.Decompress(raw)
	if err != nil {
		return fmt.Errorf("statestore: decompress %s: %w", key, err)
	}
	s.cache.Add(key, encoded)
	return s.decode(key, encoded, out)
}

// DeleteRecord removes key.
func (s *Store) DeleteRecord(key string) error {
	s.cache.Remove(key)
	return s.backend.Delete([]byte(key))
}

// ScanRecords calls fn with every key under prefix and a decoder for
// its value, in key order.
func (s *Store) ScanRecords(prefix string, fn func(key string, decode func(out interface{}) error) error) error {
	return s.backend.Scan([]byte(prefix), func(key, value []byte) error {
		decoder := func(out interface{}) error {
			encoded, err := s.comp.Decompress(value)
			if err != nil {
				return fmt.Errorf("statestore: decompress %s: %w", key, err)
			}
			return s.decode(string(key), encoded, out)
		}
		return fn(string(key), decoder)
	})
}

func (s *Store) decode(key string, encoded []byte, out interface{}) error {
	if err := codec.NewDecoderBytes(encoded, cborHandle).Decode(out); err != nil {
		return fmt.Errorf("statestore: decode %s: %w", key, err)
	}
	return nil
}
