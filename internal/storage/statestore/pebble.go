package statestore

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

// PebbleBackend is the persistent Backend over PebbleDB.
type PebbleBackend struct {
	cfg  *Config
	db   *pebble.DB
	open int64
}

// NewPebbleBackend creates a PebbleDB backend at cfg.Path.
func NewPebbleBackend(cfg *Config) (Backend, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("pebble backend needs a path")
	}
	return &PebbleBackend{cfg: cfg}, nil
}

// Name identifies the backend instance.
func (p *PebbleBackend) Name() string { return fmt.Sprintf("pebble(%s)", p.cfg.Path) }

// Open opens the database.
func (p *PebbleBackend) Open(createIfMissing bool) error {
	if !atomic.CompareAndSwapInt64(&p.open, 0, 1) {
		return fmt.Errorf("backend already open")
	}
	if createIfMissing {
		if err := os.MkdirAll(p.cfg.Path, 0o755); err != nil {
			atomic.StoreInt64(&p.open, 0)
			return fmt.Errorf("create %s: %w", p.cfg.Path, err)
		}
	}

	cacheMB := p.cfg.CacheMB
	if cacheMB <= 0 {
		cacheMB = 64
	}
	cache := pebble.NewCache(int64(cacheMB) << 20)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:        cache,
		MaxOpenFiles: 1024,
	}
	opts.Levels = make([]pebble.LevelOptions, 1)
	opts.Levels[0].FilterPolicy = bloom.FilterPolicy(10)

	db, err := pebble.Open(p.cfg.Path, opts)
	if err != nil {
		atomic.StoreInt64(&p.open, 0)
		return fmt.Errorf("open pebble at %s: %w", p.cfg.Path, err)
	}
	p.db = db
	return nil
}

// Close closes the database.
func (p *PebbleBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&p.open, 1, 0) {
		return ErrClosed
	}
	return p.db.Close()
}

// Get returns the value for key.
func (p *PebbleBackend) Get(key []byte) ([]byte, error) {
	if atomic.LoadInt64(&p.open) == 0 {
		return nil, ErrClosed
	}
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pebble get: %w", err)
	}
	out := make([]byte, len(value))
	copy(out, value)
	if err := closer.Close(); err != nil {
		return nil, fmt.Errorf("pebble get close: %w", err)
	}
	return out, nil
}

// Put stores value under key.
func (p *PebbleBackend) Put(key, value []byte) error {
	if atomic.LoadInt64(&p.open) == 0 {
		return ErrClosed
	}
	if err := p.db.Set(key, value, pebble.Sync); err != nil {
		return fmt.Errorf("pebble put: %w", err)
	}
	return nil
}

// Delete removes key.
func (p *PebbleBackend) Delete(key []byte) error {
	if atomic.LoadInt64(&p.open) == 0 {
		return ErrClosed
	}
	if err := p.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}

// Scan calls fn for every key with the given prefix, in key order.
func (p *PebbleBackend) Scan(prefix []byte, fn func(key, value []byte) error) error {
	if atomic.LoadInt64(&p.open) == 0 {
		return ErrClosed
	}
	upper := prefixUpperBound(prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("pebble iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("pebble scan: %w", err)
	}
	return nil
}

// prefixUpperBound returns the smallest key greater than every key with
// the prefix, or nil for an unbounded scan.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
