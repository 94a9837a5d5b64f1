// Package assets holds the registry of tradeable assets. Each entry
// binds a token id to its transfer handle, price feed, dividend ledger
// and decimal precisions. Entries are write-once: an id, once
// registered, never changes meaning.
package assets

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/barterlabs/goBarterd/internal/core/dividend"
	"github.com/barterlabs/goBarterd/internal/core/fixed"
	"github.com/barterlabs/goBarterd/internal/core/oracle"
)

var (
	// ErrUnknownAsset is returned when an id has no registered entry.
	ErrUnknownAsset = errors.New("assets: unknown asset")

	// ErrDuplicateAsset is returned when an id is registered twice.
	ErrDuplicateAsset = errors.New("assets: id already registered")

	// ErrUnauthorized is returned when a non-owner registers an asset.
	ErrUnauthorized = errors.New("assets: caller is not the registry owner")

	// ErrInvalidEntry is returned for entries missing required fields.
	ErrInvalidEntry = errors.New("assets: invalid entry")
)

// TransferHandle is the capability set the engine needs from a token.
// A transfer either fully happens or returns an error.
type TransferHandle interface {
	Transfer(from, to string, amount fixed.Amount) error
	BalanceOf(addr string) fixed.Amount
}

// Entry describes one registered asset.
type Entry struct {
	ID             uint32
	Symbol         string
	Token          TransferHandle
	Oracle         oracle.PriceSource
	Dividend       *dividend.Ledger
	TokenDecimals  uint8
	OracleDecimals uint8
}

// Registry is the asset table. Registration is restricted to the owner
// principal fixed at construction; resolution is open.
type Registry struct {
	mu      sync.RWMutex
	owner   string
	entries map[uint32]Entry
}

// NewRegistry returns an empty registry administered by owner.
func NewRegistry(owner string) *Registry {
	return &Registry{owner: owner, entries: make(map[uint32]Entry)}
}

// Owner returns the administering principal.
func (r *Registry) Owner() string { return r.owner }

// Add registers entry. Only the owner may call; ids are write-once.
func (r *Registry) Add(caller string, entry Entry) error {
	if caller != r.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	if entry.Token == nil || entry.Oracle == nil || entry.Dividend == nil {
		return fmt.Errorf("%w: id %d needs token, oracle and dividend ledger", ErrInvalidEntry, entry.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[entry.ID]; exists {
		return fmt.Errorf("%w: id %d", ErrDuplicateAsset, entry.ID)
	}
	r.entries[entry.ID] = entry
	return nil
}

// Resolve returns the entry for id.
func (r *Registry) Resolve(id uint32) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: id %d", ErrUnknownAsset, id)
	}
	return entry, nil
}

// IDs returns all registered ids in ascending order.
func (r *Registry) IDs() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint32, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
