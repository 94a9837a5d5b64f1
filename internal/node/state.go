package node

import (
	"errors"
	"fmt"

	"github.com/barterlabs/goBarterd/internal/core/dividend"
	"github.com/barterlabs/goBarterd/internal/core/tx"
	"github.com/barterlabs/goBarterd/internal/storage/statestore"
)

// Key layout. Offer keys zero-pad the id so lexicographic scan order is
// numeric order.
const (
	offerKeyPrefix    = "offer/"
	bankKeyPrefix     = "bank/"
	dividendKeyPrefix = "dividend/"
)

func offerKey(v tx.Variant, id uint64) string {
	return fmt.Sprintf("%s%s/%020d", offerKeyPrefix, v, id)
}

func bankKey(assetID uint32) string {
	return fmt.Sprintf("%s%d", bankKeyPrefix, assetID)
}

func dividendKey(assetID uint32) string {
	return fmt.Sprintf("%s%d", dividendKeyPrefix, assetID)
}

// bankRecord is the serialized balance sheet of one asset.
type bankRecord struct {
	Balances map[string]string `codec:"balances"`
}

// storePersister writes engine offer mutations through to the state
// store.
type storePersister struct {
	store *statestore.Store
}

func (p storePersister) PutOffer(o *tx.Offer) error {
	rec := o.Record()
	return p.store.PutRecord(offerKey(o.Variant, o.ID), rec)
}

// restoreOffers replays every persisted offer into the engine.
func (n *Node) restoreOffers() error {
	return n.store.ScanRecords(offerKeyPrefix, func(key string, decode func(out interface{}) error) error {
		var rec tx.OfferRecord
		if err := decode(&rec); err != nil {
			return err
		}
		offer, err := tx.OfferFromRecord(rec)
		if err != nil {
			return fmt.Errorf("node: restore %s: %w", key, err)
		}
		n.engine.RestoreOffer(offer)
		return nil
	})
}

// Snapshot persists every asset's balance sheet and dividend ledger.
// Offers are written through as they change and need no snapshot.
func (n *Node) Snapshot() error {
	for id, token := range n.tokens {
		if err := n.store.PutRecord(bankKey(id), bankRecord{Balances: token.Balances()}); err != nil {
			return err
		}
		entry, err := n.registry.Resolve(id)
		if err != nil {
			return err
		}
		if err := n.store.PutRecord(dividendKey(id), entry.Dividend.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

// loadBank returns the persisted balance sheet for an asset, or
// ok=false on first boot.
func loadBank(store *statestore.Store, assetID uint32) (bankRecord, bool, error) {
	var rec bankRecord
	err := store.GetRecord(bankKey(assetID), &rec)
	if errors.Is(err, statestore.ErrNotFound) {
		return bankRecord{}, false, nil
	}
	if err != nil {
		return bankRecord{}, false, err
	}
	return rec, true, nil
}

// loadDividend returns the persisted dividend ledger for an asset, or
// ok=false on first boot.
func loadDividend(store *statestore.Store, assetID uint32) (dividend.LedgerSnapshot, bool, error) {
	var snap dividend.LedgerSnapshot
	err := store.GetRecord(dividendKey(assetID), &snap)
	if errors.Is(err, statestore.ErrNotFound) {
		return dividend.LedgerSnapshot{}, false, nil
	}
	if err != nil {
		return dividend.LedgerSnapshot{}, false, err
	}
	return snap, true, nil
}
