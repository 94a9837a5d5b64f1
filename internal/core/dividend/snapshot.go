package dividend

import (
	"fmt"
	"math/big"
)

// HolderSnapshot is the serializable state of one holder.
type HolderSnapshot struct {
	Shares     string `codec:"shares"`
	Checkpoint string `codec:"checkpoint"`
	Withdrawn  string `codec:"withdrawn"`
}

// LedgerSnapshot is the serializable state of a ledger. Big integers
// are carried as base-10 strings.
type LedgerSnapshot struct {
	TotalShares string                    `codec:"total_shares"`
	AccPerShare string                    `codec:"acc_per_share"`
	Deposited   string                    `codec:"deposited"`
	Withdrawn   string                    `codec:"withdrawn"`
	Holders     map[string]HolderSnapshot `codec:"holders"`
}

// Snapshot captures the ledger state for persistence.
func (l *Ledger) Snapshot() LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := LedgerSnapshot{
		TotalShares: l.totalShares.String(),
		AccPerShare: l.accPerShare.String(),
		Deposited:   l.deposited.String(),
		Withdrawn:   l.withdrawn.String(),
		Holders:     make(map[string]HolderSnapshot, len(l.holders)),
	}
	for addr, h := range l.holders {
		snap.Holders[addr] = HolderSnapshot{
			Shares:     h.shares.String(),
			Checkpoint: h.checkpoint.String(),
			Withdrawn:  h.withdrawn.String(),
		}
	}
	return snap
}

// RestoreLedger rebuilds a ledger from a snapshot, paying collections
// out through payout.
func RestoreLedger(snap LedgerSnapshot, payout Payout) (*Ledger, error) {
	l := NewLedger(payout)
	var err error
	if l.totalShares, err = parseBig(snap.TotalShares, "total shares"); err != nil {
		return nil, err
	}
	if l.accPerShare, err = parseBig(snap.AccPerShare, "accumulator"); err != nil {
		return nil, err
	}
	if l.deposited, err = parseBig(snap.Deposited, "deposited"); err != nil {
		return nil, err
	}
	if l.withdrawn, err = parseBig(snap.Withdrawn, "withdrawn"); err != nil {
		return nil, err
	}
	for addr, hs := range snap.Holders {
		h := &holderState{}
		if h.shares, err = parseBig(hs.Shares, "shares"); err != nil {
			return nil, err
		}
		if h.checkpoint, err = parseBig(hs.Checkpoint, "checkpoint"); err != nil {
			return nil, err
		}
		if h.withdrawn, err = parseBig(hs.Withdrawn, "withdrawn"); err != nil {
			return nil, err
		}
		l.holders[addr] = h
	}
	return l, nil
}

func parseBig(s, field string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("dividend: snapshot %s %q is not a non-negative integer", field, s)
	}
	return v, nil
}
