package dividend

import "github.com/barterlabs/goBarterd/internal/core/fixed"

// ShareToken exposes a ledger's ownership shares as a transferable
// token. Every transfer routes through the ledger's OnShareTransfer so
// the checkpoint adjustment and the balance move cannot get out of
// order.
type ShareToken struct {
	ledger *Ledger
}

// NewShareToken wraps ledger.
func NewShareToken(ledger *Ledger) *ShareToken {
	return &ShareToken{ledger: ledger}
}

// Transfer moves amount shares between holders.
func (t *ShareToken) Transfer(from, to string, amount fixed.Amount) error {
	return t.ledger.OnShareTransfer(from, to, amount)
}

// BalanceOf returns addr's share balance.
func (t *ShareToken) BalanceOf(addr string) fixed.Amount {
	return t.ledger.SharesOf(addr)
}

// Ledger returns the backing ledger.
func (t *ShareToken) Ledger() *Ledger { return t.ledger }
