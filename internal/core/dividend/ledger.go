// Package dividend implements the pro-rata fee distribution ledger.
// Each fee-receiving asset owns one Ledger; protocol fees deposited
// into it accrue to holders of the ledger's ownership shares in
// proportion to their balance at deposit time, and accrued claims
// travel with the shares when they change hands.
package dividend

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// MagnitudeBits scales the per-share accumulator so that integer
// division loses at most one smallest unit per deposit.
const MagnitudeBits = 128

var (
	// ErrUnauthorized is returned when a caller collects for someone else.
	ErrUnauthorized = errors.New("dividend: caller is not the holder")

	// ErrNothingToCollect is returned when a holder has no accrued claim.
	ErrNothingToCollect = errors.New("dividend: nothing to collect")

	// ErrInsufficientShares is returned on a transfer exceeding the
	// sender's balance.
	ErrInsufficientShares = errors.New("dividend: insufficient shares")
)

// Payout moves the underlying fee asset out of ledger custody to a
// holder. The engine wires this to the asset's transfer handle.
type Payout interface {
	Pay(to string, amount fixed.Amount) error
}

// PayoutFunc adapts a function to the Payout interface.
type PayoutFunc func(to string, amount fixed.Amount) error

// Pay implements Payout.
func (f PayoutFunc) Pay(to string, amount fixed.Amount) error { return f(to, amount) }

type holderState struct {
	shares     *big.Int
	checkpoint *big.Int
	withdrawn  *big.Int
}

// Ledger tracks ownership shares and the magnitude-scaled dividend
// accumulator for one fee asset. All mutating methods are safe for
// concurrent use.
type Ledger struct {
	mu          sync.Mutex
	totalShares *big.Int
	accPerShare *big.Int
	holders     map[string]*holderState

	deposited *big.Int
	withdrawn *big.Int
	payout    Payout
}

// NewLedger returns an empty ledger whose collected dividends are paid
// out through payout.
func NewLedger(payout Payout) *Ledger {
	return &Ledger{
		totalShares: new(big.Int),
		accPerShare: new(big.Int),
		holders:     make(map[string]*holderState),
		deposited:   new(big.Int),
		withdrawn:   new(big.Int),
		payout:      payout,
	}
}

func (l *Ledger) holder(addr string) *holderState {
	h, ok := l.holders[addr]
	if !ok {
		h = &holderState{shares: new(big.Int), checkpoint: new(big.Int), withdrawn: new(big.Int)}
		l.holders[addr] = h
	}
	return h
}

// MintShares issues amount new shares to addr. Fresh shares enter at
// the current accumulator, so a mint never grants a claim on earlier
// deposits.
func (l *Ledger) MintShares(addr string, amount fixed.Amount) {
	if amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.holder(addr)
	h.checkpoint = weightedCheckpoint(h.shares, h.checkpoint, amount.BigInt(), l.accPerShare)
	h.shares.Add(h.shares, amount.BigInt())
	l.totalShares.Add(l.totalShares, amount.BigInt())
}

// Deposit credits amount of the underlying to the share holders. The
// underlying must already sit in ledger custody. With no shares
// outstanding the amount is retained as undistributed dust rather than
// rejected.
func (l *Ledger) Deposit(amount fixed.Amount) {
	if amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deposited.Add(l.deposited, amount.BigInt())
	if l.totalShares.Sign() == 0 {
		return
	}
	delta := new(big.Int).Lsh(amount.BigInt(), MagnitudeBits)
	delta.Quo(delta, l.totalShares)
	l.accPerShare.Add(l.accPerShare, delta)
}

// OnShareTransfer moves amount shares from one holder to another,
// re-anchoring the receiver's checkpoint first so accrued claims travel
// with the shares. The checkpoint adjustment always precedes the
// balance move; callers must not mutate balances themselves.
func (l *Ledger) OnShareTransfer(from, to string, amount fixed.Amount) error {
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	sender := l.holder(from)
	if sender.shares.Cmp(amount.BigInt()) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientShares, from, sender.shares, amount)
	}
	receiver := l.holder(to)
	// Receiver checkpoint becomes the share-weighted average of both
	// parties' checkpoints at pre-transfer balances, rounded up so dust
	// stays with the ledger. The sender's checkpoint is unchanged.
	receiver.checkpoint = weightedCheckpoint(receiver.shares, receiver.checkpoint, amount.BigInt(), sender.checkpoint)
	sender.shares.Sub(sender.shares, amount.BigInt())
	receiver.shares.Add(receiver.shares, amount.BigInt())
	return nil
}

// weightedCheckpoint returns ceil((aShares*aCP + bShares*bCP) /
// (aShares+bShares)). Both share counts zero yields bCP.
func weightedCheckpoint(aShares, aCP, bShares, bCP *big.Int) *big.Int {
	total := new(big.Int).Add(aShares, bShares)
	if total.Sign() == 0 {
		return new(big.Int).Set(bCP)
	}
	num := new(big.Int).Mul(aShares, aCP)
	num.Add(num, new(big.Int).Mul(bShares, bCP))
	return fixed.CeilDiv(num, total)
}

func (l *Ledger) claimableLocked(h *holderState) *big.Int {
	owed := new(big.Int).Sub(l.accPerShare, h.checkpoint)
	if owed.Sign() <= 0 {
		return new(big.Int)
	}
	owed.Mul(owed, h.shares)
	return owed.Rsh(owed, MagnitudeBits)
}

// Claimable returns the amount addr could collect right now.
func (l *Ledger) Claimable(addr string) fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holders[addr]
	if !ok {
		return fixed.Amount{}
	}
	amt, _ := fixed.NewAmount(l.claimableLocked(h))
	return amt
}

// Collect pays holder their accrued dividends. Only the holder may
// trigger their own collection. The payout runs before the checkpoint
// advances, so a failed transfer leaves the claim intact.
func (l *Ledger) Collect(caller, holder string) (fixed.Amount, error) {
	if caller != holder {
		return fixed.Amount{}, fmt.Errorf("%w: %s collecting for %s", ErrUnauthorized, caller, holder)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holders[holder]
	if !ok {
		return fixed.Amount{}, ErrNothingToCollect
	}
	owed := l.claimableLocked(h)
	if owed.Sign() == 0 {
		return fixed.Amount{}, ErrNothingToCollect
	}
	amount, _ := fixed.NewAmount(owed)
	if err := l.payout.Pay(holder, amount); err != nil {
		return fixed.Amount{}, err
	}
	h.checkpoint = new(big.Int).Set(l.accPerShare)
	h.withdrawn.Add(h.withdrawn, owed)
	l.withdrawn.Add(l.withdrawn, owed)
	return amount, nil
}

// SharesOf returns addr's share balance.
func (l *Ledger) SharesOf(addr string) fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holders[addr]
	if !ok {
		return fixed.Amount{}
	}
	amt, _ := fixed.NewAmount(h.shares)
	return amt
}

// TotalShares returns the outstanding share supply.
func (l *Ledger) TotalShares() fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	amt, _ := fixed.NewAmount(l.totalShares)
	return amt
}

// Deposited returns the lifetime sum of deposits.
func (l *Ledger) Deposited() fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	amt, _ := fixed.NewAmount(l.deposited)
	return amt
}

// Withdrawn returns the lifetime sum of collected dividends.
func (l *Ledger) Withdrawn() fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	amt, _ := fixed.NewAmount(l.withdrawn)
	return amt
}

// Dust returns the deposited value not currently claimable by any
// holder and not yet withdrawn. It only grows, by at most one smallest
// unit per deposit plus rounding on share transfers.
func (l *Ledger) Dust() fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	dust := new(big.Int).Sub(l.deposited, l.withdrawn)
	for _, h := range l.holders {
		dust.Sub(dust, l.claimableLocked(h))
	}
	amt, _ := fixed.NewAmount(dust)
	return amt
}
