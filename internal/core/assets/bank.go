package assets

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// ErrInsufficientFunds is returned when a transfer exceeds the sender's
// balance.
var ErrInsufficientFunds = errors.New("assets: insufficient funds")

// Token is an in-process asset ledger implementing TransferHandle. The
// daemon uses it for locally issued assets; tests use it as the
// standard fixture.
type Token struct {
	mu       sync.Mutex
	symbol   string
	decimals uint8
	balances map[string]*big.Int
	supply   *big.Int
}

// NewToken returns an empty token ledger.
func NewToken(symbol string, decimals uint8) *Token {
	return &Token{
		symbol:   symbol,
		decimals: decimals,
		balances: make(map[string]*big.Int),
		supply:   new(big.Int),
	}
}

// Symbol returns the token's display symbol.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the token's smallest-unit precision.
func (t *Token) Decimals() uint8 { return t.decimals }

// Mint issues amount new units to addr.
func (t *Token) Mint(addr string, amount fixed.Amount) {
	if amount.IsZero() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(addr, amount.BigInt())
	t.supply.Add(t.supply, amount.BigInt())
}

// Transfer moves amount from one account to another. It implements
// TransferHandle.
func (t *Token) Transfer(from, to string, amount fixed.Amount) error {
	if amount.IsZero() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount.BigInt()) < 0 {
		have := new(big.Int)
		if ok {
			have = bal
		}
		return fmt.Errorf("%w: %s %s has %s, needs %s", ErrInsufficientFunds, t.symbol, from, have, amount)
	}
	bal.Sub(bal, amount.BigInt())
	t.credit(to, amount.BigInt())
	return nil
}

// BalanceOf returns addr's balance. It implements TransferHandle.
func (t *Token) BalanceOf(addr string) fixed.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[addr]
	if !ok {
		return fixed.Amount{}
	}
	amt, _ := fixed.NewAmount(bal)
	return amt
}

// TotalSupply returns the minted supply.
func (t *Token) TotalSupply() fixed.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	amt, _ := fixed.NewAmount(t.supply)
	return amt
}

// Balances returns a copy of all balances, for snapshots.
func (t *Token) Balances() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.balances))
	for addr, bal := range t.balances {
		if bal.Sign() != 0 {
			out[addr] = bal.String()
		}
	}
	return out
}

// SetBalances replaces all balances from a snapshot.
func (t *Token) SetBalances(balances map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := make(map[string]*big.Int, len(balances))
	supply := new(big.Int)
	for addr, s := range balances {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 {
			return fmt.Errorf("assets: snapshot balance %q for %s is not a non-negative integer", s, addr)
		}
		next[addr] = v
		supply.Add(supply, v)
	}
	t.balances = next
	t.supply = supply
	return nil
}

func (t *Token) credit(addr string, amount *big.Int) {
	bal, ok := t.balances[addr]
	if !ok {
		bal = new(big.Int)
		t.balances[addr] = bal
	}
	bal.Add(bal, amount)
}
