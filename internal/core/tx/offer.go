package tx

import (
	"time"

	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// Variant distinguishes the two offer kinds. Sale and buy offers live
// in separate id namespaces.
type Variant uint8

const (
	Sale Variant = iota
	Buy
)

func (v Variant) String() string {
	switch v {
	case Sale:
		return "sale"
	case Buy:
		return "buy"
	default:
		return "unknown"
	}
}

// Status is the offer lifecycle state. Pending moves to Accepted or
// Cancelled; Accepted moves to Closed or Liquidated. Cancelled, Closed
// and Liquidated are terminal.
type Status uint8

const (
	Pending Status = iota
	Accepted
	Cancelled
	Closed
	Liquidated
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Accepted:
		return "accepted"
	case Cancelled:
		return "cancelled"
	case Closed:
		return "closed"
	case Liquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further mutation is permitted.
func (s Status) Terminal() bool {
	return s == Cancelled || s == Closed || s == Liquidated
}

// LockState marks whether a mutating operation currently holds the
// offer.
type LockState uint8

const (
	Unlocked LockState = iota
	Locked
)

func (l LockState) String() string {
	if l == Locked {
		return "locked"
	}
	return "unlocked"
}

// Offer is one bilateral deal. The goods asset moves to the buyer at
// acceptance; the buyer then owes the payment notional, backed by
// escrowed collateral, until repaid in full or liquidated.
//
// In a sale offer the maker is the seller and escrows the goods at
// creation. In a buy offer the maker is the buyer and escrows
// collateral at creation; the accepting seller delivers the goods.
type Offer struct {
	ID      uint64
	Variant Variant
	Status  Status
	Lock    LockState

	// Exactly one of Seller/Buyer is unset while Pending.
	Seller string
	Buyer  string

	// Goods: what the buyer receives.
	GoodsAmount fixed.Amount
	GoodsID     uint32

	// Rate converts whole goods units into whole payment units.
	Rate      fixed.Ratio
	PaymentID uint32

	// Debt, in payment smallest units. Notional is fixed at acceptance;
	// Outstanding decreases with repayments.
	PaymentNotional fixed.Amount
	Outstanding     fixed.Amount

	// Collateral escrow. CollateralSet is false on a sale offer until a
	// buyer accepts and chooses the collateral asset.
	CollateralAmount fixed.Amount
	CollateralID     uint32
	CollateralSet    bool

	RepayWindow  time.Duration
	CreatedAt    time.Time
	TimeAccepted time.Time

	CollateralToDebt fixed.Ratio
	Liquidation      fixed.Ratio
}

// Debtor returns the account owing the payment, empty while no buyer
// exists.
func (o *Offer) Debtor() string { return o.Buyer }

// Creditor returns the account owed the payment, empty while no seller
// exists.
func (o *Offer) Creditor() string { return o.Seller }

// Maker returns the account that created the offer.
func (o *Offer) Maker() string {
	if o.Variant == Sale {
		return o.Seller
	}
	return o.Buyer
}

// RepayDeadline returns the instant after which repayment is refused.
// Zero until accepted.
func (o *Offer) RepayDeadline() time.Time {
	if o.TimeAccepted.IsZero() {
		return time.Time{}
	}
	return o.TimeAccepted.Add(o.RepayWindow)
}

// clone returns a deep copy safe to hand out of the engine.
func (o *Offer) clone() *Offer {
	c := *o
	return &c
}
