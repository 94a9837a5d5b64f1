package tx

import (
	"fmt"
	"math/big"

	"github.com/barterlabs/goBarterd/internal/core/assets"
	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// Liquidate seizes the collateral of an accepted offer for the
// creditor. Anyone may trigger it, but it only succeeds once the
// repayment window has expired or the collateral value has fallen
// below the liquidation ratio times the outstanding debt. The value
// comparison rounds the collateral down and the debt up, so a
// borderline position liquidates.
type Liquidate struct {
	Caller  string
	Variant Variant
	OfferID uint64
}

// Validate implements Operation.
func (op Liquidate) Validate() error {
	if op.Caller == "" {
		return fmt.Errorf("%w: missing caller account", ErrUnauthorized)
	}
	return nil
}

// Apply implements Operation.
func (op Liquidate) Apply(ctx *ApplyContext) ApplyResult {
	offer, code := ctx.lockOffer(op.Variant, op.OfferID)
	if code != Success {
		return applied(code)
	}
	defer ctx.unlockOffer(offer)

	if offer.Status != Accepted {
		return applied(InvalidState)
	}

	collateral, err := ctx.resolve(offer.CollateralID)
	if err != nil {
		return applied(UnknownAsset)
	}

	if !ctx.now().After(offer.RepayDeadline()) {
		payment, err := ctx.resolve(offer.PaymentID)
		if err != nil {
			return applied(UnknownAsset)
		}
		under, err := undercollateralized(offer, payment, collateral)
		if err != nil {
			ctx.logf("liquidate %s %d: %v", offer.Variant, offer.ID, err)
			return applied(OracleUnavailable)
		}
		if !under {
			return applied(NotLiquidatable)
		}
	}

	if err := collateral.Token.Transfer(CustodyAccount, offer.Creditor(), offer.CollateralAmount); err != nil {
		ctx.logf("liquidate %s %d: collateral release failed: %v", offer.Variant, offer.ID, err)
		return applied(TransferFailed)
	}

	offer.CollateralAmount = fixed.Amount{}
	offer.Status = Liquidated
	ctx.commit(offer)
	return ApplyResult{Code: Success, Offer: ctx.snapshot(offer)}
}

// undercollateralized reports whether the collateral, repriced into the
// payment asset, covers less than the liquidation ratio times the debt.
func undercollateralized(offer *Offer, payment, collateral assets.Entry) (bool, error) {
	value, err := convert(offer.CollateralAmount, collateral, payment, false)
	if err != nil {
		return false, err
	}
	// value/debt < liq  without dividing:  value * 1e18 < liq * debt.
	lhs := new(big.Int).Mul(value.BigInt(), fixed.OneScale)
	rhs := new(big.Int).Mul(offer.Liquidation.BigInt(), offer.Outstanding.BigInt())
	return lhs.Cmp(rhs) < 0, nil
}
