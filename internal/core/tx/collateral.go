package tx

import (
	"fmt"

	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// AddCollateral tops up the escrow of an accepted offer. Only the
// debtor may add, and only in the offer's collateral asset.
type AddCollateral struct {
	Caller  string
	Variant Variant
	OfferID uint64
	Amount  fixed.Amount
}

// Validate implements Operation.
func (op AddCollateral) Validate() error {
	if op.Caller == "" {
		return fmt.Errorf("%w: missing caller account", ErrUnauthorized)
	}
	if op.Amount.IsZero() {
		return fmt.Errorf("%w: zero collateral amount", ErrInvalidRatio)
	}
	return nil
}

// Apply implements Operation.
func (op AddCollateral) Apply(ctx *ApplyContext) ApplyResult {
	offer, code := ctx.lockOffer(op.Variant, op.OfferID)
	if code != Success {
		return applied(code)
	}
	defer ctx.unlockOffer(offer)

	if offer.Status != Accepted {
		return applied(InvalidState)
	}
	if op.Caller != offer.Debtor() {
		return applied(Unauthorized)
	}

	collateral, err := ctx.resolve(offer.CollateralID)
	if err != nil {
		return applied(UnknownAsset)
	}
	if err := collateral.Token.Transfer(op.Caller, CustodyAccount, op.Amount); err != nil {
		return applied(transferResult(err))
	}

	offer.CollateralAmount = offer.CollateralAmount.Add(op.Amount)
	ctx.commit(offer)
	return ApplyResult{Code: Success, Offer: ctx.snapshot(offer), Amount: op.Amount}
}
