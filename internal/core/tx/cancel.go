package tx

import "fmt"

// CancelOffer withdraws a pending offer. Only the maker may cancel;
// the creation escrow is refunded in full. Cancelling anything but a
// pending offer, including an already cancelled one, is InvalidState.
type CancelOffer struct {
	Caller  string
	Variant Variant
	OfferID uint64
}

// Validate implements Operation.
func (op CancelOffer) Validate() error {
	if op.Caller == "" {
		return fmt.Errorf("%w: missing caller account", ErrUnauthorized)
	}
	return nil
}

// Apply implements Operation.
func (op CancelOffer) Apply(ctx *ApplyContext) ApplyResult {
	offer, code := ctx.lockOffer(op.Variant, op.OfferID)
	if code != Success {
		return applied(code)
	}
	defer ctx.unlockOffer(offer)

	if offer.Status != Pending {
		return applied(InvalidState)
	}
	if op.Caller != offer.Maker() {
		return applied(Unauthorized)
	}

	if offer.Variant == Sale {
		goods, err := ctx.resolve(offer.GoodsID)
		if err != nil {
			return applied(UnknownAsset)
		}
		if err := goods.Token.Transfer(CustodyAccount, offer.Seller, offer.GoodsAmount); err != nil {
			ctx.logf("cancel sale %d: escrow release failed: %v", offer.ID, err)
			return applied(TransferFailed)
		}
	} else {
		collateral, err := ctx.resolve(offer.CollateralID)
		if err != nil {
			return applied(UnknownAsset)
		}
		if err := collateral.Token.Transfer(CustodyAccount, offer.Buyer, offer.CollateralAmount); err != nil {
			ctx.logf("cancel buy %d: escrow release failed: %v", offer.ID, err)
			return applied(TransferFailed)
		}
	}

	offer.Status = Cancelled
	ctx.commit(offer)
	return ApplyResult{Code: Success, Offer: ctx.snapshot(offer)}
}
