package tx

import (
	"fmt"

	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// Repay pays down the debt of an accepted offer. Partial repayments
// are allowed while the repayment window is open; each installment
// moves directly from the debtor to the creditor. A zero Amount repays
// the full outstanding debt; an Amount above the outstanding debt is
// clamped to it. When the debt reaches zero the remaining collateral
// is released to the debtor and the offer closes.
type Repay struct {
	Caller  string
	Variant Variant
	OfferID uint64
	Amount  fixed.Amount
}

// Validate implements Operation.
func (op Repay) Validate() error {
	if op.Caller == "" {
		return fmt.Errorf("%w: missing caller account", ErrUnauthorized)
	}
	return nil
}

// Apply implements Operation.
func (op Repay) Apply(ctx *ApplyContext) ApplyResult {
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
	if ctx.now().After(offer.RepayDeadline()) {
		return applied(RepayWindowExpired)
	}

	payment, err := ctx.resolve(offer.PaymentID)
	if err != nil {
		return applied(UnknownAsset)
	}
	// Resolved up front: once the installment has moved, nothing may
	// fail short of committing the reduced debt.
	collateral, err := ctx.resolve(offer.CollateralID)
	if err != nil {
		return applied(UnknownAsset)
	}

	installment := op.Amount
	if installment.IsZero() || installment.Cmp(offer.Outstanding) > 0 {
		installment = offer.Outstanding
	}
	if installment.IsZero() {
		return applied(InvalidState)
	}

	if err := payment.Token.Transfer(offer.Debtor(), offer.Creditor(), installment); err != nil {
		return applied(transferResult(err))
	}

	remaining, err := offer.Outstanding.Sub(installment)
	if err != nil {
		ctx.logf("repay %s %d: outstanding underflow: %v", offer.Variant, offer.ID, err)
		return applied(Internal)
	}
	offer.Outstanding = remaining

	if remaining.IsZero() {
		ctx.refund(collateral, offer.Debtor(), offer.CollateralAmount)
		offer.CollateralAmount = fixed.Amount{}
		offer.Status = Closed
	}
	ctx.commit(offer)
	return ApplyResult{Code: Success, Offer: ctx.snapshot(offer), Amount: installment}
}
