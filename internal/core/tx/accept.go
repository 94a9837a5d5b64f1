package tx

import "fmt"

// AcceptSaleOffer takes a pending sale offer. The acceptor becomes the
// buyer and debtor: they choose the collateral asset, escrow collateral
// sized against the payment notional, pay the protocol fee and receive
// the escrowed goods. The payment itself is deferred until repayment.
type AcceptSaleOffer struct {
	Acceptor     string
	OfferID      uint64
	CollateralID uint32
}

// Validate implements Operation.
func (op AcceptSaleOffer) Validate() error {
	if op.Acceptor == "" {
		return fmt.Errorf("%w: missing acceptor account", ErrUnauthorized)
	}
	return nil
}

// Apply implements Operation.
func (op AcceptSaleOffer) Apply(ctx *ApplyContext) ApplyResult {
	offer, code := ctx.lockOffer(Sale, op.OfferID)
	if code != Success {
		return applied(code)
	}
	defer ctx.unlockOffer(offer)

	if offer.Status != Pending {
		return applied(InvalidState)
	}
	if op.Acceptor == offer.Seller {
		return applied(Unauthorized)
	}

	goods, err := ctx.resolve(offer.GoodsID)
	if err != nil {
		return applied(UnknownAsset)
	}
	payment, err := ctx.resolve(offer.PaymentID)
	if err != nil {
		return applied(UnknownAsset)
	}
	collateral, err := ctx.resolve(op.CollateralID)
	if err != nil {
		return applied(UnknownAsset)
	}

	escrow, err := requiredCollateral(offer.PaymentNotional, offer.CollateralToDebt, payment, collateral)
	if err != nil {
		ctx.logf("accept sale %d: collateral sizing failed: %v", offer.ID, err)
		return applied(OracleUnavailable)
	}
	fee := offer.PaymentNotional.MulBps(ctx.feeBps())

	// Inbound escrows first; each is refunded if a later step refuses.
	if err := collateral.Token.Transfer(op.Acceptor, CustodyAccount, escrow); err != nil {
		return applied(transferResult(err))
	}
	if err := payment.Token.Transfer(op.Acceptor, CustodyAccount, fee); err != nil {
		ctx.refund(collateral, op.Acceptor, escrow)
		return applied(transferResult(err))
	}
	if err := goods.Token.Transfer(CustodyAccount, op.Acceptor, offer.GoodsAmount); err != nil {
		ctx.logf("accept sale %d: goods release failed: %v", offer.ID, err)
		ctx.refund(payment, op.Acceptor, fee)
		ctx.refund(collateral, op.Acceptor, escrow)
		return applied(TransferFailed)
	}
	payment.Dividend.Deposit(fee)

	offer.Buyer = op.Acceptor
	offer.CollateralAmount = escrow
	offer.CollateralID = op.CollateralID
	offer.CollateralSet = true
	offer.Outstanding = offer.PaymentNotional
	offer.TimeAccepted = ctx.now()
	offer.Status = Accepted
	ctx.commit(offer)
	return ApplyResult{Code: Success, Offer: ctx.snapshot(offer), Amount: fee}
}

// AcceptBuyOffer takes a pending buy offer. The acceptor becomes the
// seller and creditor: they deliver the goods to the maker, whose
// collateral is already escrowed. The maker, now the debtor, pays the
// protocol fee and owes the payment notional.
type AcceptBuyOffer struct {
	Acceptor string
	OfferID  uint64
}

// Validate implements Operation.
func (op AcceptBuyOffer) Validate() error {
	if op.Acceptor == "" {
		return fmt.Errorf("%w: missing acceptor account", ErrUnauthorized)
	}
	return nil
}

// Apply implements Operation.
func (op AcceptBuyOffer) Apply(ctx *ApplyContext) ApplyResult {
	offer, code := ctx.lockOffer(Buy, op.OfferID)
	if code != Success {
		return applied(code)
	}
	defer ctx.unlockOffer(offer)

	if offer.Status != Pending {
		return applied(InvalidState)
	}
	if op.Acceptor == offer.Buyer {
		return applied(Unauthorized)
	}

	goods, err := ctx.resolve(offer.GoodsID)
	if err != nil {
		return applied(UnknownAsset)
	}
	payment, err := ctx.resolve(offer.PaymentID)
	if err != nil {
		return applied(UnknownAsset)
	}

	fee := offer.PaymentNotional.MulBps(ctx.feeBps())

	if err := goods.Token.Transfer(op.Acceptor, CustodyAccount, offer.GoodsAmount); err != nil {
		return applied(transferResult(err))
	}
	if err := payment.Token.Transfer(offer.Buyer, CustodyAccount, fee); err != nil {
		ctx.refund(goods, op.Acceptor, offer.GoodsAmount)
		return applied(transferResult(err))
	}
	if err := goods.Token.Transfer(CustodyAccount, offer.Buyer, offer.GoodsAmount); err != nil {
		ctx.logf("accept buy %d: goods release failed: %v", offer.ID, err)
		ctx.refund(payment, offer.Buyer, fee)
		ctx.refund(goods, op.Acceptor, offer.GoodsAmount)
		return applied(TransferFailed)
	}
	payment.Dividend.Deposit(fee)

	offer.Seller = op.Acceptor
	offer.Outstanding = offer.PaymentNotional
	offer.TimeAccepted = ctx.now()
	offer.Status = Accepted
	ctx.commit(offer)
	return ApplyResult{Code: Success, Offer: ctx.snapshot(offer), Amount: fee}
}
