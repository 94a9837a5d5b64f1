package tx

import (
	"errors"
	"fmt"
	"time"

	"github.com/barterlabs/goBarterd/internal/core/assets"
	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// transferResult maps a transfer error onto a Result.
func transferResult(err error) Result {
	if errors.Is(err, assets.ErrInsufficientFunds) {
		return InsufficientFunds
	}
	return TransferFailed
}

func validateTerms(maker string, goodsAmount fixed.Amount, rate fixed.Ratio, goodsID, paymentID uint32, window time.Duration, cd, liq fixed.Ratio) error {
	if maker == "" {
		return fmt.Errorf("%w: missing maker account", ErrUnauthorized)
	}
	if goodsAmount.IsZero() {
		return fmt.Errorf("%w: zero amount", ErrInvalidRatio)
	}
	if rate.IsZero() {
		return fmt.Errorf("%w: zero exchange rate", ErrInvalidRatio)
	}
	if goodsID == paymentID {
		return fmt.Errorf("%w: goods and payment assets are the same", ErrInvalidRatio)
	}
	if window <= 0 {
		return fmt.Errorf("%w: non-positive repayment window", ErrInvalidRatio)
	}
	return validateRatios(cd, liq)
}

// CreateSaleOffer posts an offer to sell GoodsAmount of GoodsID at Rate,
// payable in PaymentID. The goods are escrowed from the maker until a
// buyer accepts or the maker cancels.
type CreateSaleOffer struct {
	Maker            string
	GoodsAmount      fixed.Amount
	GoodsID          uint32
	Rate             fixed.Ratio
	PaymentID        uint32
	RepayWindow      time.Duration
	CollateralToDebt fixed.Ratio
	Liquidation      fixed.Ratio
}

// Validate implements Operation.
func (op CreateSaleOffer) Validate() error {
	return validateTerms(op.Maker, op.GoodsAmount, op.Rate, op.GoodsID, op.PaymentID,
		op.RepayWindow, op.CollateralToDebt, op.Liquidation)
}

// Apply implements Operation.
func (op CreateSaleOffer) Apply(ctx *ApplyContext) ApplyResult {
	goods, err := ctx.resolve(op.GoodsID)
	if err != nil {
		return applied(UnknownAsset)
	}
	payment, err := ctx.resolve(op.PaymentID)
	if err != nil {
		return applied(UnknownAsset)
	}

	if err := goods.Token.Transfer(op.Maker, CustodyAccount, op.GoodsAmount); err != nil {
		ctx.logf("sale offer escrow refused for %s: %v", op.Maker, err)
		return applied(transferResult(err))
	}

	offer := &Offer{
		Variant:          Sale,
		Status:           Pending,
		Lock:             Unlocked,
		Seller:           op.Maker,
		GoodsAmount:      op.GoodsAmount,
		GoodsID:          op.GoodsID,
		Rate:             op.Rate,
		PaymentID:        op.PaymentID,
		PaymentNotional:  paymentNotional(op.GoodsAmount, op.Rate, goods, payment),
		RepayWindow:      op.RepayWindow,
		CreatedAt:        ctx.now(),
		CollateralToDebt: op.CollateralToDebt,
		Liquidation:      op.Liquidation,
	}
	ctx.insertOffer(offer)
	ctx.commit(offer)
	return ApplyResult{Code: Success, Offer: offer.clone()}
}

// CreateBuyOffer posts an offer to buy GoodsAmount of GoodsID at Rate,
// paying in PaymentID. The maker is the future debtor and escrows
// collateral in CollateralID immediately, sized by the
// collateral-to-debt ratio against the payment notional.
type CreateBuyOffer struct {
	Maker            string
	GoodsAmount      fixed.Amount
	GoodsID          uint32
	Rate             fixed.Ratio
	PaymentID        uint32
	CollateralID     uint32
	RepayWindow      time.Duration
	CollateralToDebt fixed.Ratio
	Liquidation      fixed.Ratio
}

// Validate implements Operation.
func (op CreateBuyOffer) Validate() error {
	return validateTerms(op.Maker, op.GoodsAmount, op.Rate, op.GoodsID, op.PaymentID,
		op.RepayWindow, op.CollateralToDebt, op.Liquidation)
}

// Apply implements Operation.
func (op CreateBuyOffer) Apply(ctx *ApplyContext) ApplyResult {
	goods, err := ctx.resolve(op.GoodsID)
	if err != nil {
		return applied(UnknownAsset)
	}
	payment, err := ctx.resolve(op.PaymentID)
	if err != nil {
		return applied(UnknownAsset)
	}
	collateral, err := ctx.resolve(op.CollateralID)
	if err != nil {
		return applied(UnknownAsset)
	}

	notional := paymentNotional(op.GoodsAmount, op.Rate, goods, payment)
	escrow, err := requiredCollateral(notional, op.CollateralToDebt, payment, collateral)
	if err != nil {
		ctx.logf("buy offer collateral sizing failed for %s: %v", op.Maker, err)
		return applied(OracleUnavailable)
	}

	if err := collateral.Token.Transfer(op.Maker, CustodyAccount, escrow); err != nil {
		ctx.logf("buy offer escrow refused for %s: %v", op.Maker, err)
		return applied(transferResult(err))
	}

	offer := &Offer{
		Variant:          Buy,
		Status:           Pending,
		Lock:             Unlocked,
		Buyer:            op.Maker,
		GoodsAmount:      op.GoodsAmount,
		GoodsID:          op.GoodsID,
		Rate:             op.Rate,
		PaymentID:        op.PaymentID,
		PaymentNotional:  notional,
		CollateralAmount: escrow,
		CollateralID:     op.CollateralID,
		CollateralSet:    true,
		RepayWindow:      op.RepayWindow,
		CreatedAt:        ctx.now(),
		CollateralToDebt: op.CollateralToDebt,
		Liquidation:      op.Liquidation,
	}
	ctx.insertOffer(offer)
	ctx.commit(offer)
	return ApplyResult{Code: Success, Offer: offer.clone()}
}
