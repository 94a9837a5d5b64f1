package tx

import (
	"io"
	"log"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barterlabs/goBarterd/internal/core/assets"
	"github.com/barterlabs/goBarterd/internal/core/dividend"
	"github.com/barterlabs/goBarterd/internal/core/fixed"
	"github.com/barterlabs/goBarterd/internal/core/oracle"
)

const (
	btcID uint32 = 1
	usdID uint32 = 2
	ethID uint32 = 3

	seller = "seller"
	buyer  = "buyer"
	rando  = "rando"

	testWindow = 7 * 24 * time.Hour
)

func mustRatio(t *testing.T, s string) fixed.Ratio {
	t.Helper()
	r, err := fixed.ParseRatio(s)
	require.NoError(t, err)
	return r
}

func mustAmount(t *testing.T, s string) fixed.Amount {
	t.Helper()
	a, err := fixed.ParseAmount(s)
	require.NoError(t, err)
	return a
}

type fixture struct {
	t      *testing.T
	engine *Engine
	reg    *assets.Registry
	btc    *assets.Token
	usd    *assets.Token
	eth    *assets.Token
	feed   *oracle.StaticSource
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		clock: time.Unix(1700000000, 0).UTC(),
		feed:  oracle.NewStaticSource(),
		reg:   assets.NewRegistry("owner"),
		btc:   assets.NewToken("BTC", 18),
		usd:   assets.NewToken("USD", 18),
		eth:   assets.NewToken("ETH", 18),
	}
	f.addAsset(btcID, f.btc, 30000)
	f.addAsset(usdID, f.usd, 1)
	f.addAsset(ethID, f.eth, 2000)
	f.engine = NewEngine(EngineConfig{
		Registry: f.reg,
		Now:      func() time.Time { return f.clock },
		Logger:   log.New(io.Discard, "", 0),
	})
	return f
}

func (f *fixture) addAsset(id uint32, tok *assets.Token, price int64) {
	f.t.Helper()
	scaled := new(big.Int).Mul(big.NewInt(price), fixed.OneScale)
	require.NoError(f.t, f.feed.Set(id, scaled, 18))
	ledger := dividend.NewLedger(dividend.PayoutFunc(func(to string, amount fixed.Amount) error {
		return tok.Transfer(CustodyAccount, to, amount)
	}))
	require.NoError(f.t, f.reg.Add("owner", assets.Entry{
		ID:             id,
		Symbol:         tok.Symbol(),
		Token:          tok,
		Oracle:         f.feed,
		Dividend:       ledger,
		TokenDecimals:  18,
		OracleDecimals: 18,
	}))
}

func (f *fixture) setPrice(id uint32, price int64) {
	f.t.Helper()
	scaled := new(big.Int).Mul(big.NewInt(price), fixed.OneScale)
	require.NoError(f.t, f.feed.Set(id, scaled, 18))
}

func (f *fixture) ledger(id uint32) *dividend.Ledger {
	entry, err := f.reg.Resolve(id)
	require.NoError(f.t, err)
	return entry.Dividend
}

// createSale posts the standard fixture offer: 1 BTC at 30000 USD,
// 1.5x collateral, 1.25x liquidation, one week to repay.
func (f *fixture) createSale() ApplyResult {
	f.t.Helper()
	f.btc.Mint(seller, fixed.Units(1, 18))
	res := f.engine.Execute(CreateSaleOffer{
		Maker:            seller,
		GoodsAmount:      fixed.Units(1, 18),
		GoodsID:          btcID,
		Rate:             mustRatio(f.t, "30000"),
		PaymentID:        usdID,
		RepayWindow:      testWindow,
		CollateralToDebt: mustRatio(f.t, "1.5"),
		Liquidation:      mustRatio(f.t, "1.25"),
	})
	require.Equal(f.t, Success, res.Code, res.Code.Message())
	return res
}

// acceptSale funds the buyer with exactly collateral plus fee and
// accepts offer id with collateralID.
func (f *fixture) acceptSale(id uint64, collateralID uint32) ApplyResult {
	f.t.Helper()
	switch collateralID {
	case usdID:
		f.usd.Mint(buyer, fixed.Units(45045, 18))
	case ethID:
		f.eth.Mint(buyer, mustAmount(f.t, "22500000000000000000"))
		f.usd.Mint(buyer, fixed.Units(45, 18))
	}
	res := f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: id, CollateralID: collateralID})
	require.Equal(f.t, Success, res.Code, res.Code.Message())
	return res
}

func TestCreateSaleOfferEchoesTerms(t *testing.T) {
	f := newFixture(t)
	res := f.createSale()

	offer := res.Offer
	require.NotNil(t, offer)
	assert.Equal(t, uint64(1), offer.ID)
	assert.Equal(t, Sale, offer.Variant)
	assert.Equal(t, Pending, offer.Status)
	assert.Equal(t, Unlocked, offer.Lock)
	assert.Equal(t, seller, offer.Seller)
	assert.Empty(t, offer.Buyer)
	assert.Equal(t, fixed.Units(1, 18).String(), offer.GoodsAmount.String())
	assert.Equal(t, fixed.Units(30000, 18).String(), offer.PaymentNotional.String())
	assert.False(t, offer.CollateralSet)
	assert.Equal(t, uint32(0), offer.CollateralID)
	assert.True(t, offer.CollateralAmount.IsZero())
	assert.True(t, offer.TimeAccepted.IsZero())

	// The goods are escrowed.
	assert.True(t, f.btc.BalanceOf(seller).IsZero())
	assert.Equal(t, fixed.Units(1, 18).String(), f.btc.BalanceOf(CustodyAccount).String())

	got, ok := f.engine.SaleOffer(1)
	require.True(t, ok)
	assert.Equal(t, offer.ID, got.ID)
}

func TestCreateOfferRejections(t *testing.T) {
	f := newFixture(t)
	f.btc.Mint(seller, fixed.Units(1, 18))

	base := CreateSaleOffer{
		Maker:            seller,
		GoodsAmount:      fixed.Units(1, 18),
		GoodsID:          btcID,
		Rate:             mustRatio(t, "30000"),
		PaymentID:        usdID,
		RepayWindow:      testWindow,
		CollateralToDebt: mustRatio(t, "1.5"),
		Liquidation:      mustRatio(t, "1.25"),
	}

	tests := []struct {
		name   string
		mutate func(op CreateSaleOffer) CreateSaleOffer
		want   Result
	}{
		{
			name:   "unknown goods asset",
			mutate: func(op CreateSaleOffer) CreateSaleOffer { op.GoodsID = 99; return op },
			want:   UnknownAsset,
		},
		{
			name:   "unknown payment asset",
			mutate: func(op CreateSaleOffer) CreateSaleOffer { op.PaymentID = 99; return op },
			want:   UnknownAsset,
		},
		{
			name: "collateral ratio below liquidation ratio",
			mutate: func(op CreateSaleOffer) CreateSaleOffer {
				op.CollateralToDebt = mustRatio(t, "1.1")
				return op
			},
			want: InvalidRatio,
		},
		{
			name: "liquidation ratio not above one",
			mutate: func(op CreateSaleOffer) CreateSaleOffer {
				op.Liquidation = mustRatio(t, "1")
				return op
			},
			want: InvalidRatio,
		},
		{
			name:   "zero amount",
			mutate: func(op CreateSaleOffer) CreateSaleOffer { op.GoodsAmount = fixed.Amount{}; return op },
			want:   InvalidRatio,
		},
		{
			name:   "same asset both sides",
			mutate: func(op CreateSaleOffer) CreateSaleOffer { op.PaymentID = btcID; return op },
			want:   InvalidRatio,
		},
		{
			name:   "zero repay window",
			mutate: func(op CreateSaleOffer) CreateSaleOffer { op.RepayWindow = 0; return op },
			want:   InvalidRatio,
		},
		{
			name:   "maker cannot fund escrow",
			mutate: func(op CreateSaleOffer) CreateSaleOffer { op.Maker = rando; return op },
			want:   InsufficientFunds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.engine.Execute(tt.mutate(base))
			assert.Equal(t, tt.want, res.Code)
		})
	}

	// None of the rejected operations created an offer.
	sale, buy := f.engine.Sequences()
	assert.Zero(t, sale)
	assert.Zero(t, buy)
	assert.Equal(t, fixed.Units(1, 18).String(), f.btc.BalanceOf(seller).String())
}

func TestCreateBuyOfferEscrowsCollateral(t *testing.T) {
	f := newFixture(t)
	f.usd.Mint(buyer, fixed.Units(45000, 18))

	res := f.engine.Execute(CreateBuyOffer{
		Maker:            buyer,
		GoodsAmount:      fixed.Units(1, 18),
		GoodsID:          btcID,
		Rate:             mustRatio(t, "30000"),
		PaymentID:        usdID,
		CollateralID:     usdID,
		RepayWindow:      testWindow,
		CollateralToDebt: mustRatio(t, "1.5"),
		Liquidation:      mustRatio(t, "1.25"),
	})
	require.Equal(t, Success, res.Code, res.Code.Message())

	offer := res.Offer
	assert.Equal(t, uint64(1), offer.ID)
	assert.Equal(t, Buy, offer.Variant)
	assert.Equal(t, Pending, offer.Status)
	assert.Equal(t, buyer, offer.Buyer)
	assert.Empty(t, offer.Seller)
	// 1.5 x 1 x 30000 in the collateral asset.
	assert.Equal(t, fixed.Units(45000, 18).String(), offer.CollateralAmount.String())
	assert.True(t, offer.CollateralSet)
	assert.True(t, f.usd.BalanceOf(buyer).IsZero())
	assert.Equal(t, fixed.Units(45000, 18).String(), f.usd.BalanceOf(CustodyAccount).String())
}

func TestAcceptSaleOffer(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	f.usd.Mint(buyer, fixed.Units(45045, 18))

	res := f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: 1, CollateralID: usdID})
	require.Equal(t, Success, res.Code, res.Code.Message())

	offer := res.Offer
	assert.Equal(t, Accepted, offer.Status)
	assert.Equal(t, buyer, offer.Buyer)
	assert.Equal(t, usdID, offer.CollateralID)
	assert.Equal(t, fixed.Units(45000, 18).String(), offer.CollateralAmount.String())
	assert.Equal(t, fixed.Units(30000, 18).String(), offer.Outstanding.String())
	assert.Equal(t, f.clock, offer.TimeAccepted)
	assert.Equal(t, Unlocked, offer.Lock)

	// Goods moved to the buyer; collateral and fee are in custody.
	assert.Equal(t, fixed.Units(1, 18).String(), f.btc.BalanceOf(buyer).String())
	assert.True(t, f.usd.BalanceOf(buyer).IsZero())
	assert.Equal(t, fixed.Units(45045, 18).String(), f.usd.BalanceOf(CustodyAccount).String())

	// The 0.15% fee of the 30000 notional is 45, deposited to the
	// payment asset's dividend ledger.
	assert.Equal(t, fixed.Units(45, 18).String(), res.Amount.String())
	assert.Equal(t, fixed.Units(45, 18).String(), f.ledger(usdID).Deposited().String())
}

func TestAcceptFeeFlowsToShareholders(t *testing.T) {
	f := newFixture(t)
	ledger := f.ledger(usdID)
	ledger.MintShares("holder", fixed.Units(100000, 18))

	f.createSale()
	f.usd.Mint(buyer, fixed.Units(45045, 18))
	res := f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: 1, CollateralID: usdID})
	require.Equal(t, Success, res.Code)

	collect := f.engine.Execute(CollectDividends{Caller: "holder", Holder: "holder", AssetID: usdID})
	require.Equal(t, Success, collect.Code)
	assert.Equal(t, "44999999999999999999", collect.Amount.String())
	assert.Equal(t, "44999999999999999999", f.usd.BalanceOf("holder").String())

	again := f.engine.Execute(CollectDividends{Caller: "holder", Holder: "holder", AssetID: usdID})
	assert.Equal(t, NothingToCollect, again.Code)

	other := f.engine.Execute(CollectDividends{Caller: rando, Holder: "holder", AssetID: usdID})
	assert.Equal(t, Unauthorized, other.Code)
}

func TestAcceptSaleOfferRejections(t *testing.T) {
	f := newFixture(t)
	f.createSale()

	// Self-accept.
	res := f.engine.Execute(AcceptSaleOffer{Acceptor: seller, OfferID: 1, CollateralID: usdID})
	assert.Equal(t, Unauthorized, res.Code)

	// Unknown collateral asset.
	res = f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: 1, CollateralID: 99})
	assert.Equal(t, UnknownAsset, res.Code)

	// Unknown offer.
	res = f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: 42, CollateralID: usdID})
	assert.Equal(t, InvalidState, res.Code)

	// Acceptor cannot fund the collateral: nothing moves, still Pending.
	res = f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: 1, CollateralID: usdID})
	assert.Equal(t, InsufficientFunds, res.Code)
	offer, _ := f.engine.SaleOffer(1)
	assert.Equal(t, Pending, offer.Status)

	// Acceptor can fund the collateral but not the fee: the collateral
	// escrow is compensated back.
	f.usd.Mint(buyer, fixed.Units(45000, 18))
	res = f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: 1, CollateralID: usdID})
	assert.Equal(t, InsufficientFunds, res.Code)
	assert.Equal(t, fixed.Units(45000, 18).String(), f.usd.BalanceOf(buyer).String())
	offer, _ = f.engine.SaleOffer(1)
	assert.Equal(t, Pending, offer.Status)
	assert.True(t, f.ledger(usdID).Deposited().IsZero())
}

func TestAcceptBuyOffer(t *testing.T) {
	f := newFixture(t)
	f.usd.Mint(buyer, fixed.Units(45045, 18))
	res := f.engine.Execute(CreateBuyOffer{
		Maker:            buyer,
		GoodsAmount:      fixed.Units(1, 18),
		GoodsID:          btcID,
		Rate:             mustRatio(t, "30000"),
		PaymentID:        usdID,
		CollateralID:     usdID,
		RepayWindow:      testWindow,
		CollateralToDebt: mustRatio(t, "1.5"),
		Liquidation:      mustRatio(t, "1.25"),
	})
	require.Equal(t, Success, res.Code)

	f.btc.Mint(seller, fixed.Units(1, 18))
	res = f.engine.Execute(AcceptBuyOffer{Acceptor: seller, OfferID: 1})
	require.Equal(t, Success, res.Code, res.Code.Message())

	offer := res.Offer
	assert.Equal(t, Accepted, offer.Status)
	assert.Equal(t, seller, offer.Seller)
	assert.Equal(t, fixed.Units(30000, 18).String(), offer.Outstanding.String())

	// Goods went straight through custody to the buyer; the maker paid
	// the fee as the debtor.
	assert.Equal(t, fixed.Units(1, 18).String(), f.btc.BalanceOf(buyer).String())
	assert.True(t, f.btc.BalanceOf(seller).IsZero())
	assert.True(t, f.usd.BalanceOf(buyer).IsZero())
	assert.Equal(t, fixed.Units(45, 18).String(), f.ledger(usdID).Deposited().String())

	// Second accept finds the offer no longer pending.
	res = f.engine.Execute(AcceptBuyOffer{Acceptor: rando, OfferID: 1})
	assert.Equal(t, InvalidState, res.Code)
}

func TestRepayPartialThenClose(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	f.acceptSale(1, usdID)
	f.usd.Mint(buyer, fixed.Units(30000, 18))

	res := f.engine.Execute(Repay{Caller: buyer, Variant: Sale, OfferID: 1, Amount: fixed.Units(10000, 18)})
	require.Equal(t, Success, res.Code)
	assert.Equal(t, fixed.Units(20000, 18).String(), res.Offer.Outstanding.String())
	assert.Equal(t, Accepted, res.Offer.Status)
	assert.Equal(t, Unlocked, res.Offer.Lock)
	assert.Equal(t, fixed.Units(10000, 18).String(), f.usd.BalanceOf(seller).String())

	// Zero amount settles the remainder; collateral returns and the
	// offer closes.
	res = f.engine.Execute(Repay{Caller: buyer, Variant: Sale, OfferID: 1})
	require.Equal(t, Success, res.Code)
	assert.Equal(t, Closed, res.Offer.Status)
	assert.True(t, res.Offer.Outstanding.IsZero())
	assert.True(t, res.Offer.CollateralAmount.IsZero())
	assert.Equal(t, fixed.Units(30000, 18).String(), f.usd.BalanceOf(seller).String())
	// Buyer got the 45000 collateral back.
	assert.Equal(t, fixed.Units(45000, 18).String(), f.usd.BalanceOf(buyer).String())

	// A closed offer is terminal.
	res = f.engine.Execute(Repay{Caller: buyer, Variant: Sale, OfferID: 1, Amount: fixed.Units(1, 18)})
	assert.Equal(t, InvalidState, res.Code)
}

func TestRepayGuards(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	f.acceptSale(1, usdID)
	f.usd.Mint(buyer, fixed.Units(30000, 18))

	res := f.engine.Execute(Repay{Caller: rando, Variant: Sale, OfferID: 1, Amount: fixed.Units(1, 18)})
	assert.Equal(t, Unauthorized, res.Code)

	// Past the window the debtor can no longer repay.
	f.clock = f.clock.Add(testWindow + time.Hour)
	res = f.engine.Execute(Repay{Caller: buyer, Variant: Sale, OfferID: 1})
	assert.Equal(t, RepayWindowExpired, res.Code)
	offer, _ := f.engine.SaleOffer(1)
	assert.Equal(t, fixed.Units(30000, 18).String(), offer.Outstanding.String())
}

func TestRepayClampsOverpayment(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	f.acceptSale(1, usdID)
	f.usd.Mint(buyer, fixed.Units(50000, 18))

	res := f.engine.Execute(Repay{Caller: buyer, Variant: Sale, OfferID: 1, Amount: fixed.Units(50000, 18)})
	require.Equal(t, Success, res.Code)
	assert.Equal(t, fixed.Units(30000, 18).String(), res.Amount.String())
	assert.Equal(t, Closed, res.Offer.Status)
	assert.Equal(t, fixed.Units(30000, 18).String(), f.usd.BalanceOf(seller).String())
}

func TestAddCollateral(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	f.acceptSale(1, usdID)
	f.usd.Mint(buyer, fixed.Units(500, 18))

	res := f.engine.Execute(AddCollateral{Caller: rando, Variant: Sale, OfferID: 1, Amount: fixed.Units(1, 18)})
	assert.Equal(t, Unauthorized, res.Code)

	res = f.engine.Execute(AddCollateral{Caller: buyer, Variant: Sale, OfferID: 1, Amount: fixed.Units(500, 18)})
	require.Equal(t, Success, res.Code)
	assert.Equal(t, fixed.Units(45500, 18).String(), res.Offer.CollateralAmount.String())
	assert.True(t, f.usd.BalanceOf(buyer).IsZero())
}

func TestCancelOffer(t *testing.T) {
	f := newFixture(t)
	f.createSale()

	res := f.engine.Execute(CancelOffer{Caller: rando, Variant: Sale, OfferID: 1})
	assert.Equal(t, Unauthorized, res.Code)

	res = f.engine.Execute(CancelOffer{Caller: seller, Variant: Sale, OfferID: 1})
	require.Equal(t, Success, res.Code)
	assert.Equal(t, Cancelled, res.Offer.Status)
	assert.Equal(t, Unlocked, res.Offer.Lock)
	assert.Equal(t, fixed.Units(1, 18).String(), f.btc.BalanceOf(seller).String())
	assert.True(t, f.btc.BalanceOf(CustodyAccount).IsZero())

	// Second cancel, and any accept, find a terminal offer.
	res = f.engine.Execute(CancelOffer{Caller: seller, Variant: Sale, OfferID: 1})
	assert.Equal(t, InvalidState, res.Code)
	res = f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: 1, CollateralID: usdID})
	assert.Equal(t, InvalidState, res.Code)
}

func TestCancelBuyOfferRefundsCollateral(t *testing.T) {
	f := newFixture(t)
	f.usd.Mint(buyer, fixed.Units(45000, 18))
	res := f.engine.Execute(CreateBuyOffer{
		Maker:            buyer,
		GoodsAmount:      fixed.Units(1, 18),
		GoodsID:          btcID,
		Rate:             mustRatio(t, "30000"),
		PaymentID:        usdID,
		CollateralID:     usdID,
		RepayWindow:      testWindow,
		CollateralToDebt: mustRatio(t, "1.5"),
		Liquidation:      mustRatio(t, "1.25"),
	})
	require.Equal(t, Success, res.Code)

	res = f.engine.Execute(CancelOffer{Caller: buyer, Variant: Buy, OfferID: 1})
	require.Equal(t, Success, res.Code)
	assert.Equal(t, fixed.Units(45000, 18).String(), f.usd.BalanceOf(buyer).String())
}

func TestLiquidateAfterWindow(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	f.acceptSale(1, usdID)

	res := f.engine.Execute(Liquidate{Caller: rando, Variant: Sale, OfferID: 1})
	assert.Equal(t, NotLiquidatable, res.Code)

	f.clock = f.clock.Add(testWindow + time.Second)
	res = f.engine.Execute(Liquidate{Caller: rando, Variant: Sale, OfferID: 1})
	require.Equal(t, Success, res.Code)
	assert.Equal(t, Liquidated, res.Offer.Status)
	assert.Equal(t, Unlocked, res.Offer.Lock)
	// All collateral went to the creditor.
	assert.Equal(t, fixed.Units(45000, 18).String(), f.usd.BalanceOf(seller).String())

	res = f.engine.Execute(Liquidate{Caller: rando, Variant: Sale, OfferID: 1})
	assert.Equal(t, InvalidState, res.Code)
}

func TestLiquidateOnCollateralRatio(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	// Collateral in ETH at 2000: 1.5 x 30000 / 2000 = 22.5 ETH.
	f.acceptSale(1, ethID)
	offer, _ := f.engine.SaleOffer(1)
	require.Equal(t, "22500000000000000000", offer.CollateralAmount.String())

	// 22.5 ETH at 2000 is worth 45000, well above 1.25 x 30000.
	res := f.engine.Execute(Liquidate{Caller: rando, Variant: Sale, OfferID: 1})
	assert.Equal(t, NotLiquidatable, res.Code)

	// At 1666 the collateral is worth 37485, under the 37500 floor.
	f.setPrice(ethID, 1666)
	res = f.engine.Execute(Liquidate{Caller: rando, Variant: Sale, OfferID: 1})
	require.Equal(t, Success, res.Code)
	assert.Equal(t, Liquidated, res.Offer.Status)
	assert.Equal(t, "22500000000000000000", f.eth.BalanceOf(seller).String())
}

func TestLiquidateFailsClosedWithoutPrice(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	f.acceptSale(1, ethID)

	f.feed.Unset(ethID)
	res := f.engine.Execute(Liquidate{Caller: rando, Variant: Sale, OfferID: 1})
	assert.Equal(t, OracleUnavailable, res.Code)
	offer, _ := f.engine.SaleOffer(1)
	assert.Equal(t, Accepted, offer.Status)

	// The expired window needs no price.
	f.clock = f.clock.Add(testWindow + time.Second)
	res = f.engine.Execute(Liquidate{Caller: rando, Variant: Sale, OfferID: 1})
	assert.Equal(t, Success, res.Code)
}

func TestOfferLockExcludesConcurrentMutation(t *testing.T) {
	f := newFixture(t)
	f.createSale()

	ctx := &ApplyContext{engine: f.engine}
	held, code := ctx.lockOffer(Sale, 1)
	require.Equal(t, Success, code)

	f.usd.Mint(buyer, fixed.Units(45045, 18))
	res := f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: 1, CollateralID: usdID})
	assert.Equal(t, OfferLocked, res.Code)
	res = f.engine.Execute(CancelOffer{Caller: seller, Variant: Sale, OfferID: 1})
	assert.Equal(t, OfferLocked, res.Code)

	ctx.unlockOffer(held)
	res = f.engine.Execute(AcceptSaleOffer{Acceptor: buyer, OfferID: 1, CollateralID: usdID})
	assert.Equal(t, Success, res.Code)
}

func TestSeparateIDNamespaces(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	f.usd.Mint(buyer, fixed.Units(45000, 18))
	res := f.engine.Execute(CreateBuyOffer{
		Maker:            buyer,
		GoodsAmount:      fixed.Units(1, 18),
		GoodsID:          btcID,
		Rate:             mustRatio(t, "30000"),
		PaymentID:        usdID,
		CollateralID:     usdID,
		RepayWindow:      testWindow,
		CollateralToDebt: mustRatio(t, "1.5"),
		Liquidation:      mustRatio(t, "1.25"),
	})
	require.Equal(t, Success, res.Code)

	// Both namespaces start at 1.
	assert.Equal(t, uint64(1), res.Offer.ID)
	sale, buy := f.engine.Sequences()
	assert.Equal(t, uint64(1), sale)
	assert.Equal(t, uint64(1), buy)

	saleOffer, ok := f.engine.SaleOffer(1)
	require.True(t, ok)
	assert.Equal(t, Sale, saleOffer.Variant)
	buyOffer, ok := f.engine.BuyOffer(1)
	require.True(t, ok)
	assert.Equal(t, Buy, buyOffer.Variant)
}

func TestOfferRecordRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	f.acceptSale(1, usdID)
	offer, _ := f.engine.SaleOffer(1)

	restored, err := OfferFromRecord(offer.Record())
	require.NoError(t, err)
	assert.Equal(t, offer.ID, restored.ID)
	assert.Equal(t, offer.Status, restored.Status)
	assert.Equal(t, offer.Seller, restored.Seller)
	assert.Equal(t, offer.Buyer, restored.Buyer)
	assert.Equal(t, offer.GoodsAmount.String(), restored.GoodsAmount.String())
	assert.Equal(t, offer.Outstanding.String(), restored.Outstanding.String())
	assert.Equal(t, offer.CollateralAmount.String(), restored.CollateralAmount.String())
	assert.Equal(t, offer.Rate.String(), restored.Rate.String())
	assert.Equal(t, offer.RepayWindow, restored.RepayWindow)
	assert.Equal(t, offer.TimeAccepted.Unix(), restored.TimeAccepted.Unix())
}

type recordingPersister struct {
	puts []OfferRecord
}

func (p *recordingPersister) PutOffer(o *Offer) error {
	p.puts = append(p.puts, o.Record())
	return nil
}

func TestEngineWritesThroughPersister(t *testing.T) {
	f := newFixture(t)
	persist := &recordingPersister{}
	f.engine.persist = persist

	f.createSale()
	require.Len(t, persist.puts, 1)
	assert.Equal(t, uint8(Pending), persist.puts[0].Status)

	f.acceptSale(1, usdID)
	require.Len(t, persist.puts, 2)
	assert.Equal(t, uint8(Accepted), persist.puts[1].Status)
}

func TestRestoreOfferAdvancesSequence(t *testing.T) {
	f := newFixture(t)
	f.createSale()
	offer, _ := f.engine.SaleOffer(1)
	offer.ID = 7

	fresh := NewEngine(EngineConfig{Registry: f.reg, Logger: log.New(io.Discard, "", 0)})
	fresh.RestoreOffer(offer)
	sale, _ := fresh.Sequences()
	assert.Equal(t, uint64(7), sale)
	got, ok := fresh.SaleOffer(7)
	require.True(t, ok)
	assert.Equal(t, Pending, got.Status)
}
