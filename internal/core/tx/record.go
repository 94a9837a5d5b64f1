package tx

import (
	"fmt"
	"time"

	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// OfferRecord is the serializable form of an Offer. Amounts are base-10
// strings; times are unix seconds.
type OfferRecord struct {
	ID               uint64 `codec:"id"`
	Variant          uint8  `codec:"variant"`
	Status           uint8  `codec:"status"`
	Seller           string `codec:"seller"`
	Buyer            string `codec:"buyer"`
	GoodsAmount      string `codec:"goods_amount"`
	GoodsID          uint32 `codec:"goods_id"`
	Rate             string `codec:"rate"`
	PaymentID        uint32 `codec:"payment_id"`
	PaymentNotional  string `codec:"payment_notional"`
	Outstanding      string `codec:"outstanding"`
	CollateralAmount string `codec:"collateral_amount"`
	CollateralID     uint32 `codec:"collateral_id"`
	CollateralSet    bool   `codec:"collateral_set"`
	RepayWindowSecs  int64  `codec:"repay_window_secs"`
	CreatedAt        int64  `codec:"created_at"`
	TimeAccepted     int64  `codec:"time_accepted"`
	CollateralToDebt string `codec:"collateral_to_debt"`
	Liquidation      string `codec:"liquidation"`
}

// Record converts the offer into its serializable form.
func (o *Offer) Record() OfferRecord {
	rec := OfferRecord{
		ID:               o.ID,
		Variant:          uint8(o.Variant),
		Status:           uint8(o.Status),
		Seller:           o.Seller,
		Buyer:            o.Buyer,
		GoodsAmount:      o.GoodsAmount.String(),
		GoodsID:          o.GoodsID,
		Rate:             o.Rate.BigInt().String(),
		PaymentID:        o.PaymentID,
		PaymentNotional:  o.PaymentNotional.String(),
		Outstanding:      o.Outstanding.String(),
		CollateralAmount: o.CollateralAmount.String(),
		CollateralID:     o.CollateralID,
		CollateralSet:    o.CollateralSet,
		RepayWindowSecs:  int64(o.RepayWindow / time.Second),
		CreatedAt:        o.CreatedAt.Unix(),
		CollateralToDebt: o.CollateralToDebt.BigInt().String(),
		Liquidation:      o.Liquidation.BigInt().String(),
	}
	if !o.TimeAccepted.IsZero() {
		rec.TimeAccepted = o.TimeAccepted.Unix()
	}
	return rec
}

// OfferFromRecord rebuilds an Offer from its serialized form.
func OfferFromRecord(rec OfferRecord) (*Offer, error) {
	o := &Offer{
		ID:            rec.ID,
		Variant:       Variant(rec.Variant),
		Status:        Status(rec.Status),
		Lock:          Unlocked,
		Seller:        rec.Seller,
		Buyer:         rec.Buyer,
		GoodsID:       rec.GoodsID,
		PaymentID:     rec.PaymentID,
		CollateralID:  rec.CollateralID,
		CollateralSet: rec.CollateralSet,
		RepayWindow:   time.Duration(rec.RepayWindowSecs) * time.Second,
		CreatedAt:     time.Unix(rec.CreatedAt, 0).UTC(),
	}
	if rec.TimeAccepted != 0 {
		o.TimeAccepted = time.Unix(rec.TimeAccepted, 0).UTC()
	}
	var err error
	if o.GoodsAmount, err = parseRecordAmount(rec.GoodsAmount, "goods amount"); err != nil {
		return nil, err
	}
	if o.PaymentNotional, err = parseRecordAmount(rec.PaymentNotional, "payment notional"); err != nil {
		return nil, err
	}
	if o.Outstanding, err = parseRecordAmount(rec.Outstanding, "outstanding"); err != nil {
		return nil, err
	}
	if o.CollateralAmount, err = parseRecordAmount(rec.CollateralAmount, "collateral amount"); err != nil {
		return nil, err
	}
	if o.Rate, err = parseRecordRatio(rec.Rate, "rate"); err != nil {
		return nil, err
	}
	if o.CollateralToDebt, err = parseRecordRatio(rec.CollateralToDebt, "collateral-to-debt ratio"); err != nil {
		return nil, err
	}
	if o.Liquidation, err = parseRecordRatio(rec.Liquidation, "liquidation ratio"); err != nil {
		return nil, err
	}
	return o, nil
}

func parseRecordAmount(s, field string) (fixed.Amount, error) {
	if s == "" {
		return fixed.Amount{}, nil
	}
	amt, err := fixed.ParseAmount(s)
	if err != nil {
		return fixed.Amount{}, fmt.Errorf("offer record %s: %w", field, err)
	}
	return amt, nil
}

func parseRecordRatio(s, field string) (fixed.Ratio, error) {
	if s == "" {
		return fixed.Ratio{}, nil
	}
	amt, err := fixed.ParseAmount(s)
	if err != nil {
		return fixed.Ratio{}, fmt.Errorf("offer record %s: %w", field, err)
	}
	r, err := fixed.NewRatio(amt.BigInt())
	if err != nil {
		return fixed.Ratio{}, fmt.Errorf("offer record %s: %w", field, err)
	}
	return r, nil
}
