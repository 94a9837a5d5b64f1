package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/barterlabs/goBarterd/internal/core/fixed"
	"github.com/barterlabs/goBarterd/internal/core/tx"
)

// Service is what the RPC methods need from the rest of the daemon.
type Service struct {
	Engine    *tx.Engine
	Owner     string
	NodeName  string
	Version   string
	Backend   string
	StartTime time.Time

	// AddAsset registers a new asset; wired by the node, nil when the
	// daemon runs without an asset factory.
	AddAsset func(caller string, spec AssetSpec) error
}

// AssetSpec is the add_asset payload.
type AssetSpec struct {
	ID             uint32            `json:"id"`
	Symbol         string            `json:"symbol"`
	Decimals       uint8             `json:"decimals"`
	OracleDecimals uint8             `json:"oracle_decimals"`
	Price          string            `json:"price,omitempty"`
	Balances       map[string]string `json:"balances,omitempty"`
	Shares         map[string]string `json:"shares,omitempty"`
}

// methodFunc adapts a function to MethodHandler.
type methodFunc struct {
	role Role
	fn   func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)
}

func (m methodFunc) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return m.fn(ctx, params)
}

func (m methodFunc) RequiredRole() Role { return m.role }

func (s *Server) registerAllMethods() {
	user := func(name string, fn func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)) {
		s.registry.Register(name, methodFunc{role: RoleUser, fn: fn})
	}
	admin := func(name string, fn func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)) {
		s.registry.Register(name, methodFunc{role: RoleAdmin, fn: fn})
	}

	user("create_sale_offer", s.createSaleOffer)
	user("create_buy_offer", s.createBuyOffer)
	user("accept_sale_offer", s.acceptSaleOffer)
	user("accept_buy_offer", s.acceptBuyOffer)
	user("add_collateral", s.addCollateral)
	user("repay", s.repay)
	user("cancel_offer", s.cancelOffer)
	user("liquidate", s.liquidate)
	user("get_sale_offer", s.getSaleOffer)
	user("get_buy_offer", s.getBuyOffer)
	user("collect_dividends", s.collectDividends)
	user("claimable", s.claimable)
	user("server_info", s.serverInfo)
	admin("add_asset", s.addAsset)
}

// offerView is the wire form of an offer.
type offerView struct {
	ID               uint64 `json:"id"`
	Variant          string `json:"variant"`
	Status           string `json:"status"`
	Lock             string `json:"lock"`
	Seller           string `json:"seller,omitempty"`
	Buyer            string `json:"buyer,omitempty"`
	GoodsAmount      string `json:"goods_amount"`
	GoodsID          uint32 `json:"goods_id"`
	Rate             string `json:"rate"`
	PaymentID        uint32 `json:"payment_id"`
	PaymentNotional  string `json:"payment_notional"`
	Outstanding      string `json:"outstanding"`
	CollateralAmount string `json:"collateral_amount"`
	CollateralID     uint32 `json:"collateral_id"`
	CollateralSet    bool   `json:"collateral_set"`
	RepayWindowSecs  int64  `json:"repay_window_secs"`
	CreatedAt        int64  `json:"created_at"`
	TimeAccepted     int64  `json:"time_accepted,omitempty"`
	CollateralToDebt string `json:"collateral_to_debt"`
	Liquidation      string `json:"liquidation"`
}

func viewOffer(o *tx.Offer) offerView {
	v := offerView{
		ID:               o.ID,
		Variant:          o.Variant.String(),
		Status:           o.Status.String(),
		Lock:             o.Lock.String(),
		Seller:           o.Seller,
		Buyer:            o.Buyer,
		GoodsAmount:      o.GoodsAmount.String(),
		GoodsID:          o.GoodsID,
		Rate:             o.Rate.String(),
		PaymentID:        o.PaymentID,
		PaymentNotional:  o.PaymentNotional.String(),
		Outstanding:      o.Outstanding.String(),
		CollateralAmount: o.CollateralAmount.String(),
		CollateralID:     o.CollateralID,
		CollateralSet:    o.CollateralSet,
		RepayWindowSecs:  int64(o.RepayWindow / time.Second),
		CreatedAt:        o.CreatedAt.Unix(),
		CollateralToDebt: o.CollateralToDebt.String(),
		Liquidation:      o.Liquidation.String(),
	}
	if !o.TimeAccepted.IsZero() {
		v.TimeAccepted = o.TimeAccepted.Unix()
	}
	return v
}

func decodeParams(params json.RawMessage, out interface{}) *RpcError {
	if len(params) == 0 {
		return errInvalidParams("missing params object")
	}
	if err := json.Unmarshal(params, out); err != nil {
		return errInvalidParams(err.Error())
	}
	return nil
}

func parseAmount(field, s string) (fixed.Amount, *RpcError) {
	if s == "" {
		return fixed.Amount{}, nil
	}
	amt, err := fixed.ParseAmount(s)
	if err != nil {
		return fixed.Amount{}, errInvalidParams(fmt.Sprintf("%s: %v", field, err))
	}
	return amt, nil
}

func parseRatio(field, s string) (fixed.Ratio, *RpcError) {
	r, err := fixed.ParseRatio(s)
	if err != nil {
		return fixed.Ratio{}, errInvalidParams(fmt.Sprintf("%s: %v", field, err))
	}
	return r, nil
}

func parseVariant(s string) (tx.Variant, *RpcError) {
	switch s {
	case "sale":
		return tx.Sale, nil
	case "buy":
		return tx.Buy, nil
	default:
		return 0, errInvalidParams(fmt.Sprintf("variant %q (want sale or buy)", s))
	}
}

// applyOrError converts an engine outcome to a method result.
func applyOrError(res tx.ApplyResult) (interface{}, *RpcError) {
	if res.Code != tx.Success {
		return nil, errFromResult(res.Code)
	}
	out := map[string]interface{}{"result": res.Code.String()}
	if res.Offer != nil {
		out["offer"] = viewOffer(res.Offer)
	}
	if !res.Amount.IsZero() {
		out["amount"] = res.Amount.String()
	}
	return out, nil
}

type createSaleOfferParams struct {
	Account          string `json:"account"`
	Amount           string `json:"amount"`
	GoodsID          uint32 `json:"goods_id"`
	Rate             string `json:"rate"`
	PaymentID        uint32 `json:"payment_id"`
	RepayWindowSecs  int64  `json:"repay_window_secs"`
	CollateralToDebt string `json:"collateral_to_debt"`
	Liquidation      string `json:"liquidation"`
}

func (s *Server) createSaleOffer(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p createSaleOfferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", p.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rate, rpcErr := parseRatio("rate", p.Rate)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cd, rpcErr := parseRatio("collateral_to_debt", p.CollateralToDebt)
	if rpcErr != nil {
		return nil, rpcErr
	}
	liq, rpcErr := parseRatio("liquidation", p.Liquidation)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return applyOrError(s.service.Engine.Execute(tx.CreateSaleOffer{
		Maker:            p.Account,
		GoodsAmount:      amount,
		GoodsID:          p.GoodsID,
		Rate:             rate,
		PaymentID:        p.PaymentID,
		RepayWindow:      time.Duration(p.RepayWindowSecs) * time.Second,
		CollateralToDebt: cd,
		Liquidation:      liq,
	}))
}

type createBuyOfferParams struct {
	createSaleOfferParams
	CollateralID uint32 `json:"collateral_id"`
}

func (s *Server) createBuyOffer(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p createBuyOfferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", p.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rate, rpcErr := parseRatio("rate", p.Rate)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cd, rpcErr := parseRatio("collateral_to_debt", p.CollateralToDebt)
	if rpcErr != nil {
		return nil, rpcErr
	}
	liq, rpcErr := parseRatio("liquidation", p.Liquidation)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return applyOrError(s.service.Engine.Execute(tx.CreateBuyOffer{
		Maker:            p.Account,
		GoodsAmount:      amount,
		GoodsID:          p.GoodsID,
		Rate:             rate,
		PaymentID:        p.PaymentID,
		CollateralID:     p.CollateralID,
		RepayWindow:      time.Duration(p.RepayWindowSecs) * time.Second,
		CollateralToDebt: cd,
		Liquidation:      liq,
	}))
}

type acceptOfferParams struct {
	Account      string `json:"account"`
	OfferID      uint64 `json:"offer_id"`
	CollateralID uint32 `json:"collateral_id"`
}

func (s *Server) acceptSaleOffer(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p acceptOfferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return applyOrError(s.service.Engine.Execute(tx.AcceptSaleOffer{
		Acceptor:     p.Account,
		OfferID:      p.OfferID,
		CollateralID: p.CollateralID,
	}))
}

func (s *Server) acceptBuyOffer(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p acceptOfferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return applyOrError(s.service.Engine.Execute(tx.AcceptBuyOffer{
		Acceptor: p.Account,
		OfferID:  p.OfferID,
	}))
}

type offerActionParams struct {
	Account string `json:"account"`
	Variant string `json:"variant"`
	OfferID uint64 `json:"offer_id"`
	Amount  string `json:"amount,omitempty"`
}

func (s *Server) addCollateral(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p offerActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	variant, rpcErr := parseVariant(p.Variant)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", p.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return applyOrError(s.service.Engine.Execute(tx.AddCollateral{
		Caller:  p.Account,
		Variant: variant,
		OfferID: p.OfferID,
		Amount:  amount,
	}))
}

func (s *Server) repay(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p offerActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	variant, rpcErr := parseVariant(p.Variant)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", p.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return applyOrError(s.service.Engine.Execute(tx.Repay{
		Caller:  p.Account,
		Variant: variant,
		OfferID: p.OfferID,
		Amount:  amount,
	}))
}

func (s *Server) cancelOffer(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p offerActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	variant, rpcErr := parseVariant(p.Variant)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return applyOrError(s.service.Engine.Execute(tx.CancelOffer{
		Caller:  p.Account,
		Variant: variant,
		OfferID: p.OfferID,
	}))
}

func (s *Server) liquidate(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p offerActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	variant, rpcErr := parseVariant(p.Variant)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return applyOrError(s.service.Engine.Execute(tx.Liquidate{
		Caller:  p.Account,
		Variant: variant,
		OfferID: p.OfferID,
	}))
}

type getOfferParams struct {
	OfferID uint64 `json:"offer_id"`
}

func (s *Server) getSaleOffer(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p getOfferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	offer, ok := s.service.Engine.SaleOffer(p.OfferID)
	if !ok {
		return nil, errFromResult(tx.InvalidState)
	}
	return viewOffer(offer), nil
}

func (s *Server) getBuyOffer(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p getOfferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	offer, ok := s.service.Engine.BuyOffer(p.OfferID)
	if !ok {
		return nil, errFromResult(tx.InvalidState)
	}
	return viewOffer(offer), nil
}

type dividendParams struct {
	Account string `json:"account"`
	AssetID uint32 `json:"asset_id"`
}

func (s *Server) collectDividends(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p dividendParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	res := s.service.Engine.Execute(tx.CollectDividends{
		Caller:  p.Account,
		Holder:  p.Account,
		AssetID: p.AssetID,
	})
	if res.Code != tx.Success {
		return nil, errFromResult(res.Code)
	}
	return map[string]interface{}{
		"result":  res.Code.String(),
		"amount":  res.Amount.String(),
		"account": p.Account,
	}, nil
}

func (s *Server) claimable(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p dividendParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.service.Engine.Claimable(p.AssetID, p.Account)
	if err != nil {
		return nil, errFromResult(tx.UnknownAsset)
	}
	return map[string]interface{}{
		"account":  p.Account,
		"asset_id": p.AssetID,
		"amount":   amount.String(),
	}, nil
}

func (s *Server) serverInfo(_ *RpcContext, _ json.RawMessage) (interface{}, *RpcError) {
	saleSeq, buySeq := s.service.Engine.Sequences()
	return map[string]interface{}{
		"node_name":   s.service.NodeName,
		"version":     s.service.Version,
		"backend":     s.service.Backend,
		"uptime_secs": int64(time.Since(s.service.StartTime) / time.Second),
		"sale_offers": saleSeq,
		"buy_offers":  buySeq,
		"assets":      s.service.Engine.Registry().IDs(),
		"methods":     s.registry.List(),
	}, nil
}

type addAssetParams struct {
	Account string `json:"account"`
	AssetSpec
}

func (s *Server) addAsset(_ *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p addAssetParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if s.service.AddAsset == nil {
		return nil, errInvalidParams("asset registration is not enabled on this node")
	}
	if err := s.service.AddAsset(p.Account, p.AssetSpec); err != nil {
		return nil, errFromErr(err)
	}
	return map[string]interface{}{"result": "success", "id": p.ID}, nil
}
