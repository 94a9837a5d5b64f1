package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barterlabs/goBarterd/internal/core/assets"
	"github.com/barterlabs/goBarterd/internal/core/dividend"
	"github.com/barterlabs/goBarterd/internal/core/fixed"
	"github.com/barterlabs/goBarterd/internal/core/oracle"
	"github.com/barterlabs/goBarterd/internal/core/tx"
)

const (
	testOwner  = "owner"
	testSeller = "alice"
	testBuyer  = "bob"
)

type rpcFixture struct {
	server *Server
	engine *tx.Engine
	added  []AssetSpec
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	reg := assets.NewRegistry(testOwner)
	feed := oracle.NewStaticSource()
	f := &rpcFixture{}

	addAsset := func(id uint32, symbol string, price int64) *assets.Token {
		token := assets.NewToken(symbol, 18)
		ledger := dividend.NewLedger(dividend.PayoutFunc(func(to string, amount fixed.Amount) error {
			return token.Transfer(tx.CustodyAccount, to, amount)
		}))
		require.NoError(t, feed.Set(id, fixed.Units(price, 18).BigInt(), 18))
		require.NoError(t, reg.Add(testOwner, assets.Entry{
			ID:             id,
			Symbol:         symbol,
			Token:          token,
			Oracle:         feed,
			Dividend:       ledger,
			TokenDecimals:  18,
			OracleDecimals: 18,
		}))
		return token
	}

	btc := addAsset(1, "BTC", 30000)
	usd := addAsset(2, "USD", 1)
	btc.Mint(testSeller, fixed.Units(10, 18))
	usd.Mint(testBuyer, fixed.Units(100000, 18))

	f.engine = tx.NewEngine(tx.EngineConfig{Registry: reg})
	service := &Service{
		Engine:    f.engine,
		Owner:     testOwner,
		NodeName:  "test-node",
		Version:   "0.0.0-test",
		Backend:   "memory",
		StartTime: time.Now(),
		AddAsset: func(caller string, spec AssetSpec) error {
			if spec.ID == 0 {
				return fmt.Errorf("asset id must be non-zero")
			}
			f.added = append(f.added, spec)
			return nil
		},
	}
	f.server = NewServer(service, log.New(&bytes.Buffer{}, "", 0))
	return f
}

func (f *rpcFixture) call(t *testing.T, method string, params interface{}) JsonRpcResponse {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JsonRpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (f *rpcFixture) callOK(t *testing.T, method string, params interface{}) map[string]interface{} {
	t.Helper()
	resp := f.call(t, method, params)
	require.Nil(t, resp.Error, "method %s: %+v", method, resp.Error)
	out, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "result is not an object: %v", resp.Result)
	return out
}

func saleOfferParams(account string) map[string]interface{} {
	return map[string]interface{}{
		"account":            account,
		"amount":             fixed.Units(1, 18).String(),
		"goods_id":           1,
		"rate":               "30000",
		"payment_id":         2,
		"repay_window_secs":  86400,
		"collateral_to_debt": "1.5",
		"liquidation":        "1.25",
	}
}

func TestCreateAndGetSaleOffer(t *testing.T) {
	f := newRPCFixture(t)

	out := f.callOK(t, "create_sale_offer", saleOfferParams(testSeller))
	offer, ok := out["offer"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sale", offer["variant"])
	assert.Equal(t, "pending", offer["status"])
	assert.Equal(t, testSeller, offer["seller"])

	got := f.call(t, "get_sale_offer", map[string]interface{}{"offer_id": 1})
	require.Nil(t, got.Error)
	view := got.Result.(map[string]interface{})
	assert.Equal(t, float64(1), view["id"])
	assert.Equal(t, fixed.Units(30000, 18).String(), view["payment_notional"])
}

func TestAcceptRepayRoundTrip(t *testing.T) {
	f := newRPCFixture(t)
	f.callOK(t, "create_sale_offer", saleOfferParams(testSeller))

	out := f.callOK(t, "accept_sale_offer", map[string]interface{}{
		"account":       testBuyer,
		"offer_id":      1,
		"collateral_id": 2,
	})
	offer := out["offer"].(map[string]interface{})
	assert.Equal(t, "accepted", offer["status"])
	assert.Equal(t, "unlocked", offer["lock"])
	assert.Equal(t, testBuyer, offer["buyer"])

	out = f.callOK(t, "repay", map[string]interface{}{
		"account":  testBuyer,
		"variant":  "sale",
		"offer_id": 1,
	})
	offer = out["offer"].(map[string]interface{})
	assert.Equal(t, "closed", offer["status"])
	assert.Equal(t, "0", offer["outstanding"])
}

func TestEngineRejectionMapsToResultCode(t *testing.T) {
	f := newRPCFixture(t)
	f.callOK(t, "create_sale_offer", saleOfferParams(testSeller))

	resp := f.call(t, "accept_sale_offer", map[string]interface{}{
		"account":       testSeller,
		"offer_id":      1,
		"collateral_id": 2,
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(tx.Unauthorized), resp.Error.Code)

	resp = f.call(t, "cancel_offer", map[string]interface{}{
		"account":  testBuyer,
		"variant":  "sale",
		"offer_id": 99,
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(tx.InvalidState), resp.Error.Code)
}

func TestInvalidParamRejections(t *testing.T) {
	f := newRPCFixture(t)

	tests := []struct {
		name   string
		method string
		params interface{}
		code   int
	}{
		{"unknown method", "no_such_method", map[string]interface{}{}, CodeMethodNotFound},
		{"missing params", "create_sale_offer", nil, CodeInvalidParams},
		{"bad rate", "create_sale_offer", map[string]interface{}{
			"account": testSeller, "amount": "1", "rate": "not-a-number",
		}, CodeInvalidParams},
		{"bad variant", "repay", map[string]interface{}{
			"account": testBuyer, "variant": "loan", "offer_id": 1,
		}, CodeInvalidParams},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.call(t, tc.method, tc.params)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestAddAssetRequiresOwner(t *testing.T) {
	f := newRPCFixture(t)

	resp := f.call(t, "add_asset", map[string]interface{}{
		"account": testSeller,
		"id":      7,
		"symbol":  "ETH",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)
	assert.Empty(t, f.added)

	out := f.callOK(t, "add_asset", map[string]interface{}{
		"account": testOwner,
		"id":      7,
		"symbol":  "ETH",
	})
	assert.Equal(t, "success", out["result"])
	require.Len(t, f.added, 1)
	assert.Equal(t, uint32(7), f.added[0].ID)
	assert.Equal(t, "ETH", f.added[0].Symbol)
}

func TestServerInfo(t *testing.T) {
	f := newRPCFixture(t)
	f.callOK(t, "create_sale_offer", saleOfferParams(testSeller))

	info := f.callOK(t, "server_info", map[string]interface{}{"account": "anyone"})
	assert.Equal(t, "test-node", info["node_name"])
	assert.Equal(t, "memory", info["backend"])
	assert.Equal(t, float64(1), info["sale_offers"])
	methods, ok := info["methods"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, methods, "create_sale_offer")
	assert.Contains(t, methods, "add_asset")
}

func TestClaimableAndCollect(t *testing.T) {
	f := newRPCFixture(t)

	usdEntry, err := f.engine.Registry().Resolve(2)
	require.NoError(t, err)
	usdEntry.Dividend.MintShares(testSeller, fixed.Units(100, 18))

	f.callOK(t, "create_sale_offer", saleOfferParams(testSeller))
	f.callOK(t, "accept_sale_offer", map[string]interface{}{
		"account":       testBuyer,
		"offer_id":      1,
		"collateral_id": 2,
	})

	out := f.callOK(t, "claimable", map[string]interface{}{
		"account":  testSeller,
		"asset_id": 2,
	})
	claim := out["amount"].(string)
	assert.NotEqual(t, "0", claim)

	out = f.callOK(t, "collect_dividends", map[string]interface{}{
		"account":  testSeller,
		"asset_id": 2,
	})
	assert.Equal(t, claim, out["amount"])

	resp := f.call(t, "collect_dividends", map[string]interface{}{
		"account":  testSeller,
		"asset_id": 2,
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(tx.NothingToCollect), resp.Error.Code)
}

func TestRejectsNonPost(t *testing.T) {
	f := newRPCFixture(t)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	f := newRPCFixture(t)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json"))))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JsonRpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}
