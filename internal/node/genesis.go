package node

import (
	"fmt"
	"math/big"

	"github.com/barterlabs/goBarterd/internal/config"
	"github.com/barterlabs/goBarterd/internal/core/assets"
	"github.com/barterlabs/goBarterd/internal/core/dividend"
	"github.com/barterlabs/goBarterd/internal/core/fixed"
	"github.com/barterlabs/goBarterd/internal/core/oracle"
	"github.com/barterlabs/goBarterd/internal/core/tx"
	"github.com/barterlabs/goBarterd/internal/storage/statestore"
)

// buildAssets registers every genesis asset. Persisted balance sheets
// and dividend ledgers take precedence over the genesis allocations, so
// a restarted node resumes where it stopped instead of re-minting.
func buildAssets(cfg *config.Config, store *statestore.Store, feed *oracle.StaticSource, prices oracle.PriceSource) (*assets.Registry, map[uint32]*assets.Token, error) {
	registry := assets.NewRegistry(cfg.Engine.Owner)
	tokens := make(map[uint32]*assets.Token, len(cfg.Genesis.Assets))

	for _, ga := range cfg.Genesis.Assets {
		token, ledger, err := buildAsset(store, feed, assetSeed{
			ID:             ga.ID,
			Symbol:         ga.Symbol,
			Decimals:       ga.Decimals,
			OracleDecimals: ga.OracleDecimals,
			Price:          ga.Price,
			Balances:       ga.Balances,
			Shares:         ga.Shares,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := registry.Add(cfg.Engine.Owner, assets.Entry{
			ID:             ga.ID,
			Symbol:         ga.Symbol,
			Token:          token,
			Oracle:         prices,
			Dividend:       ledger,
			TokenDecimals:  ga.Decimals,
			OracleDecimals: ga.OracleDecimals,
		}); err != nil {
			return nil, nil, err
		}
		tokens[ga.ID] = token
	}
	return registry, tokens, nil
}

// assetSeed describes one asset to build, from genesis config or the
// add_asset RPC.
type assetSeed struct {
	ID             uint32
	Symbol         string
	Decimals       uint8
	OracleDecimals uint8
	Price          string
	Balances       map[string]string
	Shares         map[string]string
}

// buildAsset constructs the token and dividend ledger for one asset,
// preferring persisted state over the seed allocations.
func buildAsset(store *statestore.Store, feed *oracle.StaticSource, seed assetSeed) (*assets.Token, *dividend.Ledger, error) {
	token := assets.NewToken(seed.Symbol, seed.Decimals)
	payout := dividend.PayoutFunc(func(to string, amount fixed.Amount) error {
		return token.Transfer(tx.CustodyAccount, to, amount)
	})

	bank, ok, err := loadBank(store, seed.ID)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		if err := token.SetBalances(bank.Balances); err != nil {
			return nil, nil, fmt.Errorf("node: asset %d: %w", seed.ID, err)
		}
	} else {
		for addr, s := range seed.Balances {
			amount, err := fixed.ParseAmount(s)
			if err != nil {
				return nil, nil, fmt.Errorf("node: asset %d balance for %s: %w", seed.ID, addr, err)
			}
			token.Mint(addr, amount)
		}
	}

	var ledger *dividend.Ledger
	snap, ok, err := loadDividend(store, seed.ID)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		if ledger, err = dividend.RestoreLedger(snap, payout); err != nil {
			return nil, nil, fmt.Errorf("node: asset %d: %w", seed.ID, err)
		}
	} else {
		ledger = dividend.NewLedger(payout)
		for addr, s := range seed.Shares {
			amount, err := fixed.ParseAmount(s)
			if err != nil {
				return nil, nil, fmt.Errorf("node: asset %d shares for %s: %w", seed.ID, addr, err)
			}
			ledger.MintShares(addr, amount)
		}
	}

	if seed.Price != "" {
		value, err := priceUnits(seed.Price, seed.OracleDecimals)
		if err != nil {
			return nil, nil, fmt.Errorf("node: asset %d price: %w", seed.ID, err)
		}
		if err := feed.Set(seed.ID, value, seed.OracleDecimals); err != nil {
			return nil, nil, fmt.Errorf("node: asset %d price: %w", seed.ID, err)
		}
	}
	return token, ledger, nil
}

// priceUnits converts a decimal price string into feed units at the
// given precision.
func priceUnits(price string, decimals uint8) (*big.Int, error) {
	r, err := fixed.ParseRatio(price)
	if err != nil {
		return nil, err
	}
	return fixed.ScaleDecimals(r.BigInt(), fixed.RatioDecimals, decimals), nil
}
