package config

import (
	"fmt"

	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// ValidateConfig checks the configuration for internal consistency.
func ValidateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	switch cfg.Database.Backend {
	case "pebble", "memory":
	default:
		return fmt.Errorf("database.backend %q unknown (pebble, memory)", cfg.Database.Backend)
	}
	switch cfg.Database.Compressor {
	case "lz4", "none":
	default:
		return fmt.Errorf("database.compressor %q unknown (lz4, none)", cfg.Database.Compressor)
	}
	if cfg.Database.Backend == "pebble" && !cfg.Standalone && cfg.Database.Path == "" {
		return fmt.Errorf("database.path required for the pebble backend")
	}
	if cfg.Engine.FeeBps < 0 || cfg.Engine.FeeBps > 10000 {
		return fmt.Errorf("engine.fee_bps %d out of range [0, 10000]", cfg.Engine.FeeBps)
	}
	if cfg.Engine.Owner == "" {
		return fmt.Errorf("engine.owner must be set")
	}
	return validateGenesis(&cfg.Genesis)
}

func validateGenesis(g *GenesisConfig) error {
	seen := make(map[uint32]bool, len(g.Assets))
	for i, asset := range g.Assets {
		if asset.ID == 0 {
			return fmt.Errorf("genesis.assets[%d]: id must be non-zero", i)
		}
		if seen[asset.ID] {
			return fmt.Errorf("genesis.assets[%d]: duplicate id %d", i, asset.ID)
		}
		seen[asset.ID] = true
		if asset.Symbol == "" {
			return fmt.Errorf("genesis.assets[%d]: symbol must be set", i)
		}
		if asset.Decimals > 18 || asset.OracleDecimals > 18 {
			return fmt.Errorf("genesis.assets[%d]: decimals above 18", i)
		}
		if asset.Price != "" {
			if _, err := fixed.ParseRatio(asset.Price); err != nil {
				return fmt.Errorf("genesis.assets[%d]: bad price %q: %w", i, asset.Price, err)
			}
		}
		for account, balance := range asset.Balances {
			if _, err := fixed.ParseAmount(balance); err != nil {
				return fmt.Errorf("genesis.assets[%d]: bad balance for %s: %w", i, account, err)
			}
		}
		for holder, shares := range asset.Shares {
			if _, err := fixed.ParseAmount(shares); err != nil {
				return fmt.Errorf("genesis.assets[%d]: bad shares for %s: %w", i, holder, err)
			}
		}
	}
	return nil
}
