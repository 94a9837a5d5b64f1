// Package config loads and validates the daemon configuration from
// barterd.toml, environment variables and built-in defaults.
package config

import "fmt"

// Config is the complete daemon configuration.
type Config struct {
	// NodeName labels the node in logs and server_info.
	NodeName string `mapstructure:"node_name"`

	// Standalone runs the node with in-memory storage and static
	// prices, for local development and tests.
	Standalone bool `mapstructure:"standalone"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Genesis  GenesisConfig  `mapstructure:"genesis"`

	configPath string
}

// ServerConfig holds the JSON-RPC listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Address returns the host:port the RPC server binds.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds the state store settings.
type DatabaseConfig struct {
	// Path is the on-disk database location.
	Path string `mapstructure:"path"`

	// Backend selects the storage backend ("pebble" or "memory").
	Backend string `mapstructure:"backend"`

	// Compressor selects record compression ("lz4" or "none").
	Compressor string `mapstructure:"compressor"`

	// CacheSize is the decoded-record LRU capacity.
	CacheSize int `mapstructure:"cache_size"`

	// CacheMB is the backend block cache size in megabytes.
	CacheMB int `mapstructure:"cache_mb"`
}

// EngineConfig holds the offer engine settings.
type EngineConfig struct {
	// FeeBps is the acceptance fee in basis points of the payment
	// notional.
	FeeBps int64 `mapstructure:"fee_bps"`

	// Owner is the principal allowed to register assets.
	Owner string `mapstructure:"owner"`

	// OracleCacheSize and OracleMaxAgeSecs bound the price cache.
	OracleCacheSize  int `mapstructure:"oracle_cache_size"`
	OracleMaxAgeSecs int `mapstructure:"oracle_max_age_secs"`
}

// GenesisConfig seeds the node's initial state on first boot.
type GenesisConfig struct {
	Assets []GenesisAsset `mapstructure:"assets"`
}

// GenesisAsset registers one asset at boot.
type GenesisAsset struct {
	ID             uint32 `mapstructure:"id"`
	Symbol         string `mapstructure:"symbol"`
	Decimals       uint8  `mapstructure:"decimals"`
	OracleDecimals uint8  `mapstructure:"oracle_decimals"`

	// Price is the static feed price as a decimal string, e.g.
	// "30000". Required in standalone mode.
	Price string `mapstructure:"price"`

	// Balances are initial account balances in smallest units.
	Balances map[string]string `mapstructure:"balances"`

	// Shares are initial dividend share allocations in smallest units.
	Shares map[string]string `mapstructure:"shares"`
}

// Path returns the config file the configuration was loaded from, or
// empty if defaults only.
func (c *Config) Path() string { return c.configPath }
