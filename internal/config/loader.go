package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration in priority order: defaults, then the
// TOML file at path, then BARTERD_ environment variables. An empty
// path falls back to barterd.toml in the working directory if one
// exists; otherwise defaults apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	resolved, err := resolveConfigFile(v, path)
	if err != nil {
		return nil, err
	}

	v.SetEnvPrefix("BARTERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.configPath = resolved

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func resolveConfigFile(v *viper.Viper, path string) (string, error) {
	if path == "" {
		if _, err := os.Stat("barterd.toml"); err != nil {
			return "", nil
		}
		path = "barterd.toml"
	}
	v.SetConfigFile(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("config file does not exist: %s", path)
	}
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config file %s: %w", path, err)
	}
	return path, nil
}

// WriteDefaultConfig writes a commented starter barterd.toml to path.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing %s", path)
	}
	return os.WriteFile(path, []byte(defaultConfigTOML), 0o644)
}

const defaultConfigTOML = `# barterd configuration

node_name = "barterd"

# Standalone mode keeps all state in memory and serves static oracle
# prices from the genesis section.
standalone = false

[server]
host = "127.0.0.1"
port = 7140

[database]
path = "data"
backend = "pebble"      # pebble | memory
compressor = "lz4"      # lz4 | none
cache_size = 4096
cache_mb = 64

[engine]
fee_bps = 15
owner = "owner"
oracle_cache_size = 256
oracle_max_age_secs = 60

# Genesis assets are registered on first boot.
#
# [[genesis.assets]]
# id = 1
# symbol = "BTC"
# decimals = 18
# oracle_decimals = 18
# price = "30000"
#
# [genesis.assets.balances]
# alice = "1000000000000000000"
#
# [genesis.assets.shares]
# alice = "100000000000000000000000"
`
