package config

import "github.com/spf13/viper"

// Default settings.
const (
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 7140
	DefaultBackend    = "pebble"
	DefaultCompressor = "lz4"
	DefaultFeeBps     = 15
	DefaultOwner      = "owner"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("node_name", "barterd")
	v.SetDefault("standalone", false)

	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)

	v.SetDefault("database.path", "data")
	v.SetDefault("database.backend", DefaultBackend)
	v.SetDefault("database.compressor", DefaultCompressor)
	v.SetDefault("database.cache_size", 4096)
	v.SetDefault("database.cache_mb", 64)

	v.SetDefault("engine.fee_bps", DefaultFeeBps)
	v.SetDefault("engine.owner", DefaultOwner)
	v.SetDefault("engine.oracle_cache_size", 256)
	v.SetDefault("engine.oracle_max_age_secs", 60)
}
