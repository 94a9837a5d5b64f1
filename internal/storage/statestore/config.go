package statestore

// Config holds the state store settings.
type Config struct {
	// Path is the on-disk location for persistent backends.
	Path string

	// Backend selects the storage backend, "pebble" or "memory".
	Backend string

	// Compressor selects record compression, "lz4" or "none".
	Compressor string

	// CacheSize is the number of decoded records held in the read
	// cache.
	CacheSize int

	// CacheMB is the backend block cache size in megabytes.
	CacheMB int
}

// DefaultConfig returns the standard settings: pebble with lz4.
func DefaultConfig() *Config {
	return &Config{
		Backend:    "pebble",
		Compressor: "lz4",
		CacheSize:  4096,
		CacheMB:    64,
	}
}
