package config

// Default policy values.
const (
	// DefaultDustLimit is the standard relay dust floor in satoshis.
	DefaultDustLimit = 546

	// DefaultFeeRate is satoshis per byte.
	DefaultFeeRate = 1

	// DefaultMaxRoleIndex is the exclusive scan bound on role indices.
	DefaultMaxRoleIndex = 32
)

// DefaultMainnet returns the default client configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Server: ServerConfig{
			URL:            "http://127.0.0.1:8332",
			TimeoutSeconds: 10,
		},
		Chain: ChainConfig{
			FeeRate:   DefaultFeeRate,
			DustLimit: DefaultDustLimit,
		},
		Scan: ScanConfig{
			MaxRoleIndex: DefaultMaxRoleIndex,
			MaxMatches:   0,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default client configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Server.URL = "http://127.0.0.1:18332"
	return cfg
}

// Default returns the default client configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
