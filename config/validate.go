package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime client config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}

	u, err := url.Parse(cfg.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.url must be a valid URL, got %q", cfg.Server.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url scheme must be http or https")
	}
	if cfg.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}

	if cfg.Chain.FeeRate == 0 {
		return fmt.Errorf("chain.feerate must be positive")
	}
	if cfg.Chain.DustLimit == 0 {
		return fmt.Errorf("chain.dust must be positive")
	}

	if cfg.Scan.MaxRoleIndex == 0 {
		return fmt.Errorf("scan.maxroleindex must be positive")
	}
	if cfg.Scan.MaxMatches < 0 {
		return fmt.Errorf("scan.maxmatches must not be negative")
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}

	return nil
}
