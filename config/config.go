// Package config handles client configuration.
//
// Everything here is operational: which index server to talk to, fee and
// dust policy, scan bounds. Protocol constants (derivation tags, the
// hash-fold rules) live in the protocol packages and are not
// configurable.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds client runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Index server
	Server ServerConfig

	// Transaction policy
	Chain ChainConfig

	// Discovery scanning
	Scan ScanConfig

	// Logging
	Log LogConfig
}

// ServerConfig holds index-server connection settings.
type ServerConfig struct {
	URL            string `conf:"server.url"`
	TimeoutSeconds int    `conf:"server.timeout"`
}

// ChainConfig holds fee and dust policy.
type ChainConfig struct {
	// FeeRate is satoshis per byte.
	FeeRate uint64 `conf:"chain.feerate"`
	// DustLimit is the minimum output value in satoshis.
	DustLimit uint64 `conf:"chain.dust"`
}

// ScanConfig bounds the discovery scan.
type ScanConfig struct {
	// MaxRoleIndex is the exclusive upper bound on role indices tried
	// per input during a scan.
	MaxRoleIndex uint32 `conf:"scan.maxroleindex"`
	// MaxMatches caps matches per transaction; 0 means unlimited.
	MaxMatches int `conf:"scan.maxmatches"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.stealthpool
//	macOS:   ~/Library/Application Support/Stealthpool
//	Windows: %APPDATA%\Stealthpool
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stealthpool"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Stealthpool")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Stealthpool")
		}
		return filepath.Join(home, "AppData", "Roaming", "Stealthpool")
	default:
		return filepath.Join(home, ".stealthpool")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// StoreDir returns the pool/note store directory.
func (c *Config) StoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "store")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "stealthpool.conf")
}
