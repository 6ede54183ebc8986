package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	for _, network := range []NetworkType{Mainnet, Testnet} {
		cfg := Default(network)
		if cfg.Network != network {
			t.Errorf("Default(%s).Network = %s", network, cfg.Network)
		}
		if err := Validate(cfg); err != nil {
			t.Errorf("default %s config should validate: %v", network, err)
		}
	}
	if DefaultMainnet().Server.URL == DefaultTestnet().Server.URL {
		t.Error("networks should default to different server ports")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad network", mutate: func(c *Config) { c.Network = "regtest" }},
		{name: "empty datadir", mutate: func(c *Config) { c.DataDir = "" }},
		{name: "empty server url", mutate: func(c *Config) { c.Server.URL = "" }},
		{name: "relative server url", mutate: func(c *Config) { c.Server.URL = "localhost:8332" }},
		{name: "bad scheme", mutate: func(c *Config) { c.Server.URL = "ftp://127.0.0.1:21" }},
		{name: "zero timeout", mutate: func(c *Config) { c.Server.TimeoutSeconds = 0 }},
		{name: "zero feerate", mutate: func(c *Config) { c.Chain.FeeRate = 0 }},
		{name: "zero dust", mutate: func(c *Config) { c.Chain.DustLimit = 0 }},
		{name: "zero role bound", mutate: func(c *Config) { c.Scan.MaxRoleIndex = 0 }},
		{name: "negative match cap", mutate: func(c *Config) { c.Scan.MaxMatches = -1 }},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Validate(nil); err == nil {
		t.Error("nil config should fail")
	}

	// https and empty log level are both fine.
	cfg := DefaultMainnet()
	cfg.Server.URL = "https://index.example.com"
	cfg.Log.Level = ""
	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stealthpool.conf")
	content := strings.Join([]string{
		"# client settings",
		"",
		"network = testnet",
		`server.url = "http://10.0.0.1:18332"`,
		"chain.feerate = 2",
		"log.level = 'debug'",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	want := map[string]string{
		"network":       "testnet",
		"server.url":    "http://10.0.0.1:18332",
		"chain.feerate": "2",
		"log.level":     "debug",
	}
	if len(values) != len(want) {
		t.Fatalf("got %d values, want %d", len(values), len(want))
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("%s = %q, want %q", k, values[k], v)
		}
	}
}

func TestLoadFileMissing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("missing file should yield empty map, got %v", values)
	}
}

func TestLoadFileBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	if err := os.WriteFile(path, []byte("network testnet\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("line without '=' should fail")
	}
}

func TestApplyFileConfig(t *testing.T) {
	cfg := DefaultMainnet()
	err := ApplyFileConfig(cfg, map[string]string{
		"network":           "testnet",
		"datadir":           "/tmp/sp",
		"server.url":        "http://10.0.0.1:18332",
		"server.timeout":    "30",
		"chain.feerate":     "2",
		"chain.dust":        "1000",
		"scan.maxroleindex": "64",
		"scan.maxmatches":   "5",
		"log.level":         "debug",
		"log.json":          "true",
	})
	if err != nil {
		t.Fatalf("ApplyFileConfig() error: %v", err)
	}

	if cfg.Network != Testnet || cfg.DataDir != "/tmp/sp" {
		t.Error("core settings not applied")
	}
	if cfg.Server.URL != "http://10.0.0.1:18332" || cfg.Server.TimeoutSeconds != 30 {
		t.Error("server settings not applied")
	}
	if cfg.Chain.FeeRate != 2 || cfg.Chain.DustLimit != 1000 {
		t.Error("chain settings not applied")
	}
	if cfg.Scan.MaxRoleIndex != 64 || cfg.Scan.MaxMatches != 5 {
		t.Error("scan settings not applied")
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Error("log settings not applied")
	}
}

func TestApplyFileConfigRejects(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{name: "unknown key", values: map[string]string{"mystery": "1"}},
		{name: "bad integer", values: map[string]string{"chain.feerate": "fast"}},
		{name: "bad boolean", values: map[string]string{"log.json": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ApplyFileConfig(DefaultMainnet(), tt.values); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDirectoryLayout(t *testing.T) {
	cfg := DefaultMainnet()
	cfg.DataDir = "/data/sp"

	if got := cfg.NetworkDataDir(); got != filepath.Join("/data/sp", "mainnet") {
		t.Errorf("NetworkDataDir() = %q", got)
	}
	if got := cfg.KeystoreDir(); got != filepath.Join("/data/sp", "mainnet", "keystore") {
		t.Errorf("KeystoreDir() = %q", got)
	}
	if got := cfg.StoreDir(); got != filepath.Join("/data/sp", "mainnet", "store") {
		t.Errorf("StoreDir() = %q", got)
	}
	if got := cfg.ConfigFile(); got != filepath.Join("/data/sp", "stealthpool.conf") {
		t.Errorf("ConfigFile() = %q", got)
	}
}
