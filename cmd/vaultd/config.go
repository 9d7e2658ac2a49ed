package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the vaultd deployment configuration. It follows config.Config's
// flat TOML shape rather than that package's chain-wide fields, since vaultd
// has no validator key, peer list, or consensus listen address to carry.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	MetricsAddress string `toml:"MetricsAddress"`

	OTelEndpoint string `toml:"OTelEndpoint"`
	OTelInsecure bool   `toml:"OTelInsecure"`

	JWTSecretEnv   string `toml:"JWTSecretEnv"`
	JWTIssuer      string `toml:"JWTIssuer"`
	JWTMaxSkewSecs int64  `toml:"JWTMaxSkewSeconds"`

	// Mode names the deployment's engine ("vault" for the multi-vault fleet
	// or "grant" for the single-beneficiary variant). It is only reported in
	// the startup log; both engines are served whatever its value.
	Mode string `toml:"Mode"`
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress:  "127.0.0.1:8545",
		DataDir:        "./vaultd-data",
		Environment:    "development",
		MetricsAddress: "127.0.0.1:9464",
		JWTSecretEnv:   "VAULTD_JWT_SECRET",
		JWTMaxSkewSecs: 30,
		Mode:           "vault",
	}
}

// loadConfig reads path, writing out a default file on first run the way
// config.Load does for the chain-wide config.
func loadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		defer f.Close()
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
