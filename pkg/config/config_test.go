package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ALGO", cfg.Network.Mode)
	assert.Equal(t, "TestNet", cfg.Network.ProviderEnv)
	assert.Equal(t, 4, cfg.Session.Decimals)
	assert.Equal(t, "https://testnet-api.algonode.cloud", cfg.AlgodURL())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, StrategyLazy, cfg.Session.Strategy)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"network": {"mode": "ALGO", "provider_env": "MainNet"},
		"session": {"strategy": "eager", "decimals": 2, "discovery_timeout": "45s", "balance_timeout": 5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://mainnet-api.algonode.cloud", cfg.AlgodURL())
	assert.Equal(t, StrategyEager, cfg.Session.Strategy)
	assert.Equal(t, 2, cfg.Session.Decimals)
	assert.Equal(t, 45*time.Second, cfg.Session.DiscoveryTimeout.Std())
	assert.Equal(t, 5*time.Second, cfg.Session.BalanceTimeout.Std())
	// untouched sections keep their defaults
	assert.Equal(t, 18790, cfg.Gateway.Port)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
network:
  mode: ETH
  eth_rpc: http://127.0.0.1:8545
  eth_chain_id: 1337
session:
  balance_timeout: 3s
wallets:
  keystore:
    enabled: true
    dir: /tmp/ks
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ETH", cfg.Network.Mode)
	assert.Equal(t, int64(1337), cfg.Network.EthChainID)
	assert.Equal(t, 3*time.Second, cfg.Session.BalanceTimeout.Std())
	assert.True(t, cfg.Wallets.Keystore.Enabled)
	assert.Equal(t, "/tmp/ks", cfg.KeystoreDir())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ALGOCONNECT_SESSION_DECIMALS", "6")
	t.Setenv("ALGOCONNECT_SESSION_DISCOVERY_TIMEOUT", "10s")
	t.Setenv("ALGOCONNECT_WALLETS_PERA_ENABLED", "false")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Session.Decimals)
	assert.Equal(t, 10*time.Second, cfg.Session.DiscoveryTimeout.Std())
	assert.False(t, cfg.Wallets.Pera.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Network.Mode = "CFX" }},
		{"eth without rpc", func(c *Config) { c.Network.Mode = "ETH" }},
		{"algo unknown env without url", func(c *Config) { c.Network.ProviderEnv = "DevNet" }},
		{"bad strategy", func(c *Config) { c.Session.Strategy = "sometimes" }},
		{"negative decimals", func(c *Config) { c.Session.Decimals = -1 }},
		{"zero timeout", func(c *Config) { c.Session.BalanceTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveConfig_RoundTripJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Session.Decimals = 3

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Session.Decimals)
	assert.Equal(t, cfg.Session.DiscoveryTimeout, loaded.Session.DiscoveryTimeout)
}
