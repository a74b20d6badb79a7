package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes as "30s" style strings
// in JSON and YAML files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	// Accept plain numbers as seconds
	var secs float64
	if err := json.Unmarshal(data, &secs); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText is also what env.Parse uses for ALGOCONNECT_* overrides.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Network NetworkConfig `json:"network" yaml:"network"`
	Session SessionConfig `json:"session" yaml:"session"`
	Wallets WalletsConfig `json:"wallets" yaml:"wallets"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Log     LogConfig     `json:"log" yaml:"log"`
	mu      sync.RWMutex
}

type NetworkConfig struct {
	Mode        string `json:"mode" yaml:"mode" env:"ALGOCONNECT_NETWORK_MODE"`
	ProviderEnv string `json:"provider_env" yaml:"provider_env" env:"ALGOCONNECT_NETWORK_PROVIDER_ENV"`
	AlgodURL    string `json:"algod_url" yaml:"algod_url" env:"ALGOCONNECT_NETWORK_ALGOD_URL"`
	AlgodToken  string `json:"algod_token" yaml:"algod_token" env:"ALGOCONNECT_NETWORK_ALGOD_TOKEN"`
	EthRPC      string `json:"eth_rpc" yaml:"eth_rpc" env:"ALGOCONNECT_NETWORK_ETH_RPC"`
	EthChainID  int64  `json:"eth_chain_id" yaml:"eth_chain_id" env:"ALGOCONNECT_NETWORK_ETH_CHAIN_ID"`
}

type SessionConfig struct {
	Strategy         string   `json:"strategy" yaml:"strategy" env:"ALGOCONNECT_SESSION_STRATEGY"` // eager or lazy
	Decimals         int      `json:"decimals" yaml:"decimals" env:"ALGOCONNECT_SESSION_DECIMALS"`
	LoadTimeout      Duration `json:"load_timeout" yaml:"load_timeout" env:"ALGOCONNECT_SESSION_LOAD_TIMEOUT"`
	DiscoveryTimeout Duration `json:"discovery_timeout" yaml:"discovery_timeout" env:"ALGOCONNECT_SESSION_DISCOVERY_TIMEOUT"`
	BalanceTimeout   Duration `json:"balance_timeout" yaml:"balance_timeout" env:"ALGOCONNECT_SESSION_BALANCE_TIMEOUT"`
}

type WalletsConfig struct {
	MyAlgo   MyAlgoConfig   `json:"myalgo" yaml:"myalgo"`
	Pera     PeraConfig     `json:"pera" yaml:"pera"`
	Keystore KeystoreConfig `json:"keystore" yaml:"keystore"`
}

type MyAlgoConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" env:"ALGOCONNECT_WALLETS_MYALGO_ENABLED"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr" env:"ALGOCONNECT_WALLETS_MYALGO_LISTEN_ADDR"`
}

type PeraConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" env:"ALGOCONNECT_WALLETS_PERA_ENABLED"`
	BridgeURL string `json:"bridge_url" yaml:"bridge_url" env:"ALGOCONNECT_WALLETS_PERA_BRIDGE_URL"`
	ShowQR    bool   `json:"show_qr" yaml:"show_qr" env:"ALGOCONNECT_WALLETS_PERA_SHOW_QR"`
}

type KeystoreConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"ALGOCONNECT_WALLETS_KEYSTORE_ENABLED"`
	Dir     string `json:"dir" yaml:"dir" env:"ALGOCONNECT_WALLETS_KEYSTORE_DIR"`
	PIN     string `json:"pin,omitempty" yaml:"pin,omitempty" env:"ALGOCONNECT_WALLETS_KEYSTORE_PIN"`
}

type GatewayConfig struct {
	Host             string  `json:"host" yaml:"host" env:"ALGOCONNECT_GATEWAY_HOST"`
	Port             int     `json:"port" yaml:"port" env:"ALGOCONNECT_GATEWAY_PORT"`
	ConnectPerMinute float64 `json:"connect_per_minute" yaml:"connect_per_minute" env:"ALGOCONNECT_GATEWAY_CONNECT_PER_MINUTE"`
	ConnectBurst     int     `json:"connect_burst" yaml:"connect_burst" env:"ALGOCONNECT_GATEWAY_CONNECT_BURST"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level" env:"ALGOCONNECT_LOG_LEVEL"`
	JSON  bool   `json:"json" yaml:"json" env:"ALGOCONNECT_LOG_JSON"`
}

const (
	StrategyEager = "eager"
	StrategyLazy  = "lazy"
)

var defaultAlgodURLs = map[string]string{
	"TestNet": "https://testnet-api.algonode.cloud",
	"MainNet": "https://mainnet-api.algonode.cloud",
	"BetaNet": "https://betanet-api.algonode.cloud",
}

func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Mode:        "ALGO",
			ProviderEnv: "TestNet",
			AlgodURL:    "",
			EthRPC:      "",
			EthChainID:  0,
		},
		Session: SessionConfig{
			Strategy:         StrategyLazy,
			Decimals:         4,
			LoadTimeout:      Duration(30 * time.Second),
			DiscoveryTimeout: Duration(2 * time.Minute),
			BalanceTimeout:   Duration(15 * time.Second),
		},
		Wallets: WalletsConfig{
			MyAlgo: MyAlgoConfig{
				Enabled:    true,
				ListenAddr: "127.0.0.1:18791",
			},
			Pera: PeraConfig{
				Enabled:   true,
				BridgeURL: "wss://bridge.walletconnect.org",
				ShowQR:    true,
			},
			Keystore: KeystoreConfig{
				Enabled: false,
				Dir:     "~/.algoconnect/keystore",
			},
		},
		Gateway: GatewayConfig{
			Host:             "127.0.0.1",
			Port:             18790,
			ConnectPerMinute: 10,
			ConnectBurst:     3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a JSON or YAML file over DefaultConfig, then applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		if isYAML(path) {
			err = yaml.Unmarshal(data, cfg)
		} else {
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate checks values that would otherwise fail late, at first connect.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch strings.ToUpper(c.Network.Mode) {
	case "ALGO":
		if c.algodURL() == "" {
			return fmt.Errorf("network.algod_url is required for provider env %q", c.Network.ProviderEnv)
		}
	case "ETH":
		if c.Network.EthRPC == "" {
			return fmt.Errorf("network.eth_rpc is required when mode is ETH")
		}
	default:
		return fmt.Errorf("unsupported network mode %q", c.Network.Mode)
	}

	switch c.Session.Strategy {
	case StrategyEager, StrategyLazy:
	default:
		return fmt.Errorf("session.strategy must be %q or %q, got %q", StrategyEager, StrategyLazy, c.Session.Strategy)
	}

	if c.Session.Decimals < 0 {
		return fmt.Errorf("session.decimals must not be negative")
	}
	if c.Session.DiscoveryTimeout <= 0 || c.Session.BalanceTimeout <= 0 || c.Session.LoadTimeout <= 0 {
		return fmt.Errorf("session timeouts must be positive")
	}

	return nil
}

// AlgodURL returns the configured algod endpoint, or the public node for
// the provider env when none is set.
func (c *Config) AlgodURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.algodURL()
}

func (c *Config) algodURL() string {
	if c.Network.AlgodURL != "" {
		return c.Network.AlgodURL
	}
	return defaultAlgodURLs[c.Network.ProviderEnv]
}

func (c *Config) KeystoreDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Wallets.Keystore.Dir)
}

func (c *Config) GatewayAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
