// Package config defines the top-level configuration for the settlement agent
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SETTLEBOT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	ACP      ACPConfig      `toml:"acp"`
	Registry RegistryConfig `toml:"registry"`
	Redis    RedisConfig    `toml:"redis"`
	Settle   SettleConfig   `toml:"settle"`
	Trigger  TriggerConfig  `toml:"trigger"`
	Sim      SimConfig      `toml:"sim"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the whitelisted signing wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	AgentAddress     string `toml:"agent_address"`
}

// ACPConfig holds commerce-protocol gateway and chain parameters. GatewayURL,
// ContractAddress, and ChainID may be left empty to inherit the defaults for
// the selected Network.
type ACPConfig struct {
	Network         string `toml:"network"`
	GatewayURL      string `toml:"gateway_url"`
	ContractAddress string `toml:"contract_address"`
	ChainID         int    `toml:"chain_id"`
	EntityID        int    `toml:"entity_id"`
}

// RegistryConfig holds token-registry subgraph parameters.
type RegistryConfig struct {
	GraphqlURL string `toml:"graphql_url"`
	ApiKey     string `toml:"api_key"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; when
// Enabled is false the agent runs with in-process locking and no fare cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// SettleConfig holds settlement parameters, chiefly the base currency every
// payable is denominated in.
type SettleConfig struct {
	BaseSymbol   string `toml:"base_symbol"`
	BaseDecimals int    `toml:"base_decimals"`
}

// TriggerConfig selects where operator threshold decisions come from.
type TriggerConfig struct {
	// Source is "console" (interactive stdin prompt) or "redis" (pub/sub
	// signal bus, for detached operation).
	Source string `toml:"source"`
}

// SimConfig holds parameters for the scripted in-process gateway used by
// simulate mode.
type SimConfig struct {
	BuyerAddress    string   `toml:"buyer_address"`
	ProviderAddress string   `toml:"provider_address"`
	StepDelay       duration `toml:"step_delay"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// networkDefaults carries the per-network gateway endpoint, protocol contract,
// and chain id applied when the corresponding ACPConfig fields are left empty.
type networkDefaults struct {
	GatewayURL      string
	ContractAddress string
	ChainID         int
}

var networks = map[string]networkDefaults{
	"base": {
		GatewayURL:      "wss://acp-gateway.virtuals.io/ws",
		ContractAddress: "0xDba7cF1812917b0033b7c6D38dAcFEEbd3e0E2a0",
		ChainID:         8453,
	},
	"base-sepolia": {
		GatewayURL:      "wss://acp-gateway-sepolia.virtuals.io/ws",
		ContractAddress: "0x2Afe1Ca9aE6bc1d1D3aA3a9Fa2D2fD1e6D4aD27e",
		ChainID:         84532,
	},
}

// ApplyNetworkDefaults fills in GatewayURL, ContractAddress, and ChainID from
// the selected network's defaults when the explicit fields are empty. Unknown
// networks are left untouched and reported by Validate.
func (c *Config) ApplyNetworkDefaults() {
	nd, ok := networks[strings.ToLower(c.ACP.Network)]
	if !ok {
		return
	}
	if c.ACP.GatewayURL == "" {
		c.ACP.GatewayURL = nd.GatewayURL
	}
	if c.ACP.ContractAddress == "" {
		c.ACP.ContractAddress = nd.ContractAddress
	}
	if c.ACP.ChainID == 0 {
		c.ACP.ChainID = nd.ChainID
	}
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		ACP: ACPConfig{
			Network: "base",
		},
		Registry: RegistryConfig{
			GraphqlURL: "https://api.goldsky.com/api/public/project_virtuals/subgraphs/acp-tokens/latest/gn",
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Settle: SettleConfig{
			BaseSymbol:   "USDC",
			BaseDecimals: 6,
		},
		Trigger: TriggerConfig{
			Source: "console",
		},
		Sim: SimConfig{
			BuyerAddress:    "0x1111111111111111111111111111111111111111",
			ProviderAddress: "0x2222222222222222222222222222222222222222",
			StepDelay:       duration{200 * time.Millisecond},
		},
		Notify: NotifyConfig{
			Events: []string{"position_open", "position_close", "trigger_fill", "swap", "error"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":    true,
	"simulate": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validTriggerSources enumerates the accepted values for TriggerConfig.Source.
var validTriggerSources = map[string]bool{
	"console": true,
	"redis":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. Call ApplyNetworkDefaults
// before Validate.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, simulate)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet and gateway credentials are only required to reach a live
	// gateway; simulate mode runs without them.
	if mode == "serve" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode serve")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Wallet.AgentAddress == "" {
			errs = append(errs, "wallet: agent_address must not be empty for mode serve")
		} else if !common.IsHexAddress(c.Wallet.AgentAddress) {
			errs = append(errs, fmt.Sprintf("wallet: agent_address %q is not a valid address", c.Wallet.AgentAddress))
		}
		if c.ACP.EntityID <= 0 {
			errs = append(errs, "acp: entity_id must be positive for mode serve")
		}
		if c.ACP.GatewayURL == "" {
			errs = append(errs, "acp: gateway_url must not be empty (set it or pick a known network)")
		}
	}

	if _, ok := networks[strings.ToLower(c.ACP.Network)]; !ok {
		errs = append(errs, fmt.Sprintf("acp: unknown network %q (valid: base, base-sepolia)", c.ACP.Network))
	}
	if c.ACP.ContractAddress != "" && !common.IsHexAddress(c.ACP.ContractAddress) {
		errs = append(errs, fmt.Sprintf("acp: contract_address %q is not a valid address", c.ACP.ContractAddress))
	}
	if c.ACP.ChainID < 0 {
		errs = append(errs, fmt.Sprintf("acp: chain_id must not be negative, got %d", c.ACP.ChainID))
	}

	if c.Registry.GraphqlURL == "" {
		errs = append(errs, "registry: graphql_url must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Settle.BaseSymbol == "" {
		errs = append(errs, "settle: base_symbol must not be empty")
	}
	if c.Settle.BaseDecimals < 0 {
		errs = append(errs, fmt.Sprintf("settle: base_decimals must not be negative, got %d", c.Settle.BaseDecimals))
	}

	src := strings.ToLower(c.Trigger.Source)
	if !validTriggerSources[src] {
		errs = append(errs, fmt.Sprintf("trigger: unknown source %q (valid: console, redis)", c.Trigger.Source))
	}
	if src == "redis" && !c.Redis.Enabled {
		errs = append(errs, "trigger: source \"redis\" requires redis.enabled = true")
	}

	if mode == "simulate" {
		if !common.IsHexAddress(c.Sim.BuyerAddress) {
			errs = append(errs, fmt.Sprintf("sim: buyer_address %q is not a valid address", c.Sim.BuyerAddress))
		}
		if !common.IsHexAddress(c.Sim.ProviderAddress) {
			errs = append(errs, fmt.Sprintf("sim: provider_address %q is not a valid address", c.Sim.ProviderAddress))
		}
	}

	// Telegram credentials must be set together, or not at all.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
