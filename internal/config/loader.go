package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SETTLEBOT_* environment variable overrides, and
// fills in network defaults for any gateway fields left empty. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	cfg.ApplyNetworkDefaults()

	return &cfg, nil
}

// applyEnvOverrides reads well-known SETTLEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SETTLEBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SETTLEBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SETTLEBOT_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.AgentAddress, "SETTLEBOT_WALLET_AGENT_ADDRESS")

	// ── ACP ──
	setStr(&cfg.ACP.Network, "SETTLEBOT_ACP_NETWORK")
	setStr(&cfg.ACP.GatewayURL, "SETTLEBOT_ACP_GATEWAY_URL")
	setStr(&cfg.ACP.ContractAddress, "SETTLEBOT_ACP_CONTRACT_ADDRESS")
	setInt(&cfg.ACP.ChainID, "SETTLEBOT_ACP_CHAIN_ID")
	setInt(&cfg.ACP.EntityID, "SETTLEBOT_ACP_ENTITY_ID")

	// ── Registry ──
	setStr(&cfg.Registry.GraphqlURL, "SETTLEBOT_REGISTRY_GRAPHQL_URL")
	setStr(&cfg.Registry.ApiKey, "SETTLEBOT_REGISTRY_API_KEY")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SETTLEBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SETTLEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SETTLEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SETTLEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SETTLEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SETTLEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SETTLEBOT_REDIS_TLS_ENABLED")

	// ── Settle ──
	setStr(&cfg.Settle.BaseSymbol, "SETTLEBOT_SETTLE_BASE_SYMBOL")
	setInt(&cfg.Settle.BaseDecimals, "SETTLEBOT_SETTLE_BASE_DECIMALS")

	// ── Trigger ──
	setStr(&cfg.Trigger.Source, "SETTLEBOT_TRIGGER_SOURCE")

	// ── Sim ──
	setStr(&cfg.Sim.BuyerAddress, "SETTLEBOT_SIM_BUYER_ADDRESS")
	setStr(&cfg.Sim.ProviderAddress, "SETTLEBOT_SIM_PROVIDER_ADDRESS")
	setDuration(&cfg.Sim.StepDelay, "SETTLEBOT_SIM_STEP_DELAY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SETTLEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SETTLEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SETTLEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SETTLEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SETTLEBOT_MODE")
	setStr(&cfg.LogLevel, "SETTLEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
