package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidateSimulate(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "simulate"
	cfg.ApplyNetworkDefaults()

	require.NoError(t, cfg.Validate())
}

func TestValidateServeRequiresCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.ApplyNetworkDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "wallet: either private_key or encrypted_key_path")
	require.Contains(t, err.Error(), "agent_address")
	require.Contains(t, err.Error(), "entity_id")
}

func TestValidateServePasses(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	cfg.Wallet.AgentAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	cfg.ACP.EntityID = 7
	cfg.ApplyNetworkDefaults()

	require.NoError(t, cfg.Validate())
}

func TestApplyNetworkDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.ACP.Network = "base-sepolia"
	cfg.ApplyNetworkDefaults()

	require.Equal(t, 84532, cfg.ACP.ChainID)
	require.NotEmpty(t, cfg.ACP.GatewayURL)
	require.NotEmpty(t, cfg.ACP.ContractAddress)

	// Explicit values win over network defaults.
	cfg = Defaults()
	cfg.ACP.Network = "base-sepolia"
	cfg.ACP.GatewayURL = "wss://gateway.example/ws"
	cfg.ApplyNetworkDefaults()
	require.Equal(t, "wss://gateway.example/ws", cfg.ACP.GatewayURL)
	require.Equal(t, 84532, cfg.ACP.ChainID)
}

func TestValidateTriggerSourceRedisNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "simulate"
	cfg.Trigger.Source = "redis"
	cfg.ApplyNetworkDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires redis.enabled")

	cfg.Redis.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "simulate"
log_level = "debug"

[acp]
network = "base-sepolia"

[settle]
base_symbol = "VIRTUAL"
base_decimals = 18
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("SETTLEBOT_SETTLE_BASE_SYMBOL", "USDC")
	t.Setenv("SETTLEBOT_REDIS_ADDR", "redis.internal:6380")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "simulate", cfg.Mode)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 84532, cfg.ACP.ChainID)
	// Env overrides the file; untouched file values survive.
	require.Equal(t, "USDC", cfg.Settle.BaseSymbol)
	require.Equal(t, 18, cfg.Settle.BaseDecimals)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Redis.Password = "hunter2"
	cfg.Registry.ApiKey = "key"
	cfg.Notify.TelegramToken = "tok"
	cfg.Notify.TelegramChatID = "42"

	red := RedactedConfig(&cfg)
	require.Equal(t, "***", red.Wallet.PrivateKey)
	require.Equal(t, "***", red.Redis.Password)
	require.Equal(t, "***", red.Registry.ApiKey)
	require.Equal(t, "***", red.Notify.TelegramToken)
	// Non-secret fields pass through.
	require.Equal(t, "42", red.Notify.TelegramChatID)
	require.Equal(t, cfg.Redis.Addr, red.Redis.Addr)

	// Originals untouched.
	require.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
}
