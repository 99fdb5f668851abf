package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acpsuite/settlebot/internal/cache/redis"
	"github.com/acpsuite/settlebot/internal/config"
	"github.com/acpsuite/settlebot/internal/crypto"
	"github.com/acpsuite/settlebot/internal/domain"
	"github.com/acpsuite/settlebot/internal/ledger"
	"github.com/acpsuite/settlebot/internal/notify"
	"github.com/acpsuite/settlebot/internal/registry"
	"github.com/acpsuite/settlebot/internal/settle"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	Ledger *ledger.Ledger
	Fares  domain.FareResolver
	Quoter domain.Quoter
	Base   domain.Token

	// Redis-backed collaborators; nil when redis is disabled.
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Signer for the whitelisted agent wallet; nil in simulate mode.
	Signer *crypto.Signer

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Ledger: ledger.New(logger),
		Quoter: settle.NewFixedQuoter(),
		Base: domain.Token{
			Symbol:   cfg.Settle.BaseSymbol,
			Decimals: cfg.Settle.BaseDecimals,
		},
	}

	// --- Redis (optional: wallet locks, fare cache, trigger signal bus) ---
	var fareCache domain.FareCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		fareCache = redis.NewFareCache(redisClient)
	}

	// --- Token registry ---
	deps.Fares = registry.NewClient(cfg.Registry.GraphqlURL, cfg.Registry.ApiKey, fareCache, logger)

	// --- Signer (only needed to reach a live gateway) ---
	if strings.ToLower(cfg.Mode) == "serve" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load key: %w", err)
		}
		signer, err := crypto.NewSigner(keyHex, cfg.ACP.ChainID, common.HexToAddress(cfg.ACP.ContractAddress))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		deps.Signer = signer
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
