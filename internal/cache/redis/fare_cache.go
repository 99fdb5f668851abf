package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/acpsuite/settlebot/internal/domain"
)

// FareCache implements domain.FareCache using Redis hashes. Each resolved
// token denomination is stored at key "fare:{contract}" with fields "symbol"
// and "decimals", expiring after the caller's TTL.
type FareCache struct {
	rdb *redis.Client
}

// NewFareCache creates a FareCache backed by the given Client.
func NewFareCache(c *Client) *FareCache {
	return &FareCache{rdb: c.Underlying()}
}

func fareKey(contract common.Address) string {
	return "fare:" + contract.Hex()
}

// SetToken stores a resolved token denomination with the given TTL.
func (fc *FareCache) SetToken(ctx context.Context, contract common.Address, token domain.Token, ttl time.Duration) error {
	key := fareKey(contract)
	fields := map[string]interface{}{
		"symbol":   token.Symbol,
		"decimals": strconv.Itoa(token.Decimals),
	}
	pipe := fc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set fare %s: %w", contract.Hex(), err)
	}
	return nil
}

// GetToken retrieves a cached token denomination. It returns
// domain.ErrNotFound when the contract has not been cached or has expired.
func (fc *FareCache) GetToken(ctx context.Context, contract common.Address) (domain.Token, error) {
	vals, err := fc.rdb.HGetAll(ctx, fareKey(contract)).Result()
	if err != nil {
		return domain.Token{}, fmt.Errorf("redis: get fare %s: %w", contract.Hex(), err)
	}
	if len(vals) == 0 {
		return domain.Token{}, domain.ErrNotFound
	}

	symbol, ok := vals["symbol"]
	if !ok || symbol == "" {
		return domain.Token{}, domain.ErrNotFound
	}

	decimals := 0
	if d, ok := vals["decimals"]; ok {
		if n, err := strconv.Atoi(d); err == nil {
			decimals = n
		}
	}

	return domain.Token{
		Symbol:   symbol,
		Contract: contract,
		Decimals: decimals,
	}, nil
}

// Compile-time interface check.
var _ domain.FareCache = (*FareCache)(nil)
