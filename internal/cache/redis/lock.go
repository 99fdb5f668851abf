package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acpsuite/settlebot/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes the lock key only when it still holds the caller's token,
// so a holder whose TTL expired cannot release a lock re-acquired by another
// replica.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const lockKeyPrefix = "settlebot:lock:"

// LockManager implements domain.LockManager with SETNX plus TTL and a
// token-checked Lua unlock. The dispatcher takes a lock per wallet before
// settling, which keeps replicas of the agent from paying out the same job
// twice.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
	}
}

// Acquire takes the lock for key with the given TTL and returns the release
// function. Releasing is idempotent and runs on its own deadline, so it still
// works after the settlement's context is cancelled.
//
// It returns domain.ErrLockHeld when another holder owns the lock.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lockKeyPrefix + key

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
		})
	}

	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)
