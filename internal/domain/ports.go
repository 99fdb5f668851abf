package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// FareResolver maps a token contract to a fare in that token's denomination.
// Resolution may hit the network and is fallible; callers must not mutate any
// state before a successful resolution.
type FareResolver interface {
	// ResolveFare returns a Fare of the given amount denominated in the token
	// deployed at contract. It returns ErrFareUnavailable (possibly wrapped)
	// when the contract is unknown to the registry.
	ResolveFare(ctx context.Context, contract common.Address, amount float64) (Fare, error)
}

// Quoter prices a swap between two tokens. The stand-in implementation
// returns a fixed nominal payout; a production quoter plugs a real pricing
// oracle in behind the same interface.
type Quoter interface {
	QuoteSwap(ctx context.Context, from, to Token, fromAmount float64) (float64, error)
}

// FareCache caches resolved token denominations so repeated swap jobs do not
// re-query the registry.
type FareCache interface {
	SetToken(ctx context.Context, contract common.Address, token Token, ttl time.Duration) error
	GetToken(ctx context.Context, contract common.Address) (Token, error)
}

// SignalBus provides pub/sub messaging between the agent and external
// operator tooling.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed locks used to serialize per-wallet
// settlement across agent replicas.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL, returning an
	// unlock function, or ErrLockHeld when another party holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
