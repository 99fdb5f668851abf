package settle

import (
	"context"

	"github.com/acpsuite/settlebot/internal/domain"
)

// PlaceholderSwapPayout is the nominal payout returned by FixedQuoter for
// every swap, standing in for a real pricing oracle.
const PlaceholderSwapPayout = 1.0

// FixedQuoter implements domain.Quoter with a constant payout independent of
// the input amount. Production deployments inject a real quote source behind
// the same interface.
type FixedQuoter struct {
	Payout float64
}

// NewFixedQuoter returns a quoter paying the placeholder amount.
func NewFixedQuoter() *FixedQuoter {
	return &FixedQuoter{Payout: PlaceholderSwapPayout}
}

// QuoteSwap returns the fixed payout regardless of tokens or amount.
func (q *FixedQuoter) QuoteSwap(ctx context.Context, from, to domain.Token, fromAmount float64) (float64, error) {
	return q.Payout, nil
}

var _ domain.Quoter = (*FixedQuoter)(nil)
