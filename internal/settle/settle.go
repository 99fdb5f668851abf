// Package settle computes settlement amounts for position closes and
// take-profit / stop-loss fills. All functions are pure; fare denomination
// and delivery are the dispatcher's concern.
package settle

import "github.com/acpsuite/settlebot/internal/domain"

// CloseAmount is the payout for an explicit close: the position's face value,
// with no markup.
func CloseAmount(pos domain.Position) float64 {
	return pos.Amount
}

// TriggerAmount is the payout for a threshold-triggered close. Take-profit
// pays amount * (1 + pct/100), stop-loss pays amount * (1 - pct/100). A zero
// threshold percentage means no adjustment. The result is intentionally not
// clamped: a stop-loss percentage above 100 produces a negative payout, which
// the caller settles as-is.
func TriggerAmount(pos domain.Position, outcome domain.TriggerOutcome) float64 {
	switch outcome {
	case domain.TriggerTakeProfit:
		return pos.Amount * (1 + pos.TakeProfit.Percentage/100)
	case domain.TriggerStopLoss:
		return pos.Amount * (1 - pos.StopLoss.Percentage/100)
	default:
		return pos.Amount
	}
}
