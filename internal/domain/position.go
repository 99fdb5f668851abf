package domain

// WalletKey is the opaque ledger index derived from a client's protocol
// address via a one-way hash. The ledger is keyed by WalletKey, never by the
// raw address.
type WalletKey string

// ThresholdConfig carries a take-profit or stop-loss trigger threshold as a
// percentage of the position amount. The 0-100 range is expected but not
// enforced.
type ThresholdConfig struct {
	Percentage float64 `json:"percentage"`
}

// Position is an open, symbol-scoped holding owned by a wallet. The
// take-profit and stop-loss thresholds of the first open are retained for the
// life of the position; later opens only grow the amount.
type Position struct {
	Symbol     string
	Amount     float64
	TakeProfit ThresholdConfig
	StopLoss   ThresholdConfig
}

// TriggerOutcome names the market event that closes a position at an adjusted
// payout.
type TriggerOutcome string

const (
	TriggerTakeProfit TriggerOutcome = "TAKE_PROFIT"
	TriggerStopLoss   TriggerOutcome = "STOP_LOSS"
)
