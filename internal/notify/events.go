package notify

// Event types emitted by the settlement agent. The notify.events config list
// selects which of these reach the operator channels.
const (
	EventPositionOpen  = "position_open"
	EventPositionClose = "position_close"
	EventTriggerFill   = "trigger_fill"
	EventSwap          = "swap"
	EventError         = "error"
)
