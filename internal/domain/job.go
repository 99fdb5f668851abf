package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// JobPhase is the protocol phase reported by the collaborator on each job
// callback. The collaborator owns phase progression; the agent only reacts.
type JobPhase string

const (
	PhaseRequest     JobPhase = "REQUEST"
	PhaseTransaction JobPhase = "TRANSACTION"
)

// JobName identifies the kind of work a job carries. Unrecognized names are
// logged and skipped without aborting other jobs.
type JobName string

const (
	JobOpenPosition  JobName = "OPEN_POSITION"
	JobClosePosition JobName = "CLOSE_POSITION"
	JobSwapToken     JobName = "SWAP_TOKEN"
)

// OpenPositionPayload is the requirement attached to an OPEN_POSITION job.
type OpenPositionPayload struct {
	Symbol     string          `json:"symbol"`
	Amount     float64         `json:"amount"`
	TakeProfit ThresholdConfig `json:"takeProfit"`
	StopLoss   ThresholdConfig `json:"stopLoss"`
}

// ClosePositionPayload is the requirement attached to a CLOSE_POSITION job.
type ClosePositionPayload struct {
	Symbol string `json:"symbol"`
}

// SwapTokenPayload is the requirement attached to a SWAP_TOKEN job.
type SwapTokenPayload struct {
	FromSymbol          string  `json:"fromSymbol"`
	ToSymbol            string  `json:"toSymbol"`
	Amount              float64 `json:"amount"`
	FromContractAddress string  `json:"fromContractAddress"`
	ToContractAddress   string  `json:"toContractAddress"`
}

// JobPayload is the tagged union of the per-name requirement shapes. Exactly
// one of the pointers is non-nil, matching Name. Payloads are decoded once at
// the dispatcher boundary rather than re-cast in every handler.
type JobPayload struct {
	Name  JobName
	Open  *OpenPositionPayload
	Close *ClosePositionPayload
	Swap  *SwapTokenPayload
}

// DecodeJobPayload parses the raw requirement document for the given job
// name into its typed shape. It returns ErrUnknownJobName for names outside
// the dispatch table and ErrInvalidPayload when the document does not parse.
func DecodeJobPayload(name JobName, raw json.RawMessage) (JobPayload, error) {
	p := JobPayload{Name: name}
	if len(raw) == 0 {
		return p, fmt.Errorf("domain: empty requirement for %s: %w", name, ErrInvalidPayload)
	}

	var err error
	switch name {
	case JobOpenPosition:
		p.Open = &OpenPositionPayload{}
		err = json.Unmarshal(raw, p.Open)
	case JobClosePosition:
		p.Close = &ClosePositionPayload{}
		err = json.Unmarshal(raw, p.Close)
	case JobSwapToken:
		p.Swap = &SwapTokenPayload{}
		err = json.Unmarshal(raw, p.Swap)
	default:
		return p, fmt.Errorf("domain: job name %q: %w", name, ErrUnknownJobName)
	}
	if err != nil {
		return p, fmt.Errorf("domain: decode %s requirement: %w", name, ErrInvalidPayload)
	}
	return p, nil
}

// ProtocolJob is the consumed view of a single job callback from the commerce
// protocol collaborator, together with the response actions the agent may
// invoke on it. Transport, memo storage, and on-chain settlement all live
// behind this interface.
type ProtocolJob interface {
	ID() string
	Phase() JobPhase
	Name() JobName
	ClientAddress() common.Address
	ProviderAddress() common.Address
	Requirement() json.RawMessage

	// SignMemo signs the job's pending memo with the agent's key. It returns
	// ErrNoSignableMemo when the job carries no memo awaiting signature.
	SignMemo(ctx context.Context, accept bool, message string) error

	// Respond accepts or rejects a negotiation request.
	Respond(ctx context.Context, accept bool, message string) error

	// CreatePayableRequirement asks the counterparty to fund the given fare
	// before the transaction phase proceeds.
	CreatePayableRequirement(ctx context.Context, message string, amount Fare, recipient common.Address) error

	// Deliver sends a plain completion message.
	Deliver(ctx context.Context, message string) error

	// DeliverPayable sends a completion message carrying a settlement fare.
	DeliverPayable(ctx context.Context, message string, amount Fare) error

	// CreatePayableNotification pushes an out-of-band payable notice to the
	// buyer, used for take-profit / stop-loss fills.
	CreatePayableNotification(ctx context.Context, message string, amount Fare) error
}
