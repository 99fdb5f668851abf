package acp

import (
	"encoding/json"

	"github.com/acpsuite/settlebot/internal/domain"
)

// Frame types exchanged with the ACP gateway. Inbound frames carry job
// updates; outbound frames carry the agent's protocol actions.
const (
	frameSubscribe           = "subscribe"
	frameJobUpdate           = "job_update"
	frameSignMemo            = "sign_memo"
	frameRespond             = "respond"
	framePayableRequirement  = "payable_requirement"
	frameDeliver             = "deliver"
	frameDeliverPayable      = "deliver_payable"
	framePayableNotification = "payable_notification"
)

// wireFrame is the envelope for every gateway message.
type wireFrame struct {
	Type string          `json:"type"`
	Job  *wireJob        `json:"job,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wireMemo is a memo attached to a job, awaiting or carrying a signature.
type wireMemo struct {
	ID        uint64 `json:"id"`
	Type      string `json:"type"`
	NextPhase string `json:"nextPhase"`
	Signed    bool   `json:"signed"`
}

// wireJob is the gateway's view of a job callback.
type wireJob struct {
	ID              uint64          `json:"id"`
	Name            string          `json:"name"`
	Phase           string          `json:"phase"`
	ClientAddress   string          `json:"clientAddress"`
	ProviderAddress string          `json:"providerAddress"`
	Requirement     json.RawMessage `json:"requirement"`
	Memos           []wireMemo      `json:"memos"`
}

// wireFare is the wire form of a domain.Fare. Contract is omitted for the
// base currency.
type wireFare struct {
	Amount   float64 `json:"amount"`
	Symbol   string  `json:"symbol"`
	Contract string  `json:"contract,omitempty"`
}

func toWireFare(f domain.Fare) wireFare {
	w := wireFare{Amount: f.Amount, Symbol: f.Denomination.Symbol}
	if !f.Denomination.IsBase() {
		w.Contract = f.Denomination.Contract.Hex()
	}
	return w
}

// subscribeCmd registers the agent for job callbacks after connecting.
type subscribeCmd struct {
	Type     string `json:"type"`
	Agent    string `json:"agent"`
	EntityID int    `json:"entityId"`
}

// signMemoCmd submits a memo signature.
type signMemoCmd struct {
	Type      string `json:"type"`
	JobID     uint64 `json:"jobId"`
	MemoID    uint64 `json:"memoId"`
	Approved  bool   `json:"approved"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// respondCmd accepts or rejects a negotiation request.
type respondCmd struct {
	Type    string `json:"type"`
	JobID   uint64 `json:"jobId"`
	Accept  bool   `json:"accept"`
	Message string `json:"message"`
}

// payableRequirementCmd asks the counterparty to fund a fare.
type payableRequirementCmd struct {
	Type      string   `json:"type"`
	JobID     uint64   `json:"jobId"`
	Message   string   `json:"message"`
	Amount    wireFare `json:"amount"`
	Recipient string   `json:"recipient"`
}

// deliverCmd completes a job, optionally carrying a settlement fare.
type deliverCmd struct {
	Type    string    `json:"type"`
	JobID   uint64    `json:"jobId"`
	Message string    `json:"message"`
	Amount  *wireFare `json:"amount,omitempty"`
}

// payableNotificationCmd pushes an out-of-band payable notice to the buyer.
type payableNotificationCmd struct {
	Type    string   `json:"type"`
	JobID   uint64   `json:"jobId"`
	Message string   `json:"message"`
	Amount  wireFare `json:"amount"`
}
