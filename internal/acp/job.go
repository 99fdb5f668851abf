package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acpsuite/settlebot/internal/domain"
)

// nextPhase maps a job's current phase to the phase its pending memo
// transitions into when signed.
var nextPhase = map[string]string{
	string(domain.PhaseRequest):     string(domain.PhaseTransaction),
	string(domain.PhaseTransaction): "EVALUATION",
}

// gatewayJob adapts one wire job update to domain.ProtocolJob. All response
// actions are frames sent back over the owning client's connection.
type gatewayJob struct {
	client *Client
	job    wireJob
}

func (j *gatewayJob) ID() string             { return strconv.FormatUint(j.job.ID, 10) }
func (j *gatewayJob) Phase() domain.JobPhase { return domain.JobPhase(j.job.Phase) }
func (j *gatewayJob) Name() domain.JobName   { return domain.JobName(j.job.Name) }

func (j *gatewayJob) ClientAddress() common.Address {
	return common.HexToAddress(j.job.ClientAddress)
}

func (j *gatewayJob) ProviderAddress() common.Address {
	return common.HexToAddress(j.job.ProviderAddress)
}

func (j *gatewayJob) Requirement() json.RawMessage { return j.job.Requirement }

// pendingMemo returns the unsigned memo that advances the job out of its
// current phase, or false when the job carries none.
func (j *gatewayJob) pendingMemo() (wireMemo, bool) {
	want := nextPhase[j.job.Phase]
	for _, m := range j.job.Memos {
		if !m.Signed && m.NextPhase == want {
			return m, true
		}
	}
	return wireMemo{}, false
}

func (j *gatewayJob) SignMemo(ctx context.Context, accept bool, message string) error {
	memo, ok := j.pendingMemo()
	if !ok {
		return domain.ErrNoSignableMemo
	}

	sig, err := j.client.signer.SignMemoApproval(j.job.ID, memo.ID, accept)
	if err != nil {
		return fmt.Errorf("acp: %w: %s", domain.ErrSigningFailed, err)
	}

	return j.client.send(signMemoCmd{
		Type:      frameSignMemo,
		JobID:     j.job.ID,
		MemoID:    memo.ID,
		Approved:  accept,
		Message:   message,
		Signature: sig,
	})
}

func (j *gatewayJob) Respond(ctx context.Context, accept bool, message string) error {
	return j.client.send(respondCmd{
		Type:    frameRespond,
		JobID:   j.job.ID,
		Accept:  accept,
		Message: message,
	})
}

func (j *gatewayJob) CreatePayableRequirement(ctx context.Context, message string, amount domain.Fare, recipient common.Address) error {
	return j.client.send(payableRequirementCmd{
		Type:      framePayableRequirement,
		JobID:     j.job.ID,
		Message:   message,
		Amount:    toWireFare(amount),
		Recipient: recipient.Hex(),
	})
}

func (j *gatewayJob) Deliver(ctx context.Context, message string) error {
	return j.client.send(deliverCmd{
		Type:    frameDeliver,
		JobID:   j.job.ID,
		Message: message,
	})
}

func (j *gatewayJob) DeliverPayable(ctx context.Context, message string, amount domain.Fare) error {
	fare := toWireFare(amount)
	return j.client.send(deliverCmd{
		Type:    frameDeliverPayable,
		JobID:   j.job.ID,
		Message: message,
		Amount:  &fare,
	})
}

func (j *gatewayJob) CreatePayableNotification(ctx context.Context, message string, amount domain.Fare) error {
	return j.client.send(payableNotificationCmd{
		Type:    framePayableNotification,
		JobID:   j.job.ID,
		Message: message,
		Amount:  toWireFare(amount),
	})
}

var _ domain.ProtocolJob = (*gatewayJob)(nil)
