package acp

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acpsuite/settlebot/internal/domain"
)

func TestDecodeJobUpdateFrame(t *testing.T) {
	raw := `{
		"type": "job_update",
		"job": {
			"id": 7,
			"name": "OPEN_POSITION",
			"phase": "REQUEST",
			"clientAddress": "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa",
			"providerAddress": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
			"requirement": {"symbol": "ETH", "amount": 2},
			"memos": [{"id": 1, "type": "message", "nextPhase": "TRANSACTION", "signed": false}]
		}
	}`

	var frame wireFrame
	require.NoError(t, json.Unmarshal([]byte(raw), &frame))
	require.Equal(t, frameJobUpdate, frame.Type)
	require.NotNil(t, frame.Job)

	job := &gatewayJob{job: *frame.Job}
	assert.Equal(t, "7", job.ID())
	assert.Equal(t, domain.PhaseRequest, job.Phase())
	assert.Equal(t, domain.JobOpenPosition, job.Name())
	assert.Equal(t, common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"), job.ClientAddress())

	payload, err := domain.DecodeJobPayload(job.Name(), job.Requirement())
	require.NoError(t, err)
	assert.Equal(t, 2.0, payload.Open.Amount)
}

func TestPendingMemoSelection(t *testing.T) {
	job := &gatewayJob{job: wireJob{
		Phase: string(domain.PhaseRequest),
		Memos: []wireMemo{
			{ID: 1, NextPhase: "TRANSACTION", Signed: true},
			{ID: 2, NextPhase: "EVALUATION", Signed: false},
			{ID: 3, NextPhase: "TRANSACTION", Signed: false},
		},
	}}

	memo, ok := job.pendingMemo()
	require.True(t, ok)
	assert.Equal(t, uint64(3), memo.ID, "only the unsigned memo for the next phase is signable")

	// No memos at all.
	bare := &gatewayJob{job: wireJob{Phase: string(domain.PhaseRequest)}}
	_, ok = bare.pendingMemo()
	assert.False(t, ok)
}

func TestWireFareOmitsBaseContract(t *testing.T) {
	base := toWireFare(domain.Fare{Amount: 2.2, Denomination: domain.Token{Symbol: "USDC"}})
	assert.Empty(t, base.Contract)

	weth := toWireFare(domain.Fare{
		Amount: 1,
		Denomination: domain.Token{
			Symbol:   "WETH",
			Contract: common.HexToAddress("0x4200000000000000000000000000000000000006"),
		},
	})
	assert.Equal(t, "0x4200000000000000000000000000000000000006", weth.Contract)
}
