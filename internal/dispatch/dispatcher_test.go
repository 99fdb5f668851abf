package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acpsuite/settlebot/internal/domain"
	"github.com/acpsuite/settlebot/internal/ledger"
	"github.com/acpsuite/settlebot/internal/settle"
)

var (
	buyer    = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	seller   = common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
	usdc     = domain.Token{Symbol: "USDC"}
	wethAddr = common.HexToAddress("0x4200000000000000000000000000000000000006")
	virtAddr = common.HexToAddress("0x0b3e328455c4059eeb9e3f84b5543f74e24e7e1b")
)

// fakeJob records every protocol action invoked on it.
type fakeJob struct {
	id          string
	phase       domain.JobPhase
	name        domain.JobName
	requirement json.RawMessage
	noMemo      bool

	signed        []string
	accepts       []bool
	responses     []string
	reqFares      []domain.Fare
	reqRecipients []common.Address
	deliveries    []string
	payables      []domain.Fare
	notifications []domain.Fare
}

func (j *fakeJob) ID() string                      { return j.id }
func (j *fakeJob) Phase() domain.JobPhase          { return j.phase }
func (j *fakeJob) Name() domain.JobName            { return j.name }
func (j *fakeJob) ClientAddress() common.Address   { return buyer }
func (j *fakeJob) ProviderAddress() common.Address { return seller }
func (j *fakeJob) Requirement() json.RawMessage    { return j.requirement }

func (j *fakeJob) SignMemo(ctx context.Context, accept bool, message string) error {
	if j.noMemo {
		return domain.ErrNoSignableMemo
	}
	j.signed = append(j.signed, message)
	return nil
}

func (j *fakeJob) Respond(ctx context.Context, accept bool, message string) error {
	j.accepts = append(j.accepts, accept)
	j.responses = append(j.responses, message)
	return nil
}

func (j *fakeJob) CreatePayableRequirement(ctx context.Context, message string, amount domain.Fare, recipient common.Address) error {
	j.reqFares = append(j.reqFares, amount)
	j.reqRecipients = append(j.reqRecipients, recipient)
	return nil
}

func (j *fakeJob) Deliver(ctx context.Context, message string) error {
	j.deliveries = append(j.deliveries, message)
	return nil
}

func (j *fakeJob) DeliverPayable(ctx context.Context, message string, amount domain.Fare) error {
	j.deliveries = append(j.deliveries, message)
	j.payables = append(j.payables, amount)
	return nil
}

func (j *fakeJob) CreatePayableNotification(ctx context.Context, message string, amount domain.Fare) error {
	j.notifications = append(j.notifications, amount)
	return nil
}

// fakeResolver resolves fares from a fixed contract -> token table.
type fakeResolver struct {
	tokens map[common.Address]domain.Token
}

func (r *fakeResolver) ResolveFare(ctx context.Context, contract common.Address, amount float64) (domain.Fare, error) {
	tok, ok := r.tokens[contract]
	if !ok {
		return domain.Fare{}, fmt.Errorf("resolver: contract %s: %w", contract.Hex(), domain.ErrFareUnavailable)
	}
	return domain.Fare{Amount: amount, Denomination: tok}, nil
}

// recordingListener captures opened-position notifications.
type recordingListener struct {
	jobs []domain.ProtocolJob
}

func (l *recordingListener) PositionOpened(job domain.ProtocolJob, wallet *ledger.ClientWallet) {
	l.jobs = append(l.jobs, job)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(slog.Default())
	resolver := &fakeResolver{tokens: map[common.Address]domain.Token{
		wethAddr: {Symbol: "WETH", Contract: wethAddr},
		virtAddr: {Symbol: "VIRTUAL", Contract: virtAddr},
	}}
	return New(l, resolver, settle.NewFixedQuoter(), usdc, nil, slog.Default()), l
}

func openJob(phase domain.JobPhase, symbol string, amount, tp, sl float64) *fakeJob {
	req, _ := json.Marshal(domain.OpenPositionPayload{
		Symbol:     symbol,
		Amount:     amount,
		TakeProfit: domain.ThresholdConfig{Percentage: tp},
		StopLoss:   domain.ThresholdConfig{Percentage: sl},
	})
	return &fakeJob{id: "1", phase: phase, name: domain.JobOpenPosition, requirement: req}
}

func closeJob(phase domain.JobPhase, symbol string) *fakeJob {
	req, _ := json.Marshal(domain.ClosePositionPayload{Symbol: symbol})
	return &fakeJob{id: "2", phase: phase, name: domain.JobClosePosition, requirement: req}
}

func swapJob(phase domain.JobPhase, amount float64) *fakeJob {
	req, _ := json.Marshal(domain.SwapTokenPayload{
		FromSymbol:          "WETH",
		ToSymbol:            "VIRTUAL",
		Amount:              amount,
		FromContractAddress: wethAddr.Hex(),
		ToContractAddress:   virtAddr.Hex(),
	})
	return &fakeJob{id: "3", phase: phase, name: domain.JobSwapToken, requirement: req}
}

func TestOpenRequestEmitsPayableRequirement(t *testing.T) {
	d, _ := newTestDispatcher(t)
	job := openJob(domain.PhaseRequest, "ETH", 2, 10, 5)

	require.NoError(t, d.HandleJob(context.Background(), job))

	require.Len(t, job.signed, 1)
	require.Len(t, job.reqFares, 1)
	assert.Equal(t, 2.0, job.reqFares[0].Amount)
	assert.Equal(t, "USDC", job.reqFares[0].Denomination.Symbol)
	assert.Equal(t, seller, job.reqRecipients[0])
}

func TestOpenRequestWithoutMemoIsRecoverableNoop(t *testing.T) {
	d, _ := newTestDispatcher(t)
	job := openJob(domain.PhaseRequest, "ETH", 2, 10, 5)
	job.noMemo = true

	require.NoError(t, d.HandleJob(context.Background(), job))
	assert.Empty(t, job.reqFares, "no requirement without a signed memo")
}

func TestOpenTransactionRecordsPositionAndDelivers(t *testing.T) {
	d, l := newTestDispatcher(t)
	listener := &recordingListener{}
	d.SetOpenedListener(listener)
	job := openJob(domain.PhaseTransaction, "ETH", 2, 10, 5)

	require.NoError(t, d.HandleJob(context.Background(), job))

	w := l.GetOrCreateWallet(buyer)
	pos, ok := l.Position(w, "ETH")
	require.True(t, ok)
	assert.Equal(t, 2.0, pos.Amount)
	assert.Equal(t, 10.0, pos.TakeProfit.Percentage)
	assert.Len(t, job.deliveries, 1)
	assert.Len(t, listener.jobs, 1, "opened listener starts the trigger flow")
}

func TestCloseRequestGating(t *testing.T) {
	d, l := newTestDispatcher(t)

	// No open position: reject.
	job := closeJob(domain.PhaseRequest, "ETH")
	require.NoError(t, d.HandleJob(context.Background(), job))
	require.Len(t, job.accepts, 1)
	assert.False(t, job.accepts[0])

	// Open with amount 1: accept.
	w := l.GetOrCreateWallet(buyer)
	l.OpenPosition(w, "ETH", 1, domain.ThresholdConfig{}, domain.ThresholdConfig{})
	job = closeJob(domain.PhaseRequest, "ETH")
	require.NoError(t, d.HandleJob(context.Background(), job))
	require.Len(t, job.accepts, 1)
	assert.True(t, job.accepts[0])
}

func TestCloseRequestNeverOpenedLeavesNoTrace(t *testing.T) {
	d, l := newTestDispatcher(t)
	job := closeJob(domain.PhaseRequest, "DOGE")

	require.NoError(t, d.HandleJob(context.Background(), job))

	assert.Equal(t, []bool{false}, job.accepts)
	assert.Empty(t, job.reqFares)
	assert.Empty(t, job.payables)
	w := l.GetOrCreateWallet(buyer)
	assert.Empty(t, l.OpenSymbols(w))
}

func TestCloseTransactionSettlesFaceValue(t *testing.T) {
	d, l := newTestDispatcher(t)
	w := l.GetOrCreateWallet(buyer)
	l.OpenPosition(w, "ETH", 2, domain.ThresholdConfig{Percentage: 10}, domain.ThresholdConfig{Percentage: 5})

	job := closeJob(domain.PhaseTransaction, "ETH")
	require.NoError(t, d.HandleJob(context.Background(), job))

	require.Len(t, job.payables, 1)
	assert.Equal(t, 2.0, job.payables[0].Amount)
	assert.Equal(t, "USDC", job.payables[0].Denomination.Symbol)
	assert.False(t, l.HasOpenPosition(w, "ETH"))
}

func TestSwapRequestDenominatesInSourceToken(t *testing.T) {
	d, _ := newTestDispatcher(t)
	job := swapJob(domain.PhaseRequest, 3)

	require.NoError(t, d.HandleJob(context.Background(), job))

	require.Len(t, job.reqFares, 1)
	assert.Equal(t, 3.0, job.reqFares[0].Amount)
	assert.Equal(t, "WETH", job.reqFares[0].Denomination.Symbol)
}

func TestSwapRequestFareFailureEmitsNothing(t *testing.T) {
	l := ledger.New(slog.Default())
	resolver := &fakeResolver{tokens: map[common.Address]domain.Token{}}
	d := New(l, resolver, settle.NewFixedQuoter(), usdc, nil, slog.Default())
	job := swapJob(domain.PhaseRequest, 3)

	err := d.HandleJob(context.Background(), job)
	require.ErrorIs(t, err, domain.ErrFareUnavailable)
	assert.Empty(t, job.signed)
	assert.Empty(t, job.reqFares)
}

func TestSwapTransactionDeliversPlaceholderPayout(t *testing.T) {
	d, _ := newTestDispatcher(t)
	job := swapJob(domain.PhaseTransaction, 3)

	require.NoError(t, d.HandleJob(context.Background(), job))

	require.Len(t, job.payables, 1)
	assert.Equal(t, settle.PlaceholderSwapPayout, job.payables[0].Amount)
	assert.Equal(t, "VIRTUAL", job.payables[0].Denomination.Symbol)
}

func TestUnknownJobNameIsSkipped(t *testing.T) {
	d, _ := newTestDispatcher(t)
	job := &fakeJob{id: "9", phase: domain.PhaseRequest, name: "RENT_GPU", requirement: json.RawMessage(`{}`)}

	require.NoError(t, d.HandleJob(context.Background(), job))
	assert.Empty(t, job.signed)
	assert.Empty(t, job.accepts)
	assert.Empty(t, job.reqFares)
}

func TestUnsupportedPhaseIsSkipped(t *testing.T) {
	d, _ := newTestDispatcher(t)
	job := openJob("EVALUATION", "ETH", 2, 10, 5)
	job.phase = "EVALUATION"

	require.NoError(t, d.HandleJob(context.Background(), job))
	assert.Empty(t, job.signed)
	assert.Empty(t, job.reqFares)
}

func TestMalformedRequirementIsSkipped(t *testing.T) {
	d, _ := newTestDispatcher(t)
	job := &fakeJob{id: "10", phase: domain.PhaseRequest, name: domain.JobOpenPosition, requirement: json.RawMessage(`"not an object"`)}

	require.NoError(t, d.HandleJob(context.Background(), job))
	assert.Empty(t, job.signed)
	assert.Empty(t, job.reqFares)
}
