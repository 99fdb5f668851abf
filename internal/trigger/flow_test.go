package trigger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acpsuite/settlebot/internal/domain"
	"github.com/acpsuite/settlebot/internal/ledger"
)

var (
	buyer = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	usdc  = domain.Token{Symbol: "USDC"}
)

// notifyJob records payable notifications; other protocol actions are unused
// by the flow.
type notifyJob struct {
	mu            sync.Mutex
	notifications []domain.Fare
	messages      []string
}

func (j *notifyJob) ID() string                      { return "42" }
func (j *notifyJob) Phase() domain.JobPhase          { return domain.PhaseTransaction }
func (j *notifyJob) Name() domain.JobName            { return domain.JobOpenPosition }
func (j *notifyJob) ClientAddress() common.Address   { return buyer }
func (j *notifyJob) ProviderAddress() common.Address { return common.Address{} }
func (j *notifyJob) Requirement() json.RawMessage    { return nil }

func (j *notifyJob) SignMemo(context.Context, bool, string) error { return nil }
func (j *notifyJob) Respond(context.Context, bool, string) error  { return nil }
func (j *notifyJob) CreatePayableRequirement(context.Context, string, domain.Fare, common.Address) error {
	return nil
}
func (j *notifyJob) Deliver(context.Context, string) error { return nil }
func (j *notifyJob) DeliverPayable(context.Context, string, domain.Fare) error {
	return nil
}

func (j *notifyJob) CreatePayableNotification(ctx context.Context, message string, amount domain.Fare) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.notifications = append(j.notifications, amount)
	j.messages = append(j.messages, message)
	return nil
}

func (j *notifyJob) snapshot() []domain.Fare {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.Fare, len(j.notifications))
	copy(out, j.notifications)
	return out
}

// scriptedSource replays a fixed sequence of decisions and records the
// prompts it was shown.
type scriptedSource struct {
	mu      sync.Mutex
	answers []*Decision
	prompts []Prompt
}

func (s *scriptedSource) Await(ctx context.Context, prompt Prompt) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.answers) == 0 {
		return nil, nil
	}
	dec := s.answers[0]
	s.answers = s.answers[1:]
	return dec, nil
}

func startFlow(t *testing.T, l *ledger.Ledger, src Source) *Flow {
	t.Helper()
	flow := NewFlow(l, src, usdc, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = flow.Run(ctx) }()
	return flow
}

func TestTakeProfitSettlesAdjustedPayout(t *testing.T) {
	l := ledger.New(slog.Default())
	w := l.GetOrCreateWallet(buyer)
	l.OpenPosition(w, "ETH", 2, domain.ThresholdConfig{Percentage: 10}, domain.ThresholdConfig{Percentage: 5})

	src := &scriptedSource{answers: []*Decision{{Outcome: domain.TriggerTakeProfit, Symbol: "ETH"}}}
	job := &notifyJob{}
	flow := startFlow(t, l, src)
	flow.PositionOpened(job, w)

	require.Eventually(t, func() bool {
		return len(job.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	got := job.snapshot()[0]
	assert.InDelta(t, 2.2, got.Amount, 1e-9)
	assert.Equal(t, "USDC", got.Denomination.Symbol)
	assert.False(t, l.HasOpenPosition(w, "ETH"), "triggered position is removed")
}

func TestStopLossSettlesAdjustedPayout(t *testing.T) {
	l := ledger.New(slog.Default())
	w := l.GetOrCreateWallet(buyer)
	l.OpenPosition(w, "ETH", 100, domain.ThresholdConfig{Percentage: 20}, domain.ThresholdConfig{Percentage: 15})

	src := &scriptedSource{answers: []*Decision{{Outcome: domain.TriggerStopLoss, Symbol: "ETH"}}}
	job := &notifyJob{}
	flow := startFlow(t, l, src)
	flow.PositionOpened(job, w)

	require.Eventually(t, func() bool {
		return len(job.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 85.0, job.snapshot()[0].Amount, 1e-9)
}

func TestInvalidSymbolIsRepromptedLocally(t *testing.T) {
	l := ledger.New(slog.Default())
	w := l.GetOrCreateWallet(buyer)
	l.OpenPosition(w, "ETH", 2, domain.ThresholdConfig{Percentage: 10}, domain.ThresholdConfig{})

	src := &scriptedSource{answers: []*Decision{
		{Outcome: domain.TriggerTakeProfit, Symbol: "DOGE"}, // not open
		{Outcome: domain.TriggerTakeProfit, Symbol: "ETH"},
	}}
	job := &notifyJob{}
	flow := startFlow(t, l, src)
	flow.PositionOpened(job, w)

	require.Eventually(t, func() bool {
		return len(job.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	src.mu.Lock()
	defer src.mu.Unlock()
	require.Len(t, src.prompts, 2)
	assert.False(t, src.prompts[0].Retry)
	assert.True(t, src.prompts[1].Retry)
}

func TestDeclinedPromptLeavesPositionOpen(t *testing.T) {
	l := ledger.New(slog.Default())
	w := l.GetOrCreateWallet(buyer)
	l.OpenPosition(w, "ETH", 2, domain.ThresholdConfig{Percentage: 10}, domain.ThresholdConfig{})

	src := &scriptedSource{answers: []*Decision{nil}}
	job := &notifyJob{}
	flow := startFlow(t, l, src)
	flow.PositionOpened(job, w)

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.prompts) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, job.snapshot())
	assert.True(t, l.HasOpenPosition(w, "ETH"))
}

// parkedJob blocks inside CreatePayableNotification until released, so tests
// can interleave other ledger work mid-notification.
type parkedJob struct {
	notifyJob
	started chan struct{}
	release chan struct{}
}

func (j *parkedJob) CreatePayableNotification(ctx context.Context, message string, amount domain.Fare) error {
	close(j.started)
	<-j.release
	return j.notifyJob.CreatePayableNotification(ctx, message, amount)
}

// failingJob rejects every payable notification and counts the attempts.
type failingJob struct {
	notifyJob
	attempts atomic.Int64
}

func (j *failingJob) CreatePayableNotification(context.Context, string, domain.Fare) error {
	j.attempts.Add(1)
	return assert.AnError
}

func TestTriggerClaimExcludesConcurrentClose(t *testing.T) {
	l := ledger.New(slog.Default())
	w := l.GetOrCreateWallet(buyer)
	l.OpenPosition(w, "ETH", 2, domain.ThresholdConfig{Percentage: 10}, domain.ThresholdConfig{Percentage: 5})

	src := &scriptedSource{answers: []*Decision{{Outcome: domain.TriggerTakeProfit, Symbol: "ETH"}}}
	job := &parkedJob{started: make(chan struct{}), release: make(chan struct{})}
	flow := startFlow(t, l, src)
	flow.PositionOpened(job, w)

	select {
	case <-job.started:
	case <-time.After(time.Second):
		t.Fatal("notification never started")
	}

	// A close job landing while the notification is in flight finds the
	// position already claimed and settles nothing.
	assert.Zero(t, l.ClosePosition(w, "ETH"))

	close(job.release)
	require.Eventually(t, func() bool {
		return len(job.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.InDelta(t, 2.2, job.snapshot()[0].Amount, 1e-9)
	assert.False(t, l.HasOpenPosition(w, "ETH"))
}

func TestTriggerPayoutIgnoresMidNotificationOpen(t *testing.T) {
	l := ledger.New(slog.Default())
	w := l.GetOrCreateWallet(buyer)
	l.OpenPosition(w, "ETH", 2, domain.ThresholdConfig{Percentage: 10}, domain.ThresholdConfig{Percentage: 5})

	src := &scriptedSource{answers: []*Decision{{Outcome: domain.TriggerTakeProfit, Symbol: "ETH"}}}
	job := &parkedJob{started: make(chan struct{}), release: make(chan struct{})}
	flow := startFlow(t, l, src)
	flow.PositionOpened(job, w)

	select {
	case <-job.started:
	case <-time.After(time.Second):
		t.Fatal("notification never started")
	}

	// An open landing mid-notification starts a fresh position; the payout in
	// flight stays pinned to the claimed amount.
	l.OpenPosition(w, "ETH", 50, domain.ThresholdConfig{Percentage: 1}, domain.ThresholdConfig{Percentage: 1})

	close(job.release)
	require.Eventually(t, func() bool {
		return len(job.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.InDelta(t, 2.2, job.snapshot()[0].Amount, 1e-9)
	pos, ok := l.Position(w, "ETH")
	require.True(t, ok, "fresh open survives the settled trigger")
	assert.InDelta(t, 50.0, pos.Amount, 1e-9)
}

func TestFailedNotificationRestoresPosition(t *testing.T) {
	l := ledger.New(slog.Default())
	w := l.GetOrCreateWallet(buyer)
	l.OpenPosition(w, "ETH", 2, domain.ThresholdConfig{Percentage: 10}, domain.ThresholdConfig{Percentage: 5})

	src := &scriptedSource{answers: []*Decision{{Outcome: domain.TriggerTakeProfit, Symbol: "ETH"}}}
	job := &failingJob{}
	flow := startFlow(t, l, src)
	flow.PositionOpened(job, w)

	require.Eventually(t, func() bool {
		if job.attempts.Load() != 1 {
			return false
		}
		pos, ok := l.Position(w, "ETH")
		return ok && pos.Amount == 2
	}, time.Second, 5*time.Millisecond, "position restored after failed emission")

	pos, _ := l.Position(w, "ETH")
	assert.InDelta(t, 10.0, pos.TakeProfit.Percentage, 1e-9)
	assert.InDelta(t, 5.0, pos.StopLoss.Percentage, 1e-9)
	assert.Empty(t, job.snapshot())
}

func TestParseConsoleAnswer(t *testing.T) {
	assert.Nil(t, parseAnswer(""))
	assert.Nil(t, parseAnswer("none"))
	assert.Equal(t, &Decision{Outcome: domain.TriggerTakeProfit, Symbol: "ETH"}, parseAnswer("tp eth"))
	assert.Equal(t, &Decision{Outcome: domain.TriggerStopLoss, Symbol: "BTC"}, parseAnswer("SL btc"))
	assert.Equal(t, &Decision{}, parseAnswer("hold ETH"), "unknown verbs re-prompt")
	assert.Equal(t, &Decision{}, parseAnswer("tp"), "missing symbol re-prompts")
}
