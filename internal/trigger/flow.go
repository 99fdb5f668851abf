// Package trigger bridges asynchronous operator decisions (simulated market
// events) into ledger closes and payable notifications. The flow suspends on
// its decision source without holding any ledger lock, so unrelated jobs keep
// flowing while the operator makes up their mind.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/acpsuite/settlebot/internal/domain"
	"github.com/acpsuite/settlebot/internal/ledger"
	"github.com/acpsuite/settlebot/internal/notify"
	"github.com/acpsuite/settlebot/internal/settle"
)

// Decision is an operator's trigger selection: the outcome to simulate and
// the symbol of the position it fires on.
type Decision struct {
	Outcome domain.TriggerOutcome `json:"outcome"`
	Symbol  string                `json:"symbol"`
}

// Prompt describes a pending trigger choice offered to the operator.
type Prompt struct {
	WalletKey domain.WalletKey
	Symbols   []string // symbols with open positions
	Retry     bool     // true when re-prompting after an invalid selection
}

// Source supplies operator decisions. Await blocks until the operator
// selects; it returns (nil, nil) when the operator declines the prompt, or an
// error when the source is closed or the context is done. Await may be called
// concurrently for different wallets.
type Source interface {
	Await(ctx context.Context, prompt Prompt) (*Decision, error)
}

// EventNotifier forwards trigger fills to the operator's notification
// channels.
type EventNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

type openedEvent struct {
	job    domain.ProtocolJob
	wallet *ledger.ClientWallet
}

// Flow consumes position-opened events and, for each, offers the operator a
// take-profit / stop-loss trigger. A valid trigger claims the position from
// the ledger, then settles it at the adjusted payout via a payable
// notification to the buyer.
type Flow struct {
	ledger   *ledger.Ledger
	source   Source
	base     domain.Token
	notifier EventNotifier // optional
	logger   *slog.Logger

	openedCh chan openedEvent
}

// NewFlow creates a Flow settling trigger payouts in the base currency.
func NewFlow(l *ledger.Ledger, source Source, base domain.Token, logger *slog.Logger) *Flow {
	return &Flow{
		ledger:   l,
		source:   source,
		base:     base,
		logger:   logger.With(slog.String("component", "trigger_flow")),
		openedCh: make(chan openedEvent, 16),
	}
}

// SetNotifier registers the notifier that receives trigger-fill events. It
// must be called before Run.
func (f *Flow) SetNotifier(n EventNotifier) {
	f.notifier = n
}

// PositionOpened enqueues a freshly settled open for operator attention. It
// never blocks the caller: when the queue is full the event is dropped with a
// diagnostic, since a missed prompt only means no simulated trigger.
func (f *Flow) PositionOpened(job domain.ProtocolJob, wallet *ledger.ClientWallet) {
	select {
	case f.openedCh <- openedEvent{job: job, wallet: wallet}:
	default:
		f.logger.Warn("trigger queue full, dropping prompt",
			slog.String("job_id", job.ID()),
		)
	}
}

// Run consumes opened events until the context is cancelled. Each event is
// handled on its own goroutine so one suspended prompt never delays another
// wallet's.
func (f *Flow) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.openedCh:
			go f.settleTrigger(ctx, ev)
		}
	}
}

// settleTrigger prompts until the operator declines, abandons, or supplies a
// valid selection, then settles it. Invalid selections are re-prompted
// locally and never surfaced to the counterparty.
func (f *Flow) settleTrigger(ctx context.Context, ev openedEvent) {
	retry := false
	for {
		symbols := f.ledger.OpenSymbols(ev.wallet)
		if len(symbols) == 0 {
			return
		}

		dec, err := f.source.Await(ctx, Prompt{
			WalletKey: ev.wallet.Key(),
			Symbols:   symbols,
			Retry:     retry,
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				f.logger.Warn("trigger source failed",
					slog.String("job_id", ev.job.ID()),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		if dec == nil {
			f.logger.Debug("operator declined trigger",
				slog.String("job_id", ev.job.ID()),
			)
			return
		}

		if dec.Outcome != domain.TriggerTakeProfit && dec.Outcome != domain.TriggerStopLoss {
			f.logger.Warn("invalid trigger outcome, re-prompting",
				slog.String("outcome", string(dec.Outcome)),
			)
			retry = true
			continue
		}

		// Claim removes the position under the wallet lock, so a concurrent
		// close job cannot settle the same position a second time. A lost
		// claim means someone else already settled it; re-prompt.
		pos, ok := f.ledger.ClaimPosition(ev.wallet, dec.Symbol)
		if !ok {
			f.logger.Warn("no open position for trigger symbol, re-prompting",
				slog.String("symbol", dec.Symbol),
			)
			retry = true
			continue
		}

		f.fire(ctx, ev, pos, dec.Outcome)
		return
	}
}

// fire settles an already-claimed position: the payout is computed from the
// claimed snapshot and notified to the buyer. A failed emission restores the
// position, so a later close can still settle it at face value.
func (f *Flow) fire(ctx context.Context, ev openedEvent, pos domain.Position, outcome domain.TriggerOutcome) {
	amount := settle.TriggerAmount(pos, outcome)
	fare := domain.Fare{Amount: amount, Denomination: f.base}

	msg := fmt.Sprintf("%s filled on %s, settling %s", outcome, pos.Symbol, fare)
	if err := ev.job.CreatePayableNotification(ctx, msg, fare); err != nil {
		f.ledger.OpenPosition(ev.wallet, pos.Symbol, pos.Amount, pos.TakeProfit, pos.StopLoss)
		f.logger.Error("payable notification failed, position restored",
			slog.String("job_id", ev.job.ID()),
			slog.String("symbol", pos.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}

	f.logger.Info("trigger settled",
		slog.String("job_id", ev.job.ID()),
		slog.String("symbol", pos.Symbol),
		slog.String("outcome", string(outcome)),
		slog.Float64("payout", amount),
	)

	if f.notifier != nil {
		if err := f.notifier.Notify(ctx, notify.EventTriggerFill, "Trigger filled", msg); err != nil {
			f.logger.Warn("notification failed",
				slog.String("error", err.Error()),
			)
		}
	}
}
