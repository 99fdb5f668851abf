package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acpsuite/settlebot/internal/domain"
	"github.com/acpsuite/settlebot/internal/notify"
)

// requestOpen negotiates an OPEN_POSITION job: accept the memo, then require
// the buyer's collateral in the base currency, addressed to the provider.
func (d *Dispatcher) requestOpen(ctx context.Context, job domain.ProtocolJob, payload domain.JobPayload) error {
	p := payload.Open

	ok, err := d.signAcceptance(ctx, job, fmt.Sprintf("Accepting request to open a %s position", p.Symbol))
	if err != nil || !ok {
		return err
	}

	fare := d.baseFare(p.Amount)
	msg := fmt.Sprintf("Transfer %s to open the %s position", fare, p.Symbol)
	if err := job.CreatePayableRequirement(ctx, msg, fare, job.ProviderAddress()); err != nil {
		return fmt.Errorf("create payable requirement: %w", err)
	}
	return nil
}

// transactionOpen settles a funded OPEN_POSITION job: record it in the
// ledger, confirm delivery, and hand the wallet to the opened listener so the
// operator-trigger flow can start.
func (d *Dispatcher) transactionOpen(ctx context.Context, job domain.ProtocolJob, payload domain.JobPayload) error {
	p := payload.Open

	wallet := d.ledger.GetOrCreateWallet(job.ClientAddress())
	unlock, err := d.lockWallet(ctx, wallet.Key())
	if err != nil {
		return err
	}

	pos := d.ledger.OpenPosition(wallet, p.Symbol, p.Amount, p.TakeProfit, p.StopLoss)
	unlock()

	d.logger.InfoContext(ctx, "position opened",
		slog.String("job_id", job.ID()),
		slog.String("symbol", pos.Symbol),
		slog.Float64("amount", pos.Amount),
		slog.Float64("take_profit_pct", pos.TakeProfit.Percentage),
		slog.Float64("stop_loss_pct", pos.StopLoss.Percentage),
	)

	msg := fmt.Sprintf("Opened %s position, total amount %g", pos.Symbol, pos.Amount)
	if err := job.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("deliver confirmation: %w", err)
	}
	d.notify(ctx, notify.EventPositionOpen, "Position opened", msg)

	if d.listener != nil {
		d.listener.PositionOpened(job, wallet)
	}
	return nil
}

// requestClose gates a CLOSE_POSITION negotiation on the position actually
// being open. A close of an unknown symbol is rejected towards the
// counterparty, never raised as an internal fault.
func (d *Dispatcher) requestClose(ctx context.Context, job domain.ProtocolJob, payload domain.JobPayload) error {
	p := payload.Close

	wallet := d.ledger.GetOrCreateWallet(job.ClientAddress())
	if !d.ledger.HasOpenPosition(wallet, p.Symbol) {
		if err := job.Respond(ctx, false, fmt.Sprintf("No open %s position to close", p.Symbol)); err != nil {
			return fmt.Errorf("respond reject: %w", err)
		}
		return nil
	}

	pos, _ := d.ledger.Position(wallet, p.Symbol)
	msg := fmt.Sprintf("%s position open with amount %g, ready to close", pos.Symbol, pos.Amount)
	if err := job.Respond(ctx, true, msg); err != nil {
		return fmt.Errorf("respond accept: %w", err)
	}
	return nil
}

// transactionClose settles a CLOSE_POSITION job: remove the position and
// deliver its face value in the base currency.
func (d *Dispatcher) transactionClose(ctx context.Context, job domain.ProtocolJob, payload domain.JobPayload) error {
	p := payload.Close

	wallet := d.ledger.GetOrCreateWallet(job.ClientAddress())
	unlock, err := d.lockWallet(ctx, wallet.Key())
	if err != nil {
		return err
	}

	closed := d.ledger.ClosePosition(wallet, p.Symbol)
	unlock()

	d.logger.InfoContext(ctx, "position closed",
		slog.String("job_id", job.ID()),
		slog.String("symbol", p.Symbol),
		slog.Float64("amount", closed),
	)

	fare := d.baseFare(closed)
	msg := fmt.Sprintf("Closed %s position, settling %s", p.Symbol, fare)
	if err := job.DeliverPayable(ctx, msg, fare); err != nil {
		return fmt.Errorf("deliver payable: %w", err)
	}
	d.notify(ctx, notify.EventPositionClose, "Position closed", msg)
	return nil
}

// requestSwap negotiates a SWAP_TOKEN job. The fare for the source token is
// resolved before any protocol action so that a resolution failure leaves the
// job untouched.
func (d *Dispatcher) requestSwap(ctx context.Context, job domain.ProtocolJob, payload domain.JobPayload) error {
	p := payload.Swap

	fare, err := d.fares.ResolveFare(ctx, common.HexToAddress(p.FromContractAddress), p.Amount)
	if err != nil {
		return fmt.Errorf("resolve %s fare: %w", p.FromSymbol, err)
	}

	ok, err := d.signAcceptance(ctx, job, fmt.Sprintf("Accepting request to swap %s for %s", p.FromSymbol, p.ToSymbol))
	if err != nil || !ok {
		return err
	}

	msg := fmt.Sprintf("Transfer %s to fund the swap to %s", fare, p.ToSymbol)
	if err := job.CreatePayableRequirement(ctx, msg, fare, job.ProviderAddress()); err != nil {
		return fmt.Errorf("create payable requirement: %w", err)
	}
	return nil
}

// transactionSwap settles a funded SWAP_TOKEN job: price the swap through
// the quoter and deliver the payout in the target token's denomination.
func (d *Dispatcher) transactionSwap(ctx context.Context, job domain.ProtocolJob, payload domain.JobPayload) error {
	p := payload.Swap

	toFare, err := d.fares.ResolveFare(ctx, common.HexToAddress(p.ToContractAddress), 0)
	if err != nil {
		return fmt.Errorf("resolve %s fare: %w", p.ToSymbol, err)
	}

	from := domain.Token{Symbol: p.FromSymbol, Contract: common.HexToAddress(p.FromContractAddress)}
	payout, err := d.quoter.QuoteSwap(ctx, from, toFare.Denomination, p.Amount)
	if err != nil {
		return fmt.Errorf("quote swap: %w", err)
	}

	fare := toFare.WithAmount(payout)
	msg := fmt.Sprintf("Swapped %g %s, delivering %s", p.Amount, p.FromSymbol, fare)
	if err := job.DeliverPayable(ctx, msg, fare); err != nil {
		return fmt.Errorf("deliver payable: %w", err)
	}
	d.notify(ctx, notify.EventSwap, "Swap settled", msg)

	d.logger.InfoContext(ctx, "swap settled",
		slog.String("job_id", job.ID()),
		slog.String("from", p.FromSymbol),
		slog.String("to", p.ToSymbol),
		slog.Float64("payout", payout),
	)
	return nil
}
