// Package dispatch routes job-update callbacks from the commerce protocol to
// their phase- and kind-specific handlers. The dispatcher keeps no state of
// its own across calls; the protocol collaborator owns phase progression and
// the ledger owns position state.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/acpsuite/settlebot/internal/domain"
	"github.com/acpsuite/settlebot/internal/ledger"
	"github.com/acpsuite/settlebot/internal/notify"
)

// walletLockTTL bounds how long a per-wallet settlement lock may be held
// before it expires on its own.
const walletLockTTL = 30 * time.Second

// OpenedListener is notified after an OPEN_POSITION transaction has settled
// and its confirmation was delivered. The listener must return promptly;
// long-running work (such as awaiting an operator trigger) belongs on its own
// goroutine.
type OpenedListener interface {
	PositionOpened(job domain.ProtocolJob, wallet *ledger.ClientWallet)
}

// EventNotifier forwards settlement events to the operator's notification
// channels. Delivery failures are logged, never propagated into job handling.
type EventNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

type handlerKey struct {
	phase domain.JobPhase
	name  domain.JobName
}

type handlerFunc func(ctx context.Context, job domain.ProtocolJob, payload domain.JobPayload) error

// Dispatcher is the seller-side job-phase state machine. Each callback is a
// pure (phase, name) table lookup into one of six handlers.
type Dispatcher struct {
	ledger   *ledger.Ledger
	fares    domain.FareResolver
	quoter   domain.Quoter
	base     domain.Token
	locks    domain.LockManager // optional cross-replica wallet lock
	listener OpenedListener     // optional
	notifier EventNotifier      // optional
	logger   *slog.Logger

	handlers map[handlerKey]handlerFunc
}

// New creates a Dispatcher settling in the given base currency. locks and
// listener may be nil.
func New(l *ledger.Ledger, fares domain.FareResolver, quoter domain.Quoter, base domain.Token, locks domain.LockManager, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		ledger: l,
		fares:  fares,
		quoter: quoter,
		base:   base,
		locks:  locks,
		logger: logger.With(slog.String("component", "dispatcher")),
	}
	d.handlers = map[handlerKey]handlerFunc{
		{domain.PhaseRequest, domain.JobOpenPosition}:      d.requestOpen,
		{domain.PhaseTransaction, domain.JobOpenPosition}:  d.transactionOpen,
		{domain.PhaseRequest, domain.JobClosePosition}:     d.requestClose,
		{domain.PhaseTransaction, domain.JobClosePosition}: d.transactionClose,
		{domain.PhaseRequest, domain.JobSwapToken}:         d.requestSwap,
		{domain.PhaseTransaction, domain.JobSwapToken}:     d.transactionSwap,
	}
	return d
}

// SetOpenedListener registers the listener invoked after open-position
// settlements. It must be called before the dispatcher starts receiving jobs.
func (d *Dispatcher) SetOpenedListener(l OpenedListener) {
	d.listener = l
}

// SetNotifier registers the notifier that receives settlement events. It must
// be called before the dispatcher starts receiving jobs.
func (d *Dispatcher) SetNotifier(n EventNotifier) {
	d.notifier = n
}

// HandleJob processes a single job-update callback. Malformed jobs (unknown
// name, undecodable requirement, out-of-table phase) are logged and skipped
// without error so that processing of other jobs is never aborted. Handler
// failures are returned for the transport layer to log; the job simply
// receives no response.
func (d *Dispatcher) HandleJob(ctx context.Context, job domain.ProtocolJob) error {
	d.logger.InfoContext(ctx, "job update",
		slog.String("job_id", job.ID()),
		slog.String("name", string(job.Name())),
		slog.String("phase", string(job.Phase())),
		slog.String("client", job.ClientAddress().Hex()),
		slog.String("provider", job.ProviderAddress().Hex()),
	)

	if job.Phase() != domain.PhaseRequest && job.Phase() != domain.PhaseTransaction {
		d.logger.WarnContext(ctx, "ignoring job in unsupported phase",
			slog.String("job_id", job.ID()),
			slog.String("phase", string(job.Phase())),
		)
		return nil
	}

	payload, err := domain.DecodeJobPayload(job.Name(), job.Requirement())
	if err != nil {
		d.logger.WarnContext(ctx, "skipping malformed job",
			slog.String("job_id", job.ID()),
			slog.String("name", string(job.Name())),
			slog.String("error", err.Error()),
		)
		return nil
	}

	h := d.handlers[handlerKey{job.Phase(), job.Name()}]
	if err := h(ctx, job, payload); err != nil {
		wrapped := fmt.Errorf("dispatch: job %s (%s/%s): %w", job.ID(), job.Phase(), job.Name(), err)
		d.notify(ctx, notify.EventError, "Job handling failed", wrapped.Error())
		return wrapped
	}
	return nil
}

// notify forwards a settlement event when a notifier is configured.
func (d *Dispatcher) notify(ctx context.Context, event, title, message string) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, event, title, message); err != nil {
		d.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// baseFare wraps an amount in the configured base currency.
func (d *Dispatcher) baseFare(amount float64) domain.Fare {
	return domain.Fare{Amount: amount, Denomination: d.base}
}

// signAcceptance signs the job's pending memo. A job with no signable memo is
// a recoverable no-op: it is logged and reported via the ok return so the
// handler emits nothing further.
func (d *Dispatcher) signAcceptance(ctx context.Context, job domain.ProtocolJob, message string) (ok bool, err error) {
	err = job.SignMemo(ctx, true, message)
	if errors.Is(err, domain.ErrNoSignableMemo) {
		d.logger.WarnContext(ctx, "job has no signable memo, skipping",
			slog.String("job_id", job.ID()),
		)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sign memo: %w", err)
	}
	return true, nil
}

// lockWallet serializes mutating handlers on the same wallet across agent
// replicas when a lock manager is configured. In-process serialization is
// already provided by the ledger's per-wallet locking.
func (d *Dispatcher) lockWallet(ctx context.Context, key domain.WalletKey) (func(), error) {
	if d.locks == nil {
		return func() {}, nil
	}
	unlock, err := d.locks.Acquire(ctx, "wallet:"+string(key), walletLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire wallet lock: %w", err)
	}
	return unlock, nil
}
