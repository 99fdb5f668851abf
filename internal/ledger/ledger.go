// Package ledger maintains the per-buyer book of open trading positions. It
// is the only shared mutable state in the agent; every mutation goes through
// OpenPosition or ClosePosition under the owning wallet's lock, so concurrent
// jobs for the same wallet serialize while unrelated wallets proceed in
// parallel.
package ledger

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acpsuite/settlebot/internal/domain"
)

// ClientWallet groups the open positions of a single buyer under its derived
// wallet key. Wallets are created lazily on first lookup and live for the
// process lifetime.
type ClientWallet struct {
	key domain.WalletKey

	mu        sync.Mutex
	positions map[string]*domain.Position
}

// Key returns the wallet's opaque ledger key.
func (w *ClientWallet) Key() domain.WalletKey {
	return w.key
}

// Ledger owns the wallet registry. The zero value is not usable; construct
// with New.
type Ledger struct {
	mu      sync.RWMutex
	wallets map[domain.WalletKey]*ClientWallet
	logger  *slog.Logger
}

// New creates an empty Ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{
		wallets: make(map[domain.WalletKey]*ClientWallet),
		logger:  logger.With(slog.String("component", "ledger")),
	}
}

// GetOrCreateWallet resolves the wallet for a client address, creating an
// empty one under the derived key on first lookup. Repeated calls for the
// same address return the same instance.
func (l *Ledger) GetOrCreateWallet(client common.Address) *ClientWallet {
	key := DeriveWalletKey(client)

	l.mu.RLock()
	w, ok := l.wallets[key]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.wallets[key]; ok {
		return w
	}
	w = &ClientWallet{
		key:       key,
		positions: make(map[string]*domain.Position),
	}
	l.wallets[key] = w
	l.logger.Debug("wallet created", slog.String("wallet_key", shortKey(key)))
	return w
}

// OpenPosition records an open of amount for symbol under the wallet. If a
// position for the symbol already exists its amount grows and the original
// take-profit / stop-loss thresholds are kept; otherwise a fresh position is
// inserted with the given thresholds. Callers are responsible for amount > 0.
// It returns a snapshot of the resulting position.
func (l *Ledger) OpenPosition(w *ClientWallet, symbol string, amount float64, takeProfit, stopLoss domain.ThresholdConfig) domain.Position {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos, ok := w.positions[symbol]
	if ok {
		pos.Amount += amount
	} else {
		pos = &domain.Position{
			Symbol:     symbol,
			Amount:     amount,
			TakeProfit: takeProfit,
			StopLoss:   stopLoss,
		}
		w.positions[symbol] = pos
	}
	return *pos
}

// ClosePosition removes the position for symbol and returns its prior
// amount. Closing an absent symbol is a safe no-op returning 0, so a repeated
// close yields (amount, 0).
func (l *Ledger) ClosePosition(w *ClientWallet, symbol string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos, ok := w.positions[symbol]
	if !ok {
		return 0
	}
	delete(w.positions, symbol)
	return pos.Amount
}

// ClaimPosition removes the position for symbol and returns its final
// snapshot in a single step under the wallet lock, so no other close or open
// can interleave between the read and the removal. It returns false when no
// position with a positive amount is open.
func (l *Ledger) ClaimPosition(w *ClientWallet, symbol string) (domain.Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos, ok := w.positions[symbol]
	if !ok || pos.Amount <= 0 {
		return domain.Position{}, false
	}
	delete(w.positions, symbol)
	return *pos, true
}

// HasOpenPosition reports whether the wallet holds a position for symbol with
// a positive amount.
func (l *Ledger) HasOpenPosition(w *ClientWallet, symbol string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos, ok := w.positions[symbol]
	return ok && pos.Amount > 0
}

// Position returns a snapshot of the wallet's position for symbol.
func (l *Ledger) Position(w *ClientWallet, symbol string) (domain.Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos, ok := w.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// OpenSymbols lists the wallet's symbols with open positions in sorted order.
func (l *Ledger) OpenSymbols(w *ClientWallet) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	symbols := make([]string, 0, len(w.positions))
	for sym, pos := range w.positions {
		if pos.Amount > 0 {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// shortKey truncates a wallet key for log output.
func shortKey(key domain.WalletKey) string {
	s := string(key)
	if len(s) <= 10 {
		return s
	}
	return s[:10]
}
