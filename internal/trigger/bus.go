package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/acpsuite/settlebot/internal/domain"
)

const (
	// promptChannel carries awaiting-decision prompts to operator tooling.
	promptChannel = "settlebot:trigger:prompts"
	// decisionChannel carries operator decisions back to the agent.
	decisionChannel = "settlebot:trigger:decisions"
)

// busPrompt is the wire form of a Prompt published to operator tooling.
type busPrompt struct {
	WalletKey string   `json:"walletKey"`
	Symbols   []string `json:"symbols"`
	Retry     bool     `json:"retry"`
}

// busDecision is the wire form of an operator decision. An empty outcome
// declines the prompt.
type busDecision struct {
	WalletKey string                `json:"walletKey"`
	Outcome   domain.TriggerOutcome `json:"outcome"`
	Symbol    string                `json:"symbol"`
}

// BusSource awaits operator decisions over a pub/sub signal bus, so trigger
// simulation can be driven from external tooling instead of a terminal. Each
// prompt is published on the prompt channel; the matching decision arrives on
// the decision channel tagged with the wallet key.
type BusSource struct {
	bus domain.SignalBus

	mu   sync.Mutex
	sub  <-chan []byte
	subs map[string]chan *Decision // wallet key -> pending waiter
}

// NewBusSource creates a BusSource on the given signal bus.
func NewBusSource(bus domain.SignalBus) *BusSource {
	return &BusSource{
		bus:  bus,
		subs: make(map[string]chan *Decision),
	}
}

// Await publishes the prompt and blocks until a decision for the prompt's
// wallet arrives or the context is done.
func (s *BusSource) Await(ctx context.Context, prompt Prompt) (*Decision, error) {
	if err := s.ensureSubscribed(ctx); err != nil {
		return nil, err
	}

	key := string(prompt.WalletKey)
	waiter := make(chan *Decision, 1)
	s.mu.Lock()
	s.subs[key] = waiter
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, key)
		s.mu.Unlock()
	}()

	payload, err := json.Marshal(busPrompt{
		WalletKey: key,
		Symbols:   prompt.Symbols,
		Retry:     prompt.Retry,
	})
	if err != nil {
		return nil, fmt.Errorf("trigger: marshal prompt: %w", err)
	}
	if err := s.bus.Publish(ctx, promptChannel, payload); err != nil {
		return nil, fmt.Errorf("trigger: publish prompt: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case dec := <-waiter:
		return dec, nil
	}
}

// ensureSubscribed lazily opens the decision subscription and starts the
// demux loop.
func (s *BusSource) ensureSubscribed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	sub, err := s.bus.Subscribe(ctx, decisionChannel)
	if err != nil {
		return fmt.Errorf("trigger: subscribe decisions: %w", err)
	}
	s.sub = sub
	go s.demux(sub)
	return nil
}

// demux routes incoming decisions to the waiter registered for their wallet
// key. Sends never block: a decision with no waiter, or a duplicate arriving
// after the waiter's buffer filled, is dropped rather than wedging the loop.
func (s *BusSource) demux(sub <-chan []byte) {
	for payload := range sub {
		var d busDecision
		if err := json.Unmarshal(payload, &d); err != nil {
			continue
		}

		s.mu.Lock()
		waiter, ok := s.subs[d.WalletKey]
		s.mu.Unlock()
		if !ok {
			continue
		}

		var dec *Decision
		if d.Outcome != "" {
			dec = &Decision{Outcome: d.Outcome, Symbol: d.Symbol}
		}
		select {
		case waiter <- dec:
		default:
		}
	}
}

var _ Source = (*BusSource)(nil)
