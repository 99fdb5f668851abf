package trigger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/acpsuite/settlebot/internal/domain"
)

// ConsoleSource prompts the operator on a terminal. Reads happen on a single
// pump goroutine so a blocked os.Stdin read never wedges a caller whose
// context is done; prompts from concurrent wallets are serialized.
type ConsoleSource struct {
	out   io.Writer
	lines chan string

	mu sync.Mutex // serializes prompt/answer pairs
}

// NewConsoleSource creates a ConsoleSource reading decisions from r and
// writing prompts to out.
func NewConsoleSource(r io.Reader, out io.Writer) *ConsoleSource {
	s := &ConsoleSource{
		out:   out,
		lines: make(chan string),
	}
	go s.pump(r)
	return s
}

// pump forwards lines from the reader until it is exhausted.
func (s *ConsoleSource) pump(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.lines <- strings.TrimSpace(scanner.Text())
	}
	close(s.lines)
}

// Await prints the trigger menu and parses one answer line. Accepted answers:
// "none" (or empty) to decline, "tp <symbol>" for a take-profit trigger, and
// "sl <symbol>" for a stop-loss trigger. Unparseable lines are returned as
// decisions with an empty outcome, which the flow re-prompts on.
func (s *ConsoleSource) Await(ctx context.Context, prompt Prompt) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prompt.Retry {
		fmt.Fprintln(s.out, "Invalid selection, try again.")
	}
	fmt.Fprintf(s.out, "Simulate a trigger for open positions %s? [none | tp <symbol> | sl <symbol>]: ",
		strings.Join(prompt.Symbols, ", "))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return nil, io.EOF
		}
		return parseAnswer(line), nil
	}
}

func parseAnswer(line string) *Decision {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 || fields[0] == "none" {
		return nil
	}
	if len(fields) < 2 {
		return &Decision{}
	}

	symbol := strings.ToUpper(fields[1])
	switch fields[0] {
	case "tp", "take_profit", "takeprofit":
		return &Decision{Outcome: domain.TriggerTakeProfit, Symbol: symbol}
	case "sl", "stop_loss", "stoploss":
		return &Decision{Outcome: domain.TriggerStopLoss, Symbol: symbol}
	default:
		return &Decision{}
	}
}

var _ Source = (*ConsoleSource)(nil)
