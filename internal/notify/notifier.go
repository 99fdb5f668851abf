// Package notify fans settlement events out to the operator's channels.
// Telegram and Discord senders are supported; the notify.events config list
// selects which event types are forwarded.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender delivers one settlement event to a single operator channel. The
// event tag travels alongside the text so each channel can render it in its
// own markup.
type Sender interface {
	Send(ctx context.Context, event, title, message string) error
	// Name identifies the sender in logs and combined errors.
	Name() string
}

// Notifier fans settlement events out across its senders, skipping event
// types the operator did not subscribe to. An empty subscription list
// forwards everything.
type Notifier struct {
	senders    []Sender
	subscribed map[string]bool
	logger     *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders the event
// types listed in events (all types when events is empty).
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	subscribed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			subscribed[e] = true
		}
	}
	return &Notifier{
		senders:    senders,
		subscribed: subscribed,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Notify forwards one settlement event to every sender. A failing sender is
// logged and skipped, so one dead channel never silences the others; the
// failures come back joined after all senders were tried.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.subscribed) > 0 && !n.subscribed[event] {
		n.logger.DebugContext(ctx, "event not subscribed",
			slog.String("event", event),
		)
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, event, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "event delivered",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
