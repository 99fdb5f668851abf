package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name   string
	fail   bool
	events []string
	titles []string
}

func (s *fakeSender) Send(_ context.Context, event, title, _ string) error {
	if s.fail {
		return errors.New("boom")
	}
	s.events = append(s.events, event)
	s.titles = append(s.titles, title)
	return nil
}

func (s *fakeSender) Name() string { return s.name }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEvent(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventTriggerFill}, discard())

	require.NoError(t, n.Notify(context.Background(), EventPositionOpen, "open", "m"))
	require.Empty(t, s.titles)

	require.NoError(t, n.Notify(context.Background(), EventTriggerFill, "fill", "m"))
	require.Equal(t, []string{"fill"}, s.titles)
	require.Equal(t, []string{EventTriggerFill}, s.events)
}

func TestNotifyEmptyEventsAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, discard())

	require.NoError(t, n.Notify(context.Background(), EventSwap, "swap", "m"))
	require.Equal(t, []string{"swap"}, s.titles)
}

func TestNotifyContinuesPastFailedSender(t *testing.T) {
	bad := &fakeSender{name: "bad", fail: true}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventPositionClose, "title", "m")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad")
	require.Equal(t, []string{"title"}, good.titles)
}

func TestNotifierNoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, discard())
	require.NoError(t, n.Notify(context.Background(), EventError, "t", "m"))
}
