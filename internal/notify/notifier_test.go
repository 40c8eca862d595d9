package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outcomelabs/marketd/internal/domain"
)

type fakeSender struct {
	name     string
	err      error
	titles   []string
	messages []string
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyEventFiltering(t *testing.T) {
	ctx := context.Background()
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{"market_resolved"}, discardLogger())

	require.NoError(t, n.NotifyEvent(ctx, domain.Event{Type: domain.EventSwapExecuted, MarketID: 1}))
	require.Empty(t, s.titles)

	require.NoError(t, n.NotifyEvent(ctx, domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: 9,
		Detail:   map[string]any{"outcome": true, "observed": int64(750)},
	}))
	require.Len(t, s.titles, 1)
	require.Equal(t, "Market 9 resolved", s.titles[0])
	require.Contains(t, s.messages[0], "observed: 750")
	require.Contains(t, s.messages[0], "outcome: true")
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	ctx := context.Background()
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	require.NoError(t, n.NotifyEvent(ctx, domain.Event{Type: domain.EventRedeemed, MarketID: 3, Account: "alice"}))
	require.Len(t, s.titles, 1)
	require.Contains(t, s.messages[0], "account: alice")
}

func TestDispatchCollectsFailures(t *testing.T) {
	ctx := context.Background()
	broken := &fakeSender{name: "broken", err: errors.New("webhook down")}
	ok := &fakeSender{name: "ok"}
	n := NewNotifier([]Sender{broken, ok}, nil, discardLogger())

	err := n.NotifyAll(ctx, "title", "body")
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")
	// The healthy sender still received the notification.
	require.Len(t, ok.titles, 1)
}
